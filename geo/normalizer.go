// Package geo maps the free-text locality strings and raw coordinates found
// in upstream listings onto canonical city names.
package geo

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Unusable is returned by Normalize when a raw locality cannot name a city.
// Records that resolve to it are dropped before persistence.
const Unusable = ""

var (
	// Matches values such as "60", "60.3" or "60,3" that leak into the
	// locality column when the upstream markup shifts.
	numericOnly = regexp.MustCompile(`^\d+([.,]\d+)?$`)

	// Matches a leading list index such as "12. " or "3, ".
	leadingIndex = regexp.MustCompile(`^\d+[.,]\s*`)
)

// NormalizerConfig is the per-region lookup data used by a Normalizer. It is
// plain data so that it can be loaded from a config file and swapped in
// tests.
type NormalizerConfig struct {
	// Aliases maps administrative districts, legacy names and satellite
	// settlements to a canonical city name.
	Aliases map[string]string `yaml:"aliases"`

	// MajorCities are collapsed to when they appear anywhere in the raw
	// value, e.g. "г. Ульяновск" becomes "Ульяновск".
	MajorCities []string `yaml:"major_cities"`

	// DistrictSuffixes are trailing administrative words stripped from
	// unknown values as a best-effort canonical name.
	DistrictSuffixes []string `yaml:"district_suffixes"`
}

// DefaultNormalizerConfig returns the lookup table for the Ulyanovsk region.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		Aliases: map[string]string{
			"Ульяновск":                 "Ульяновск",
			"Городской округ Ульяновск": "Ульяновск",
			"Ульяновский район":         "Ульяновск",
			"Земляничный":               "Барыш",
			"Мирный":                    "Чердаклы",
			"Димитровград":              "Димитровград",
			"Мелекесский район":         "Димитровград",
			"Чердаклы":                  "Чердаклы",
			"Чердаклинский район":       "Чердаклы",
			"Барыш":                     "Барыш",
			"Барышский район":           "Барыш",
			"Новоспасское":              "Новоспасское",
			"Новоспасский район":        "Новоспасское",
			"Майна":                     "Майна",
			"Старая Майна":              "Майна",
			"Старомайнский район":       "Майна",
			"Карсун":                    "Карсун",
			"Карсунский район":          "Карсун",
			"Инза":                      "Инза",
			"Кузоватовский район":       "Кузоватово",
			"Сенгилеевский район":       "Сенгилей",
			"Цильнинский район":         "Цильна",
			"Тагай":                     "Тагай",
			"Марьевка":                  "Цильна",
			"Радищевский район":         "Радищево",
			"Новомалыклинский район":    "Новая Малыкла",
			"Дмитриево-Помряскино":      "Дмитриево-Помряскино",
			"Ждамирово":                 "Ждамирово",
			"Тереньгульский район":      "Тереньга",
		},
		MajorCities:      []string{"Ульяновск", "Димитровград"},
		DistrictSuffixes: []string{"район", "district", "rayon"},
	}
}

// Normalizer resolves raw locality text to a canonical city name.
type Normalizer struct {
	aliases  map[string]string
	major    []string
	suffixes []string
}

// NewNormalizer indexes cfg by folded key. Raw names that fold to the same
// key are expected to share a canonical value.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	n := &Normalizer{
		aliases: make(map[string]string, len(cfg.Aliases)),
	}

	for raw, canonical := range cfg.Aliases {
		canonical = collapseSpace(canonical)
		if canonical == "" {
			continue
		}
		n.aliases[Key(raw)] = canonical
	}

	for _, city := range cfg.MajorCities {
		if city = collapseSpace(city); city != "" {
			n.major = append(n.major, city)
		}
	}

	for _, suffix := range cfg.DistrictSuffixes {
		if suffix = Key(suffix); suffix != "" {
			n.suffixes = append(n.suffixes, suffix)
		}
	}

	return n
}

// Normalize returns the canonical city for raw, or Unusable when raw is
// empty or purely numeric.
func (n *Normalizer) Normalize(raw string) string {
	name := collapseSpace(raw)
	name = strings.TrimSpace(leadingIndex.ReplaceAllString(name, ""))

	if name == "" || numericOnly.MatchString(name) {
		return Unusable
	}

	key := Key(name)

	if canonical, ok := n.aliases[key]; ok {
		return canonical
	}

	for _, city := range n.major {
		if strings.Contains(key, Key(city)) {
			return city
		}
	}

	words := strings.Fields(name)
	if len(words) > 1 && n.isSuffix(words[len(words)-1]) {
		return strings.Join(words[:len(words)-1], " ")
	}

	return name
}

func (n *Normalizer) isSuffix(word string) bool {
	key := Key(word)
	for _, suffix := range n.suffixes {
		if key == suffix {
			return true
		}
	}
	return false
}

// Key is the identity key used for every case-insensitive name match: the
// Unicode case fold of s with surrounding space trimmed and inner runs of
// whitespace collapsed.
func Key(s string) string {
	return cases.Fold().String(collapseSpace(s))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
