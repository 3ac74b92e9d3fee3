// Package archive writes a dated CSV snapshot of each run's cleaned prices
// and optionally mirrors it to object storage.
package archive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pevans/pricefed/prices"
)

// FileLayout names archive files by the moment they were written.
const FileLayout = "2006-01-02_15-04-05"

// Header is the first row of every archive file.
var Header = []string{"city", "station_name", "address", "fuel_code", "price", "date"}

// Archiver writes snapshots into Dir.
type Archiver struct {
	Dir string
	// Mirror, when set, receives a copy of each written file. Mirror
	// failures are logged and do not fail the write.
	Mirror Uploader
	Now    func() time.Time
}

// New creates an archiver writing into dir.
func New(dir string, mirror Uploader) *Archiver {
	return &Archiver{Dir: dir, Mirror: mirror, Now: time.Now}
}

// Write stores records as a new CSV file and returns its path. An existing
// file is never replaced; a name collision gets a numeric suffix.
func (a *Archiver) Write(ctx context.Context, records []prices.Record) (string, error) {
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	f, path, err := a.create()
	if err != nil {
		return "", err
	}

	if err := writeCSV(f, records); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write archive %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive %s: %w", path, err)
	}

	log.Printf("INFO: Archived %d records to %s", len(records), path)

	if a.Mirror != nil {
		if err := a.mirror(ctx, path); err != nil {
			log.Printf("WARN: Failed to mirror archive %s: %v", path, err)
		}
	}

	return path, nil
}

func (a *Archiver) create() (*os.File, string, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	base := now().Format(FileLayout)

	for i := 0; ; i++ {
		name := base + ".csv"
		if i > 0 {
			name = base + "_" + strconv.Itoa(i) + ".csv"
		}
		path := filepath.Join(a.Dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create archive file: %w", err)
		}
		return f, path, nil
	}
}

func (a *Archiver) mirror(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return a.Mirror.Upload(ctx, filepath.Base(path), f)
}

func writeCSV(f *os.File, records []prices.Record) error {
	w := csv.NewWriter(f)

	if err := w.Write(Header); err != nil {
		return err
	}

	for _, r := range records {
		address := ""
		if r.Address != nil {
			address = *r.Address
		}
		row := []string{
			r.City,
			r.StationName,
			address,
			r.FuelCode,
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			r.ObservedAt.Format("2006-01-02"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
