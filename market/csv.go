package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// LoadCSV reads a bar series from a CSV file with a
// date,open,high,low,close,volume header. Files ending in .xz are
// transparently decompressed, which keeps multi-year daily datasets small on
// disk. The underlying symbol is taken from the file name when not supplied.
func LoadCSV(path, underlying string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open bars %s: %w", path, err)
		}
		r = xr
	}

	if underlying == "" {
		base := filepath.Base(path)
		underlying = strings.ToUpper(strings.SplitN(base, ".", 2)[0])
	}

	bars, err := ReadBars(r)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", path, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("read bars %s: %w", path, ErrNoData)
	}
	return NewSeries(underlying, bars), nil
}

// ReadBars parses CSV bar rows from r. A header row is detected and skipped.
func ReadBars(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var bars []Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 columns, got %d", line, len(rec))
		}
		if line == 1 && looksLikeHeader(rec) {
			continue
		}

		b, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func looksLikeHeader(rec []string) bool {
	_, err := parseDate(rec[0])
	return err != nil
}

func parseBar(rec []string) (Bar, error) {
	date, err := parseDate(rec[0])
	if err != nil {
		return Bar{}, err
	}

	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		vals[i] = v
	}

	var vol float64
	if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
		vol, err = strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("volume: %w", err)
		}
	}

	return Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vol}, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
