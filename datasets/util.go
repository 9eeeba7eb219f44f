package datasets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// errStopScan ends scanFile early without error.
var errStopScan = errors.New("stop scan")

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	return strconv.ParseFloat(s, 64)
}

// parseIndex parses a non-negative integer such as a mode or step number.
func parseIndex(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative index %d", v)
	}
	return v, nil
}

// parseValid accepts 0/1 and the strconv.ParseBool spellings. An empty
// cell is valid.
func parseValid(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return true, nil
	}
	return strconv.ParseBool(s)
}

// parseInto parses the named columns of rec into dst, in order.
func parseInto(dst []float64, rec []string, colIndex map[string]int, cols ...string) error {
	for i, col := range cols {
		v, err := parseFloat64(rec[colIndex[col]])
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", col, err)
		}
		dst[i] = v
	}
	return nil
}

// readHeader returns the normalized column indices of a CSV file.
func readHeader(path string) (map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return idx, nil
}

func sameLayout(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for col, i := range a {
		if j, ok := b[col]; !ok || i != j {
			return false
		}
	}
	return true
}

// FindCSVInDir returns a glob pattern matching the CSV files of dir, or an
// error when there are none.
func FindCSVInDir(dir string) (string, error) {
	pattern := filepath.Join(dir, "*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no CSV files found in %s", dir)
	}
	return pattern, nil
}
