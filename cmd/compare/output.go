package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// writeResults writes one CSV row per batch followed by a "total" row.
func writeResults(w io.Writer, names []string, rows []batchResult, total batchResult) error {
	cw := csv.NewWriter(w)
	header := append([]string{"batch", "samples", "scenes", "loss"}, names...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range append(rows, total) {
		batch := strconv.Itoa(r.Batch)
		if r.Batch < 0 {
			batch = "total"
		}
		rec := []string{
			batch,
			strconv.Itoa(r.Samples),
			strconv.Itoa(r.Scenes),
			strconv.FormatFloat(r.Loss, 'f', 6, 64),
		}
		for _, v := range r.Metrics {
			rec = append(rec, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeResultsFile(path string, names []string, rows []batchResult, total batchResult) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeResults(f, names, rows, total); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// printSummary writes the run totals in a human-readable form.
func printSummary(w io.Writer, names []string, total batchResult) {
	fmt.Fprintf(w, "Evaluated %d samples in %d scenes\n", total.Samples, total.Scenes)
	fmt.Fprintf(w, "  %-10s %f\n", "loss", total.Loss)
	for i, name := range names {
		fmt.Fprintf(w, "  %-10s %f\n", name, total.Metrics[i])
	}
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
