package main

// Example command that loads a forecast dataset from a directory of
// prediction CSVs and a directory of target CSVs, prints its extents, and
// converts the first scene batch into gomlx tensors.
//
// Usage:
//   go run ./datasets/example -pred out/predictions -target data/targets
//
// Data is loaded lazily: only the rows of the requested batch are parsed.

import (
	"flag"
	"fmt"

	"github.com/Noofbiz/forecasteval/datasets"
	"github.com/Noofbiz/forecasteval/forecast"
	"github.com/Noofbiz/forecasteval/log"
)

func main() {
	predDir := flag.String("pred", "assets/predictions", "directory holding prediction CSVs")
	targetDir := flag.String("target", "assets/targets", "directory holding target CSVs")
	scenes := flag.Int("scenes", 4, "scenes in the example batch")
	flag.Parse()

	predPattern, err := datasets.FindCSVInDir(*predDir)
	if err != nil {
		log.Fatalf("failed to find predictions: %v", err)
	}
	targetPattern, err := datasets.FindCSVInDir(*targetDir)
	if err != nil {
		log.Fatalf("failed to find targets: %v", err)
	}

	ds, err := datasets.NewForecastDataset(predPattern, targetPattern)
	if err != nil {
		log.Fatalf("failed to load forecast dataset: %v", err)
	}
	fmt.Printf("Using prediction CSV pattern: %s\n", predPattern)
	fmt.Printf("Using target CSV pattern: %s\n", targetPattern)
	fmt.Printf("Samples: %d  Scenes: %d  Modes: %d  Steps: %d\n", ds.Len(), ds.NumScenes(), ds.Modes(), ds.Steps())

	batches := ds.SceneBatches(*scenes)
	if len(batches) == 0 {
		fmt.Println("Dataset is empty.")
		return
	}

	fmt.Printf("Loading batch of %d samples...\n", len(batches[0]))
	ts, err := ds.Tensors(batches[0])
	if err != nil {
		log.Fatalf("failed to build batch tensors: %v", err)
	}
	for _, name := range []string{
		forecast.TensorPredLoc, forecast.TensorPredVar, forecast.TensorProb,
		forecast.TensorTarget, forecast.TensorMask, forecast.TensorPtr,
	} {
		if t, ok := ts[name]; ok {
			fmt.Printf("  %-10s %v\n", name, t.Shape())
		}
	}
	fmt.Printf("  first sample: %s\n", ds.SampleIDs(batches[0][:1])[0])
}
