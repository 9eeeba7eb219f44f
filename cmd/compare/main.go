package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Noofbiz/forecasteval/config"
	"github.com/Noofbiz/forecasteval/datasets"
	"github.com/Noofbiz/forecasteval/log"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON evaluation config; embedded defaults are used when empty")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	flags := config.BindFlags(flag.CommandLine)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("%v", err)
		}
	}
	// explicit CLI flags always override JSON values
	flags.Apply(cfg)
	log.SetLevel(*cfg.Output.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if *printEffectiveConfig {
		data, err := cfg.JSON()
		if err != nil {
			log.Fatalf("failed to render configuration: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.EvalConfig) error {
	ds, err := datasets.NewForecastDataset(*cfg.Data.Predictions, *cfg.Data.Targets)
	if err != nil {
		return fmt.Errorf("failed to open forecast dataset: %w", err)
	}
	log.Infof("Forecast dataset loaded: %d samples, %d scenes, %d modes, %d steps",
		ds.Len(), ds.NumScenes(), ds.Modes(), ds.Steps())

	ev, err := newEvaluator(cfg)
	if err != nil {
		return err
	}

	batches := ds.SceneBatches(*cfg.Data.BatchScenes)
	rows := make([]batchResult, 0, len(batches))
	for i, idx := range batches {
		b, err := ds.Batch(idx)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		res, err := ev.evaluate(i, b)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		rows = append(rows, res)
		log.Debugf("batch %d: %d samples, loss %f", i, res.Samples, res.Loss)

		if i == 0 && *cfg.Output.PlotDir != "" {
			if err := plotSamples(*cfg.Output.PlotDir, b, ds.SampleIDs(idx), *cfg.Output.PlotSamples); err != nil {
				log.Warnf("failed to generate plots: %v", err)
			} else {
				log.Infof("Best-mode plots written to %s", *cfg.Output.PlotDir)
			}
		}
	}

	total := ev.summary()
	if *cfg.Output.CSV != "" {
		if err := writeResultsFile(*cfg.Output.CSV, ev.names(), rows, total); err != nil {
			return err
		}
		log.Infof("Evaluation CSV written to %s", *cfg.Output.CSV)
	}
	printSummary(os.Stdout, ev.names(), total)
	return nil
}
