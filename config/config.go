// Package config holds the evaluation settings read by cmd/compare. Values
// come from an embedded defaults document, optionally overlaid by a JSON
// file and then by command-line flags.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Noofbiz/forecasteval/losses"
	"github.com/Noofbiz/forecasteval/metrics"
)

//go:embed defaults.json
var defaultsJSON []byte

// EvalConfig is the JSON document. Every field is a pointer so that a file
// can set only the values it cares about.
type EvalConfig struct {
	Loss    *LossConfig    `json:"loss,omitempty"`
	Metrics *MetricsConfig `json:"metrics,omitempty"`
	Data    *DataConfig    `json:"data,omitempty"`
	Output  *OutputConfig  `json:"output,omitempty"`
}

// LossConfig configures the mixture loss.
type LossConfig struct {
	Full      *bool    `json:"full,omitempty"`
	Eps       *float64 `json:"eps,omitempty"`
	Reduction *string  `json:"reduction,omitempty"`
	// Joint sums per-sample NLLs within each scene before mixing.
	Joint *bool `json:"joint,omitempty"`
}

// MetricsConfig configures Brier and MR. One Brier metric is computed per
// entry of MinCriteria and one MR metric per entry of MissCriteria.
type MetricsConfig struct {
	MaxGuesses           *int     `json:"max_guesses,omitempty"`
	MinCriteria          []string `json:"min_criteria,omitempty"`
	MissCriteria         []string `json:"miss_criteria,omitempty"`
	MissThreshold        *float64 `json:"miss_threshold,omitempty"`
	KeepInvalidFinalStep *bool    `json:"keep_invalid_final_step,omitempty"`
}

// DataConfig locates the input CSVs.
type DataConfig struct {
	Predictions *string `json:"predictions,omitempty"`
	Targets     *string `json:"targets,omitempty"`
	BatchScenes *int    `json:"batch_scenes,omitempty"`
}

// OutputConfig controls what the run writes. An empty PlotDir disables
// plotting.
type OutputConfig struct {
	CSV         *string `json:"csv,omitempty"`
	PlotDir     *string `json:"plot_dir,omitempty"`
	PlotSamples *int    `json:"plot_samples,omitempty"`
	LogLevel    *string `json:"log_level,omitempty"`
}

// Default returns a fully populated configuration.
func Default() *EvalConfig {
	var c EvalConfig
	if err := json.Unmarshal(defaultsJSON, &c); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return &c
}

// Load overlays the JSON file at path onto the defaults. Keys missing from
// the file, or set to null, keep their default value.
func Load(path string) (*EvalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*EvalConfig, error) {
	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.fillDefaults(Default())
	return c, nil
}

// fillDefaults replaces every nil field of c with the one from d.
func (c *EvalConfig) fillDefaults(d *EvalConfig) {
	if c.Loss == nil {
		c.Loss = d.Loss
	} else {
		fill(&c.Loss.Full, d.Loss.Full)
		fill(&c.Loss.Eps, d.Loss.Eps)
		fill(&c.Loss.Reduction, d.Loss.Reduction)
		fill(&c.Loss.Joint, d.Loss.Joint)
	}
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	} else {
		fill(&c.Metrics.MaxGuesses, d.Metrics.MaxGuesses)
		fill(&c.Metrics.MissThreshold, d.Metrics.MissThreshold)
		fill(&c.Metrics.KeepInvalidFinalStep, d.Metrics.KeepInvalidFinalStep)
		if c.Metrics.MinCriteria == nil {
			c.Metrics.MinCriteria = d.Metrics.MinCriteria
		}
		if c.Metrics.MissCriteria == nil {
			c.Metrics.MissCriteria = d.Metrics.MissCriteria
		}
	}
	if c.Data == nil {
		c.Data = d.Data
	} else {
		fill(&c.Data.Predictions, d.Data.Predictions)
		fill(&c.Data.Targets, d.Data.Targets)
		fill(&c.Data.BatchScenes, d.Data.BatchScenes)
	}
	if c.Output == nil {
		c.Output = d.Output
	} else {
		fill(&c.Output.CSV, d.Output.CSV)
		fill(&c.Output.PlotDir, d.Output.PlotDir)
		fill(&c.Output.PlotSamples, d.Output.PlotSamples)
		fill(&c.Output.LogLevel, d.Output.LogLevel)
	}
}

func fill[T any](dst **T, def *T) {
	if *dst == nil {
		*dst = def
	}
}

// Validate parses every enumerated option and checks the numeric ranges.
// It must be called on a configuration built by Default, Load or Parse.
func (c *EvalConfig) Validate() error {
	if _, err := c.MixtureConfig(); err != nil {
		return err
	}
	if *c.Loss.Eps <= 0 {
		return fmt.Errorf("loss.eps must be positive, got %g", *c.Loss.Eps)
	}
	if _, err := c.MinCriteria(); err != nil {
		return err
	}
	if _, err := c.MissCriteria(); err != nil {
		return err
	}
	if *c.Metrics.MaxGuesses < 1 {
		return fmt.Errorf("metrics.max_guesses must be positive, got %d", *c.Metrics.MaxGuesses)
	}
	if *c.Metrics.MissThreshold <= 0 {
		return fmt.Errorf("metrics.miss_threshold must be positive, got %g", *c.Metrics.MissThreshold)
	}
	if *c.Data.BatchScenes < 1 {
		return fmt.Errorf("data.batch_scenes must be positive, got %d", *c.Data.BatchScenes)
	}
	return nil
}

// MixtureConfig returns the loss settings, rejecting an unknown reduction.
func (c *EvalConfig) MixtureConfig() (losses.MixtureConfig, error) {
	r, err := losses.ParseReduction(*c.Loss.Reduction)
	if err != nil {
		return losses.MixtureConfig{}, err
	}
	return losses.MixtureConfig{Full: *c.Loss.Full, Eps: *c.Loss.Eps, Reduction: r}, nil
}

// MinCriteria parses metrics.min_criteria.
func (c *EvalConfig) MinCriteria() ([]metrics.MinCriterion, error) {
	out := make([]metrics.MinCriterion, len(c.Metrics.MinCriteria))
	for i, s := range c.Metrics.MinCriteria {
		v, err := metrics.ParseMinCriterion(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// MissCriteria parses metrics.miss_criteria.
func (c *EvalConfig) MissCriteria() ([]metrics.MissCriterion, error) {
	out := make([]metrics.MissCriterion, len(c.Metrics.MissCriteria))
	for i, s := range c.Metrics.MissCriteria {
		v, err := metrics.ParseMissCriterion(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// JSON renders the configuration as indented JSON.
func (c *EvalConfig) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
