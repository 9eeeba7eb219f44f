package config

import (
	"flag"
	"strings"
)

// Flags binds the configuration to command-line flags. Only flags given
// explicitly on the command line override the loaded configuration.
type Flags struct {
	fs *flag.FlagSet

	full          *bool
	eps           *float64
	reduction     *string
	joint         *bool
	maxGuesses    *int
	minCriteria   *string
	missCriteria  *string
	missThreshold *float64
	keepInvalid   *bool
	predictions   *string
	targets       *string
	batchScenes   *int
	csv           *string
	plotDir       *string
	plotSamples   *int
	logLevel      *string
}

// BindFlags registers one flag per configuration value on fs. The flag
// defaults shown in the usage text come from Default.
func BindFlags(fs *flag.FlagSet) *Flags {
	d := Default()
	return &Flags{
		fs:            fs,
		full:          fs.Bool("full", *d.Loss.Full, "include the 0.5*log(2*pi) term in the Gaussian NLL"),
		eps:           fs.Float64("eps", *d.Loss.Eps, "variance floor of the Gaussian NLL"),
		reduction:     fs.String("reduction", *d.Loss.Reduction, "loss reduction: mean, sum or none"),
		joint:         fs.Bool("joint", *d.Loss.Joint, "sum agent NLLs within each scene before mixing"),
		maxGuesses:    fs.Int("max-guesses", *d.Metrics.MaxGuesses, "number of most probable modes scored by the metrics"),
		minCriteria:   fs.String("min-criteria", strings.Join(d.Metrics.MinCriteria, ","), "comma-separated Brier criteria (FDE, ADE)"),
		missCriteria:  fs.String("miss-criteria", strings.Join(d.Metrics.MissCriteria, ","), "comma-separated miss-rate criteria (FDE, MAXDE)"),
		missThreshold: fs.Float64("miss-threshold", *d.Metrics.MissThreshold, "distance above which a sample is a miss"),
		keepInvalid:   fs.Bool("keep-invalid-final-step", *d.Metrics.KeepInvalidFinalStep, "score samples whose final step is unobserved"),
		predictions:   fs.String("pred", *d.Data.Predictions, "glob pattern for prediction CSV files"),
		targets:       fs.String("target", *d.Data.Targets, "glob pattern for target CSV files"),
		batchScenes:   fs.Int("batch-scenes", *d.Data.BatchScenes, "scenes per evaluation batch"),
		csv:           fs.String("out-csv", *d.Output.CSV, "path of the per-batch evaluation CSV"),
		plotDir:       fs.String("plot-dir", *d.Output.PlotDir, "if set, write best-mode plots to this directory"),
		plotSamples:   fs.Int("plot-samples", *d.Output.PlotSamples, "number of samples plotted"),
		logLevel:      fs.String("log-level", *d.Output.LogLevel, "debug, info, warn, error or fatal"),
	}
}

// Apply copies every explicitly set flag into c. Call it after fs.Parse.
func (f *Flags) Apply(c *EvalConfig) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "full":
			c.Loss.Full = f.full
		case "eps":
			c.Loss.Eps = f.eps
		case "reduction":
			c.Loss.Reduction = f.reduction
		case "joint":
			c.Loss.Joint = f.joint
		case "max-guesses":
			c.Metrics.MaxGuesses = f.maxGuesses
		case "min-criteria":
			c.Metrics.MinCriteria = splitList(*f.minCriteria)
		case "miss-criteria":
			c.Metrics.MissCriteria = splitList(*f.missCriteria)
		case "miss-threshold":
			c.Metrics.MissThreshold = f.missThreshold
		case "keep-invalid-final-step":
			c.Metrics.KeepInvalidFinalStep = f.keepInvalid
		case "pred":
			c.Data.Predictions = f.predictions
		case "target":
			c.Data.Targets = f.targets
		case "batch-scenes":
			c.Data.BatchScenes = f.batchScenes
		case "out-csv":
			c.Output.CSV = f.csv
		case "plot-dir":
			c.Output.PlotDir = f.plotDir
		case "plot-samples":
			c.Output.PlotSamples = f.plotSamples
		case "log-level":
			c.Output.LogLevel = f.logLevel
		}
	})
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
