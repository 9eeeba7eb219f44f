package metrics

import (
	"strconv"

	"github.com/Noofbiz/forecasteval/forecast"
)

// MinCriterion selects the best mode for Brier.
type MinCriterion uint8

const (
	// MinFDE picks the mode closest to the target at the last valid step.
	MinFDE MinCriterion = iota
	// MinADE picks the mode with the smallest masked sum of per-step
	// distances. The sum is not divided by the number of valid steps.
	MinADE
)

// ParseMinCriterion maps "FDE" or "ADE" to a MinCriterion.
func ParseMinCriterion(s string) (MinCriterion, error) {
	switch s {
	case "FDE":
		return MinFDE, nil
	case "ADE":
		return MinADE, nil
	}
	return 0, &forecast.ConfigError{Option: "criterion", Value: s}
}

func (c MinCriterion) String() string {
	switch c {
	case MinFDE:
		return "FDE"
	case MinADE:
		return "ADE"
	}
	return "MinCriterion(" + strconv.Itoa(int(c)) + ")"
}

// MissCriterion selects the error compared against the miss threshold.
type MissCriterion uint8

const (
	// MissFDE uses the smallest final displacement over the kept modes.
	MissFDE MissCriterion = iota
	// MissMAXDE uses, over the kept modes, the smallest worst-step
	// masked displacement.
	MissMAXDE
)

// ParseMissCriterion maps "FDE" or "MAXDE" to a MissCriterion.
func ParseMissCriterion(s string) (MissCriterion, error) {
	switch s {
	case "FDE":
		return MissFDE, nil
	case "MAXDE":
		return MissMAXDE, nil
	}
	return 0, &forecast.ConfigError{Option: "criterion", Value: s}
}

func (c MissCriterion) String() string {
	switch c {
	case MissFDE:
		return "FDE"
	case MissMAXDE:
		return "MAXDE"
	}
	return "MissCriterion(" + strconv.Itoa(int(c)) + ")"
}
