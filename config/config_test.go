package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/forecasteval/forecast"
	"github.com/Noofbiz/forecasteval/losses"
	"github.com/Noofbiz/forecasteval/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	mc, err := c.MixtureConfig()
	require.NoError(t, err)
	assert.Equal(t, losses.MixtureConfig{Eps: losses.DefaultEps, Reduction: losses.ReductionMean}, mc)
	assert.Equal(t, metrics.DefaultMaxGuesses, *c.Metrics.MaxGuesses)
	assert.Equal(t, metrics.DefaultMissThreshold, *c.Metrics.MissThreshold)
	assert.True(t, *c.Metrics.KeepInvalidFinalStep)

	mins, err := c.MinCriteria()
	require.NoError(t, err)
	assert.Equal(t, []metrics.MinCriterion{metrics.MinFDE, metrics.MinADE}, mins)
	misses, err := c.MissCriteria()
	require.NoError(t, err)
	assert.Equal(t, []metrics.MissCriterion{metrics.MissFDE, metrics.MissMAXDE}, misses)
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(`{
		"loss": {"reduction": "sum", "eps": null},
		"metrics": {"miss_criteria": ["MAXDE"]},
		"output": null
	}`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "sum", *c.Loss.Reduction)
	assert.Equal(t, losses.DefaultEps, *c.Loss.Eps)
	assert.Equal(t, []string{"MAXDE"}, c.Metrics.MissCriteria)
	assert.Equal(t, []string{"FDE", "ADE"}, c.Metrics.MinCriteria)
	assert.Equal(t, 32, *c.Data.BatchScenes)
	assert.Equal(t, "info", *c.Output.LogLevel)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data": {"batch_scenes": 4}}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, *c.Data.BatchScenes)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"reduction":      `{"loss": {"reduction": "median"}}`,
		"min criterion":  `{"metrics": {"min_criteria": ["MAXDE"]}}`,
		"miss criterion": `{"metrics": {"miss_criteria": ["ADE"]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.ErrorIs(t, c.Validate(), forecast.ErrConfiguration)
		})
	}

	ranges := map[string]string{
		"eps":          `{"loss": {"eps": -1}}`,
		"max guesses":  `{"metrics": {"max_guesses": -2}}`,
		"threshold":    `{"metrics": {"miss_threshold": -0.5}}`,
		"batch scenes": `{"data": {"batch_scenes": -3}}`,
	}
	for name, doc := range ranges {
		t.Run(name, func(t *testing.T) {
			c, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.Error(t, c.Validate())
		})
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	c, err := Parse([]byte(`{"loss": {"reduction": "sum"}, "metrics": {"max_guesses": 3}}`))
	require.NoError(t, err)

	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-max-guesses", "1", "-miss-criteria", "maxde, fde", "-joint=false"}))
	f.Apply(c)

	assert.Equal(t, "sum", *c.Loss.Reduction, "unset flag must not override the file")
	assert.Equal(t, 1, *c.Metrics.MaxGuesses)
	assert.Equal(t, []string{"MAXDE", "FDE"}, c.Metrics.MissCriteria)
	assert.False(t, *c.Loss.Joint)
	require.NoError(t, c.Validate())
}

func TestJSONRoundTrip(t *testing.T) {
	c := Default()
	data, err := c.JSON()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}
