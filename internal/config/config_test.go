package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NoArgsIsError(t *testing.T) {
	_, err := Parse(nil, nil)
	require.Error(t, err)
}

func TestParse_DefaultsAppliedWhenNoFileDefaults(t *testing.T) {
	cfg, err := Parse([]string{"./child_test"}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultDeadlineThresholdMS), cfg.DeadlineThresholdMS)
	assert.Equal(t, int64(DefaultSlowThresholdMS), cfg.SlowThresholdMS)
	assert.Equal(t, "auto", cfg.Color)
	assert.True(t, cfg.PrintTime)
	assert.Equal(t, 1, cfg.NumIterations)
}

func TestParse_FileDefaultsAreOverridableByFlags(t *testing.T) {
	fd := &FileDefaults{JobCount: 4, SlowThresholdMS: 500, Color: "no"}

	cfg, err := Parse([]string{"./child_test", "-j8", "--gtest_color=yes"}, fd)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.JobCount, "explicit -j8 flag wins over the file default of 4")
	assert.Equal(t, int64(500), cfg.SlowThresholdMS, "file default used when no flag overrides it")
	assert.Equal(t, "yes", cfg.Color, "explicit --gtest_color wins over the file default")
}

func TestParse_RecognizedFlagsSetFields(t *testing.T) {
	cfg, err := Parse([]string{
		"./child_test",
		"--gtest_filter=Suite.*",
		"--gtest_also_run_disabled_tests",
		"--gtest_format",
		"--gtest_print_time=0",
		"--gtest_output=xml:out.xml",
		"--gtest_repeat=3",
		"--deadline_threshold_ms=1000",
		"--slow_threshold_ms=100",
		"--no_isolate",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Suite.*", cfg.Filter)
	assert.True(t, cfg.AllowDisabledTests)
	assert.True(t, cfg.GTestFormat)
	assert.False(t, cfg.PrintTime)
	assert.Equal(t, "out.xml", cfg.XMLFile)
	assert.Equal(t, 3, cfg.NumIterations)
	assert.Equal(t, int64(1000), cfg.DeadlineThresholdMS)
	assert.Equal(t, int64(100), cfg.SlowThresholdMS)
	assert.True(t, cfg.NoIsolate)
}

func TestParse_UnrecognizedFlagsForwardedToChild(t *testing.T) {
	cfg, err := Parse([]string{"./child_test", "--gtest_shuffle", "--gtest_random_seed=1"}, nil)
	require.NoError(t, err)

	assert.Contains(t, cfg.ChildVector, "--gtest_shuffle")
	assert.Contains(t, cfg.ChildVector, "--gtest_random_seed=1")
	assert.Equal(t, "./child_test", cfg.ChildVector[0])
}

func TestParse_JMissingValue(t *testing.T) {
	_, err := Parse([]string{"./child_test", "-j"}, nil)
	require.Error(t, err)
}

func TestParse_JAttachedValue(t *testing.T) {
	cfg, err := Parse([]string{"./child_test", "-j12"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.JobCount)
}

func TestLoadFileDefaults_MissingFileIsNotAnError(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	fd, err := LoadFileDefaults()
	require.NoError(t, err)
	assert.Equal(t, &FileDefaults{}, fd)
}
