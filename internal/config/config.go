// Package config parses the CLI flags the scheduler recognizes (§6),
// merges them with an optional .gtestisolate.yaml defaults file, and
// forwards everything else verbatim to the child binary.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved scheduler configuration.
type Config struct {
	JobCount             int
	DeadlineThresholdMS  int64
	SlowThresholdMS      int64
	Filter               string
	AllowDisabledTests   bool
	GTestFormat          bool
	Color                string // "yes", "no", "auto"
	PrintTime            bool
	XMLFile              string
	NumIterations        int
	NoIsolate            bool

	// ChildVector is the command used to invoke the child binary, with any
	// unrecognized flags forwarded verbatim (§6).
	ChildVector []string
}

// FileDefaults are optional defaults loaded from .gtestisolate.yaml: file
// settings are defaults, never overrides, so any explicitly passed flag
// always wins.
type FileDefaults struct {
	JobCount            int    `yaml:"job_count"`
	DeadlineThresholdMS int64  `yaml:"deadline_threshold_ms"`
	SlowThresholdMS     int64  `yaml:"slow_threshold_ms"`
	Color               string `yaml:"gtest_color"`
	XMLFile             string `yaml:"xml_file"`
}

// LoadFileDefaults reads .gtestisolate.yaml from the working directory, if
// present. A missing file is not an error.
func LoadFileDefaults() (*FileDefaults, error) {
	data, err := os.ReadFile(".gtestisolate.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return &FileDefaults{}, nil
		}
		return nil, fmt.Errorf("reading .gtestisolate.yaml: %w", err)
	}
	var fd FileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("parsing .gtestisolate.yaml: %w", err)
	}
	return &fd, nil
}

// DefaultDeadlineThresholdMS and DefaultSlowThresholdMS are the scheduler's
// defaults absent any flag or config-file override, chosen to match
// gtest-parallel-style tooling: a generous per-test ceiling and a slow-test
// threshold that flags outliers without false-positiving normal tests.
const (
	DefaultDeadlineThresholdMS = 90000
	DefaultSlowThresholdMS     = 2000
)

// defaultJobCount is the host CPU count (§4.2 job_count default).
func defaultJobCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Parse interprets args (excluding argv[0]) as the child binary path
// followed by scheduler flags interleaved with pass-through flags, in the
// convention gtest-parallel-style wrappers use: every flag this scheduler
// doesn't recognize is forwarded to the child unchanged.
func Parse(args []string, fd *FileDefaults) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no child binary specified")
	}

	cfg := &Config{
		JobCount:            defaultJobCount(),
		NumIterations:       1,
		Color:               "auto",
		PrintTime:           true,
		DeadlineThresholdMS: DefaultDeadlineThresholdMS,
		SlowThresholdMS:     DefaultSlowThresholdMS,
	}
	if fd != nil {
		if fd.JobCount > 0 {
			cfg.JobCount = fd.JobCount
		}
		if fd.DeadlineThresholdMS > 0 {
			cfg.DeadlineThresholdMS = fd.DeadlineThresholdMS
		}
		if fd.SlowThresholdMS > 0 {
			cfg.SlowThresholdMS = fd.SlowThresholdMS
		}
		if fd.Color != "" {
			cfg.Color = fd.Color
		}
		cfg.XMLFile = fd.XMLFile
	}

	binary := args[0]
	rest := args[1:]

	var forwarded []string
	forwarded = append(forwarded, binary)

	i := 0
	for i < len(rest) {
		a := rest[i]
		switch {
		case a == "-j":
			i++
			if i >= len(rest) {
				return nil, fmt.Errorf("-j requires a value")
			}
			n, err := strconv.Atoi(rest[i])
			if err != nil {
				return nil, fmt.Errorf("invalid -j value %q: %w", rest[i], err)
			}
			cfg.JobCount = n

		case strings.HasPrefix(a, "-j") && a != "-j":
			n, err := strconv.Atoi(strings.TrimPrefix(a, "-j"))
			if err != nil {
				return nil, fmt.Errorf("invalid -j value %q: %w", a, err)
			}
			cfg.JobCount = n

		case strings.HasPrefix(a, "--slow_threshold_ms="):
			v, err := strconv.ParseInt(strings.TrimPrefix(a, "--slow_threshold_ms="), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --slow_threshold_ms: %w", err)
			}
			cfg.SlowThresholdMS = v

		case strings.HasPrefix(a, "--deadline_threshold_ms="):
			v, err := strconv.ParseInt(strings.TrimPrefix(a, "--deadline_threshold_ms="), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --deadline_threshold_ms: %w", err)
			}
			cfg.DeadlineThresholdMS = v

		case strings.HasPrefix(a, "--gtest_filter="):
			cfg.Filter = strings.TrimPrefix(a, "--gtest_filter=")
			forwarded = append(forwarded, a)

		case a == "--gtest_also_run_disabled_tests":
			cfg.AllowDisabledTests = true
			forwarded = append(forwarded, a)

		case a == "--gtest_format":
			cfg.GTestFormat = true

		case strings.HasPrefix(a, "--gtest_color="):
			cfg.Color = strings.TrimPrefix(a, "--gtest_color=")

		case strings.HasPrefix(a, "--gtest_print_time="):
			cfg.PrintTime = strings.TrimPrefix(a, "--gtest_print_time=") != "0"

		case strings.HasPrefix(a, "--gtest_output="):
			v := strings.TrimPrefix(a, "--gtest_output=")
			cfg.XMLFile = strings.TrimPrefix(v, "xml:")

		case strings.HasPrefix(a, "--gtest_repeat="):
			v, err := strconv.Atoi(strings.TrimPrefix(a, "--gtest_repeat="))
			if err != nil {
				return nil, fmt.Errorf("invalid --gtest_repeat: %w", err)
			}
			cfg.NumIterations = v

		case a == "--no_isolate":
			cfg.NoIsolate = true

		case a == "-h" || a == "--help":
			// Help is out of scope for the scheduler core; forward so the
			// child's own --help (if any) still works.
			forwarded = append(forwarded, a)

		default:
			forwarded = append(forwarded, a)
		}
		i++
	}

	cfg.ChildVector = forwarded
	return cfg, nil
}
