//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target - build the binary
var Default = Build

// Build builds the gtestisolate binary
func Build() error {
	return sh.Run("go", "build", "-o", "bin/gtestisolate", "./cmd/gtestisolate")
}

// Clean removes build artifacts
func Clean() error {
	return sh.Rm("bin")
}

// Test namespace for testing commands
type Test mg.Namespace

// All runs the full test suite
func (Test) All() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs tests with the race detector, exercising the scheduler's
// concurrent channel fan-in.
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Coverage runs tests with coverage profiling
func (Test) Coverage() error {
	return sh.RunV("go", "test", "-coverprofile=coverage.out", "./...")
}

// Lint namespace for static checks
type Lint mg.Namespace

// Format checks code formatting
func (Lint) Format() error {
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	if out != "" {
		return fmt.Errorf("unformatted files:\n%s", out)
	}
	return nil
}

// Vet runs go vet
func (Lint) Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// QA runs format, vet, and the full test suite.
func QA() error {
	if err := (Lint{}).Format(); err != nil {
		return fmt.Errorf("format check failed: %w", err)
	}
	if err := (Lint{}).Vet(); err != nil {
		return fmt.Errorf("vet failed: %w", err)
	}
	if err := (Test{}).All(); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	return nil
}
