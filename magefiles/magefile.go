//go:build mage

// Package main provides build targets for the conveyor monitor using Mage.
//
// Usage:
//
//	mage build        Compile conveyor-monitor to bin/
//	mage buildPi      Cross-compile for the Raspberry Pi (linux/arm64)
//	mage test         Run all tests
//	mage integration  Run only the end-to-end station tests
//	mage lint         Run golangci-lint
//	mage clean        Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "conveyor-monitor"
	binaryDir  = "bin"
	cmdDir     = "./cmd/conveyor-monitor"
)

// Build compiles the daemon for the host to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// BuildPi cross-compiles the daemon for the station's Raspberry Pi.
func BuildPi() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	env := map[string]string{
		"GOOS":        "linux",
		"GOARCH":      "arm64",
		"CGO_ENABLED": "0",
	}
	out := filepath.Join(binaryDir, binaryName+"-linux-arm64")
	return sh.RunWithV(env, binGo, "build", "-v", "-trimpath", "-o", out, cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Integration runs the end-to-end station tests.
func Integration() error {
	return sh.RunV(binGo, "test", "-v", "-run", "^TestIntegration", "./internal/")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// All builds, lints and tests.
func All() {
	mg.SerialDeps(Lint, Test, Build)
}
