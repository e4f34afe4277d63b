//go:build mage

// Package main provides build targets for the tether project using Mage.
//
// Usage:
//
//	mage build     Compile the tether binary to bin/
//	mage test      Run all tests
//	mage lint      Run golangci-lint
//	mage clean     Remove build artifacts
//	mage install   Install tether to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "tether"
	binaryDir  = "bin"
	cmdDir     = "./cmd/tether"
)

// Build compiles the tether binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Install installs the tether binary to GOPATH/bin.
func Install() error {
	return sh.RunV(binGo, "install", cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
