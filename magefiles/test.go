//go:build mage

package main

import "github.com/magefile/mage/sh"

// Test runs all tests with race detection.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover runs all tests and writes a coverage profile.
func Cover() error {
	return sh.RunV(binGo, "test", "-coverprofile=coverage.out", "./...")
}
