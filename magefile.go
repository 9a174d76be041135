//go:build mage

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "amiri"

// Build builds Amiri for Linux with Green Tea GC
func Build() error {
	fmt.Println("Building Amiri for Linux with Go 1.25 + Green Tea GC...")
	env := map[string]string{
		"GOOS":         "linux",
		"GOARCH":       "amd64",
		"GOEXPERIMENT": "greenteagc",
		"CGO_ENABLED":  "0",
	}
	return sh.RunWith(env, "go", "build", "-o", binary+"-linux-amd64", "./cmd/amiri")
}

// BuildLocal builds Amiri for current platform
func BuildLocal() error {
	fmt.Printf("Building Amiri for %s/%s...\n", runtime.GOOS, runtime.GOARCH)
	return sh.Run("go", "build", "-o", binary, "./cmd/amiri")
}

// Test runs unit tests
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-v", "./...")
}

// Integration runs tests against a real PostgreSQL (DATABASE_URL)
func Integration() error {
	fmt.Println("Running integration tests...")
	return sh.Run("go", "test", "-v", "-tags", "integration", "./...")
}

// Demo seeds the demo dataset and starts the server
func Demo() error {
	mg.Deps(BuildLocal)
	if os.Getenv("DATABASE_URL") != "" {
		if err := sh.RunV("./"+binary, "seed"); err != nil {
			return err
		}
	}
	return sh.RunV("./"+binary, "serve")
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning build artifacts...")
	_ = os.Remove(binary)
	_ = os.Remove(binary + "-linux-amd64")
	return nil
}

// Update upgrades all Go dependencies
func Update() error {
	fmt.Println("Updating dependencies...")
	if err := sh.Run("go", "get", "-u", "./..."); err != nil {
		return err
	}
	return sh.Run("go", "mod", "tidy")
}

// Fmt runs gofmt on all Go files
func Fmt() error {
	fmt.Println("Formatting code...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet on all Go files
func Vet() error {
	fmt.Println("Vetting code...")
	return sh.Run("go", "vet", "./...")
}

// Bench runs benchmarks
func Bench() error {
	fmt.Println("Running benchmarks...")
	return sh.Run("go", "test", "-bench=.", "./...")
}

// Deps downloads dependencies
func Deps() error {
	fmt.Println("Downloading dependencies...")
	return sh.Run("go", "mod", "download")
}

// CI runs all checks for continuous integration
func CI() error {
	mg.SerialDeps(Deps, Fmt, Vet, Test)
	fmt.Println("All CI checks passed!")
	return nil
}
