// Package aotscan exposes the pre-compilation scanner: load a program,
// scan it to a fixed point, and query the resulting layout providers.
package aotscan

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/tools/go/packages"
)

// defaultLoadMode loads everything SSA construction needs. NeedTypesInfo
// dominates load cost but is unavoidable for whole-program analysis.
const defaultLoadMode = packages.NeedDeps |
	packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// LoaderOptions configures program loading.
type LoaderOptions struct {
	// Packages are the package patterns to load.
	Packages []string

	// BuildTags are build tags to apply during loading.
	BuildTags []string

	// Dir is the directory to load from; empty means the current
	// working directory.
	Dir string

	// Env overrides the loading environment when non-nil.
	Env []string
}

// LoadPackages loads the program to scan. The scan is a whole-program
// analysis of the shipped artifact, so test files are excluded.
func LoadPackages(ctx context.Context, opts LoaderOptions) ([]*packages.Package, error) {
	patterns := opts.Packages
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    defaultLoadMode,
		Env:     opts.Env,
	}
	if opts.Dir != "" {
		cfg.Dir = opts.Dir
	}
	if len(opts.BuildTags) > 0 {
		cfg.BuildFlags = append(cfg.BuildFlags, "-tags", strings.Join(opts.BuildTags, ","))
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching patterns: %v", patterns)
	}

	var errorMessages []string
	for _, pkg := range pkgs {
		for _, err := range pkg.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("package %s: %v", pkg.PkgPath, err))
		}
	}
	if len(errorMessages) > 0 {
		return nil, fmt.Errorf("package errors:\n%s", strings.Join(errorMessages, "\n"))
	}

	return dedupe(pkgs), nil
}

// dedupe drops duplicate package variants so each import path is scanned
// once.
func dedupe(pkgs []*packages.Package) []*packages.Package {
	seen := make(map[string]struct{}, len(pkgs))
	out := pkgs[:0]
	for _, pkg := range pkgs {
		if _, ok := seen[pkg.PkgPath]; ok {
			continue
		}
		seen[pkg.PkgPath] = struct{}{}
		out = append(out, pkg)
	}
	return out
}
