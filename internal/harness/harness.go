// Package harness provides integration testing utilities for the scanner.
//
// A test case is a directory under testdata/ containing a small Go module
// and an expected.yaml describing what a scan of it must mark: reachable
// methods, stubbed bodies, vtable slices and dictionary layouts.
package harness

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"

	"github.com/stretchr/testify/require"

	"github.com/715d/aotscan/internal/scan"
	"github.com/715d/aotscan/pkg/aotscan"
)

// BuildConfiguration represents a single build configuration to test.
type BuildConfiguration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// BuildTags are the build tags to use when loading packages.
	BuildTags []string `yaml:"build_tags"`

	// EnableCGo indicates whether CGo should be enabled.
	EnableCGo bool `yaml:"enable_cgo"`

	// GOOS sets the target operating system.
	GOOS string `yaml:"goos,omitempty"`

	// GOARCH sets the target architecture.
	GOARCH string `yaml:"goarch,omitempty"`

	// Roots names extra scan entry points, as "pkgpath.Func".
	Roots []string `yaml:"roots,omitempty"`

	// ExpectedMethods lists qualified method names the scan must mark
	// reachable.
	ExpectedMethods []string `yaml:"expected_methods"`

	// AbsentMethods lists qualified method names the scan must NOT mark.
	AbsentMethods []string `yaml:"absent_methods,omitempty"`

	// StubbedMethods lists methods whose bodies must have been replaced
	// with throwing stubs.
	StubbedMethods []string `yaml:"stubbed_methods,omitempty"`

	// VTables lists expected vtable slices by type name.
	VTables []VTableExpectation `yaml:"vtables,omitempty"`

	// ExpectedErrors lists any expected error messages for this
	// configuration.
	ExpectedErrors []string `yaml:"expected_errors,omitempty"`
}

// VTableExpectation describes the slot list a concrete type must get.
type VTableExpectation struct {
	// Type is the type name as printed by the scanner.
	Type string `yaml:"type"`

	// Slots are the method names expected in the slice, in any order.
	Slots []string `yaml:"slots"`
}

// TestCase represents a single test scenario.
type TestCase struct {
	// Dir is the directory containing the test code.
	Dir string `yaml:"-"`

	// Repository contains optional git repository configuration for
	// scanning external code.
	Repository *RepoConfig `yaml:"repository,omitempty"`

	// BuildConfigurations defines multiple build configurations to test.
	BuildConfigurations []BuildConfiguration `yaml:"build_configurations"`
}

// RepoConfig represents configuration for scanning external repositories.
type RepoConfig struct {
	// URL is the git repository URL.
	URL string `yaml:"url"`

	// Ref is the git reference (commit, branch, or tag) to checkout.
	Ref string `yaml:"ref"`

	// Subdir is an optional subdirectory within the repository to scan.
	Subdir string `yaml:"subdir,omitempty"`
}

// TestHarness manages test execution.
type TestHarness struct {
	// root is the root directory for test data.
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case with all its build configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.BuildConfigurations, "test case has no build configurations")

	var results []ConfigurationResult
	var allSuccess = true

	for _, cfg := range tc.BuildConfigurations {
		cfgResult := h.runConfiguration(t, tc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.BuildConfigurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.BuildConfigurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration executes a scan for a single build configuration.
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg BuildConfiguration) *ConfigurationResult {
	t.Helper()
	loaderConfig := &LoaderConfig{
		BuildTags: cfg.BuildTags,
		EnableCGo: cfg.EnableCGo,
		GOOS:      cfg.GOOS,
		GOARCH:    cfg.GOARCH,
	}

	var pkgs []*packages.Package
	if tc.Repository != nil {
		pkgs = LoadRepositoryPackages(t, tc.Repository, loaderConfig)
	} else {
		loaderConfig.Dir = filepath.Join(h.root, tc.Dir)
		pkgs = LoadPackages(t, loaderConfig)
	}

	scanner := aotscan.NewScanner(aotscan.ScannerOptions{ExtraRoots: cfg.Roots})
	result, err := scanner.Scan(pkgs)
	if err != nil {
		for _, expectedErr := range cfg.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}

	cfgResult := ConfigurationResult{Configuration: cfg, Result: result}
	validateResults(&cfgResult, result)
	return &cfgResult
}

// ConfigurationResult represents the result of running a single build
// configuration.
type ConfigurationResult struct {
	// Configuration is the build configuration that was run.
	Configuration BuildConfiguration

	// Result is the raw scan result.
	Result *aotscan.Result

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this
	// configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each build configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Skipped indicates if the test was skipped.
	Skipped bool

	// Message provides a summary of the result.
	Message string
}

func validateResults(cfgResult *ConfigurationResult, result *aotscan.Result) {
	cfg := cfgResult.Configuration
	res := result.Scan()
	names := res.Names()

	marked := make(map[string]struct{})
	for _, name := range res.MethodNames() {
		marked[name] = struct{}{}
	}

	stubbed := make(map[string]struct{})
	vtables := make(map[string]map[string]struct{})
	for _, n := range res.Nodes() {
		switch n.Kind {
		case scan.NodeMethodBody:
			if _, failed := res.ImportFailure(n.Fn); failed {
				stubbed[names.FuncName(n.Fn)] = struct{}{}
			}
		case scan.NodeVTableSlot:
			key := names.TypeName(n.Type)
			if vtables[key] == nil {
				vtables[key] = make(map[string]struct{})
			}
			vtables[key][n.Sym.Name()] = struct{}{}
		}
	}

	var details []string
	success := true

	var missing []string
	for _, want := range cfg.ExpectedMethods {
		if _, ok := marked[want]; !ok {
			missing = append(missing, want)
			success = false
		}
	}

	var unexpected []string
	for _, notWant := range cfg.AbsentMethods {
		if _, ok := marked[notWant]; ok {
			unexpected = append(unexpected, notWant)
			success = false
		}
	}

	sort.Strings(missing)
	sort.Strings(unexpected)

	for _, m := range missing {
		details = append(details, "Should have been marked reachable: "+m)
	}
	for _, u := range unexpected {
		details = append(details, "Should not have been marked reachable: "+u)
	}

	for _, want := range cfg.StubbedMethods {
		if _, ok := stubbed[want]; !ok {
			details = append(details, "Should have been stubbed: "+want)
			success = false
		}
	}

	for _, exp := range cfg.VTables {
		got, ok := vtables[exp.Type]
		if !ok {
			details = append(details, "No vtable slots marked for type: "+exp.Type)
			success = false
			continue
		}
		for _, slot := range exp.Slots {
			if _, ok := got[slot]; !ok {
				details = append(details, fmt.Sprintf("Missing vtable slot %s.%s", exp.Type, slot))
				success = false
			}
		}
	}

	var message string
	if success {
		message = fmt.Sprintf("All %d expected methods found (%d marked)", len(cfg.ExpectedMethods), len(marked))
	} else {
		message = fmt.Sprintf("Test failed: %d missing, %d unexpected", len(missing), len(unexpected))
	}

	cfgResult.Success = success
	cfgResult.Message = message
	cfgResult.Details = details
}
