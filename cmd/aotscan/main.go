// Package main implements the CLI driver for the aotscan scanner.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/715d/aotscan/internal/export"
	"github.com/715d/aotscan/internal/scan"
	"github.com/715d/aotscan/pkg/aotscan"
)

// Config holds all command-line configuration options for the scanner.
type Config struct {
	Packages  []string // the Go packages to scan
	Verbose   bool     // enables detailed output and statistics
	JSON      bool     // enables JSON output format
	BuildTags []string // build tags to use during package loading
	Profile   bool     // enables CPU and memory profiling
	Roots     []string // extra entry points, as "pkgpath.Func"
	Snapshot  string   // path to write the scan snapshot to

	Neo4jURI      string // when set, export the dependency graph to Neo4j
	Neo4jUser     string
	Neo4jPassword string
	Neo4jClean    bool // wipe previously exported scan data first
}

const exitError = 2

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "aotscan [packages...]",
		Short: "Scan a Go program for ahead-of-time compilation",
		Long: `aotscan computes the set of method bodies, runtime types, vtable slots
and generic dictionary entries an ahead-of-time compilation of a Go
program needs, by expanding dependencies from the program entry points
to a fixed point.

The result can be printed, serialized to a snapshot file, or exported
to Neo4j for dependency-graph inspection.`,
		Example: `  aotscan ./...                          # Scan all packages
  aotscan -v ./cmd/server                # Verbose output
  aotscan --snapshot scan.bin ./...      # Write a snapshot file
  aotscan --json . > scan.json           # JSON report to file
  aotscan --neo4j-uri bolt://host ./...  # Export the graph`,
		Args:               cobra.ArbitraryArgs,
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("aotscan version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.BuildTags, "build-tags", []string{}, "Build tags to use during package loading")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.Roots, "root", []string{}, "Extra scan roots in the form pkgpath.Func (repeatable)")
	rootCmd.PersistentFlags().StringVar(&cfg.Snapshot, "snapshot", "", "Write the scan snapshot to this file")
	rootCmd.PersistentFlags().StringVar(&cfg.Neo4jURI, "neo4j-uri", "", "Neo4j URI to export the dependency graph to (e.g. bolt://localhost:7687)")
	rootCmd.PersistentFlags().StringVar(&cfg.Neo4jUser, "neo4j-user", "neo4j", "Neo4j username")
	rootCmd.PersistentFlags().StringVar(&cfg.Neo4jPassword, "neo4j-password", "", "Neo4j password")
	rootCmd.PersistentFlags().BoolVar(&cfg.Neo4jClean, "neo4j-clean", false, "Delete previously exported scan data before exporting")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Packages = args
	} else {
		cfg.Packages = []string{"./..."}
	}

	slog.Info("starting scan", "packages", cfg.Packages)

	report, result, err := runScan(cmd.Context(), &cfg)
	if err != nil {
		return errWithCode(fmt.Errorf("scan: %w", err), exitError)
	}

	if cfg.Snapshot != "" {
		if err := writeSnapshot(result, cfg.Snapshot); err != nil {
			return errWithCode(fmt.Errorf("write snapshot: %w", err), exitError)
		}
	}

	if cfg.Neo4jURI != "" {
		if err := exportGraph(cmd.Context(), &cfg, result.Scan()); err != nil {
			return errWithCode(fmt.Errorf("export graph: %w", err), exitError)
		}
	}

	if err := writeReport(report, &cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}
	return nil
}

// Report summarizes a scan for human or JSON consumption.
type Report struct {
	Methods        []string        `json:"methods"`
	ImportFailures []ImportFailure `json:"import_failures,omitempty"`
	Stats          struct {
		Nodes        int           `json:"nodes"`
		Methods      int           `json:"methods"`
		RuntimeTypes int           `json:"runtime_types"`
		VTableSlots  int           `json:"vtable_slots"`
		DictEntries  int           `json:"dict_entries"`
		ScanDuration time.Duration `json:"scan_duration"`
	} `json:"stats"`
}

// ImportFailure reports a method body the scan replaced with a throwing
// stub.
type ImportFailure struct {
	Method string `json:"method"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func runScan(ctx context.Context, cfg *Config) (*Report, *aotscan.Result, error) {
	start := time.Now()

	slog.Info("loading packages", "packages", cfg.Packages)
	if len(cfg.BuildTags) > 0 {
		slog.Info("using build tags", "tags", cfg.BuildTags)
	}

	pkgs, err := aotscan.LoadPackages(ctx, aotscan.LoaderOptions{
		Packages:  cfg.Packages,
		BuildTags: cfg.BuildTags,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading packages: %w", err)
	}
	slog.Info("loaded packages", "num", len(pkgs))

	slog.Info("running scan")
	scanner := aotscan.NewScanner(aotscan.ScannerOptions{ExtraRoots: cfg.Roots})
	result, err := scanner.Scan(pkgs)
	if err != nil {
		return nil, nil, fmt.Errorf("scan packages: %w", err)
	}
	duration := time.Since(start)
	slog.Info("scan completed", "dur", duration, "nodes", result.Scan().NumNodes())

	return buildReport(result, duration), result, nil
}

func buildReport(result *aotscan.Result, dur time.Duration) *Report {
	var r Report
	r.Stats.ScanDuration = dur

	res := result.Scan()
	names := res.Names()
	r.Stats.Nodes = res.NumNodes()

	for _, n := range res.Nodes() {
		switch n.Kind {
		case scan.NodeMethodBody, scan.NodeShadowMethod:
			r.Stats.Methods++
		case scan.NodeRuntimeType:
			r.Stats.RuntimeTypes++
		case scan.NodeVTableSlot:
			r.Stats.VTableSlots++
		case scan.NodeDictEntry:
			r.Stats.DictEntries++
		}
	}

	r.Methods = res.MethodNames()

	for _, fn := range res.ReachableMethods() {
		fail, ok := res.ImportFailure(fn)
		if !ok {
			continue
		}
		r.ImportFailures = append(r.ImportFailures, ImportFailure{
			Method: names.FuncName(fn),
			Kind:   fail.Kind.String(),
			Detail: fail.Detail,
		})
	}

	return &r
}

func writeSnapshot(result *aotscan.Result, path string) error {
	snap, err := result.Snapshot()
	if err != nil {
		return err
	}
	if err := snap.WriteFile(path); err != nil {
		return err
	}
	slog.Info("snapshot written", "path", path, "methods", len(snap.Methods))
	return nil
}

func exportGraph(ctx context.Context, cfg *Config, res *scan.Result) error {
	exporter, err := export.NewNeo4jExporter(export.Neo4jConfig{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
	})
	if err != nil {
		return err
	}
	defer func() { _ = exporter.Close(ctx) }()

	if cfg.Neo4jClean {
		if err := exporter.Clean(ctx); err != nil {
			return fmt.Errorf("cleaning previous export: %w", err)
		}
	}
	return exporter.Export(ctx, res)
}

func writeReport(report *Report, cfg *Config) error {
	if cfg.JSON {
		data, err := json.MarshalIndent(jOutput{
			Methods:        report.Methods,
			ImportFailures: report.ImportFailures,
			Stats:          report.Stats,
			Version:        version,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling json output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printSummary(report, cfg)
	return nil
}

func printSummary(report *Report, cfg *Config) {
	header := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)

	header.Printf("scan: %d nodes in %s\n", report.Stats.Nodes, report.Stats.ScanDuration.Round(time.Millisecond))
	fmt.Printf("  methods:       %d\n", report.Stats.Methods)
	fmt.Printf("  runtime types: %d\n", report.Stats.RuntimeTypes)
	fmt.Printf("  vtable slots:  %d\n", report.Stats.VTableSlots)
	fmt.Printf("  dict entries:  %d\n", report.Stats.DictEntries)

	if len(report.ImportFailures) > 0 {
		warn.Printf("  stubbed bodies: %d\n", len(report.ImportFailures))
		for _, f := range report.ImportFailures {
			warn.Printf("    %s (%s)\n", f.Method, f.Kind)
		}
	}

	if cfg.Verbose {
		fmt.Println()
		for _, m := range report.Methods {
			fmt.Println(m)
		}
	}
}

type jOutput struct {
	Methods        []string        `json:"methods"`
	ImportFailures []ImportFailure `json:"import_failures,omitempty"`
	Stats          any             `json:"stats"`
	Version        string          `json:"version"`
	Timestamp      string          `json:"timestamp"`
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		logger := slog.New(handler)
		slog.SetDefault(logger)
	}

	if !cfg.Profile {
		return nil
	}

	// Start CPU profiling.
	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}
