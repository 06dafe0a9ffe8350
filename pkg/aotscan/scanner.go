package aotscan

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"

	"github.com/715d/aotscan/internal/layout"
	"github.com/715d/aotscan/internal/scan"
	"github.com/715d/aotscan/internal/snapshot"
)

// ScannerOptions holds configuration options for the scanner.
type ScannerOptions struct {
	// ExtraRoots names additional entry points to scan from, in the
	// form "pkgpath.Func".
	ExtraRoots []string
}

// Scanner orchestrates the scanning process: lower the program to SSA,
// run the dependency engine to a fixed point, then partition the marked
// nodes into layout providers.
type Scanner struct {
	opts ScannerOptions
}

// NewScanner creates a new scanner with the given options.
func NewScanner(opts ScannerOptions) *Scanner {
	return &Scanner{opts: opts}
}

// Scan runs the full scanning pipeline on the given packages.
func (s *Scanner) Scan(pkgs []*packages.Package) (*Result, error) {
	inner, err := scan.New(pkgs, scan.Config{ExtraRoots: s.opts.ExtraRoots})
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	res, err := inner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	// Providers partition the node set once, up front. Queries against
	// them never rescan.
	vtables, err := layout.NewVTableProvider(res)
	if err != nil {
		return nil, fmt.Errorf("build vtable provider: %w", err)
	}
	dicts, err := layout.NewDictionaryProvider(res)
	if err != nil {
		return nil, fmt.Errorf("build dictionary provider: %w", err)
	}

	return &Result{scan: res, vtables: vtables, dicts: dicts}, nil
}

// Result bundles the fixed-point node set with the layout providers
// derived from it.
type Result struct {
	scan    *scan.Result
	vtables *layout.VTableProvider
	dicts   *layout.DictionaryProvider
}

// Scan returns the underlying node-level result.
func (r *Result) Scan() *scan.Result { return r.scan }

// VTables returns the vtable layout provider.
func (r *Result) VTables() *layout.VTableProvider { return r.vtables }

// Dictionaries returns the generic dictionary layout provider.
func (r *Result) Dictionaries() *layout.DictionaryProvider { return r.dicts }

// ReachableMethods returns the method bodies marked by the scan, in
// discovery order.
func (r *Result) ReachableMethods() []*ssa.Function {
	return r.scan.ReachableMethods()
}

// MethodNames returns the qualified names of all reachable method
// bodies, in discovery order.
func (r *Result) MethodNames() []string {
	return r.scan.MethodNames()
}

// VTable computes the vtable slice for a concrete type.
func (r *Result) VTable(t types.Type) (*layout.Slice, error) {
	return r.vtables.Slice(t)
}

// Snapshot serializes the scan outcome into a stable snapshot.
func (r *Result) Snapshot() (*snapshot.Snapshot, error) {
	return snapshot.Build(r.scan, r.vtables, r.dicts)
}
