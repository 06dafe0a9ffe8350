package scan_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/715d/aotscan/internal/scan"
)

// loadProgram loads the testdata module in dir as a standalone program.
func loadProgram(t *testing.T, dir string) []*packages.Package {
	t.Helper()

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "get current file path")
	root := filepath.Join(filepath.Dir(filename), "..", "..", "testdata", dir)

	cfg := &packages.Config{
		Context: t.Context(),
		Dir:     root,
		Env:     append(os.Environ(), "CGO_ENABLED=0"),
		Mode: packages.NeedDeps | packages.NeedName | packages.NeedFiles |
			packages.NeedCompiledGoFiles | packages.NeedImports |
			packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, "./...")
	require.NoError(t, err)
	require.NotEmpty(t, pkgs)
	for _, pkg := range pkgs {
		require.Empty(t, pkg.Errors, "package %s has load errors", pkg.PkgPath)
	}
	return pkgs
}

func runScan(t *testing.T, dir string, cfg scan.Config) *scan.Result {
	t.Helper()

	scanner, err := scan.New(loadProgram(t, dir), cfg)
	require.NoError(t, err)

	res, err := scanner.Scan()
	require.NoError(t, err)
	return res
}

func methodSet(res *scan.Result) map[string]struct{} {
	marked := make(map[string]struct{})
	for _, name := range res.MethodNames() {
		marked[name] = struct{}{}
	}
	return marked
}

func TestScanInterfaceDispatch(t *testing.T) {
	res := runScan(t, "interface-dispatch", scan.Config{})
	marked := methodSet(res)

	for _, want := range []string{
		"example.com/shapes.main",
		"example.com/shapes.describe",
		"(*example.com/shapes.Circle).Area",
		"(*example.com/shapes.Square).Area",
	} {
		require.Contains(t, marked, want)
	}

	// Triangle never flows into the interface; Perimeter is never
	// invoked. Neither gets a body.
	for _, notWant := range []string{
		"(*example.com/shapes.Triangle).Area",
		"(*example.com/shapes.Circle).Perimeter",
		"(*example.com/shapes.Square).Perimeter",
	} {
		require.NotContains(t, marked, notWant)
	}
}

func TestScanVTableSlotsFollowInvokes(t *testing.T) {
	res := runScan(t, "interface-dispatch", scan.Config{})
	names := res.Names()

	slots := make(map[string][]string)
	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeVTableSlot {
			continue
		}
		key := names.TypeName(n.Type)
		slots[key] = append(slots[key], n.Sym.Name())
	}

	require.Equal(t, []string{"Area"}, slots["*example.com/shapes.Circle"])
	require.Equal(t, []string{"Area"}, slots["*example.com/shapes.Square"])
	require.NotContains(t, slots, "*example.com/shapes.Triangle")
}

func TestScanMissingBodyBecomesStub(t *testing.T) {
	res := runScan(t, "missing-body", scan.Config{})

	node, ok := res.LookupMethod("example.com/extern.checksum")
	require.True(t, ok, "stubbed function must still be marked reachable")
	require.Equal(t, scan.NodeMethodBody, node.Kind)

	fail, failed := res.ImportFailure(node.Fn)
	require.True(t, failed)
	require.Equal(t, scan.ErrMissingBody, fail.Kind)
	require.ErrorContains(t, fail, "example.com/extern.checksum")

	// The stub body raises a fixed error value; its dependencies are the
	// same for every stub.
	deps := res.StubDependencies(node.Fn)
	require.Len(t, deps, 1)
	require.Equal(t, scan.NodeRuntimeType, deps[0].Kind)
	require.Equal(t, deps, res.Edges(node))
}

func TestScanGenericBodySharing(t *testing.T) {
	res := runScan(t, "generic-shared", scan.Config{})
	names := res.Names()

	var canonical, shadows int
	for _, n := range res.Nodes() {
		switch n.Kind {
		case scan.NodeMethodBody:
			if n.Fn.TypeParams().Len() > 0 {
				canonical++
				// Shared bodies are imported exactly once no matter how
				// many instantiations reference them.
				require.Equal(t, 1, res.ImportCount(n.Fn), "canonical body %s", names.FuncName(n.Fn))
			}
		case scan.NodeShadowMethod:
			if strings.Contains(names.FuncName(n.Fn), "Box[") {
				shadows++
			}
			// A shadow never re-derives the shared body's edges: its own
			// edges are dictionary entries only.
			for _, dep := range res.Edges(n) {
				require.Equal(t, scan.NodeDictEntry, dep.Kind,
					"shadow %s leaked a body edge", names.FuncName(n.Fn))
			}
		}
	}

	require.NotZero(t, canonical, "generic canonical bodies must be marked")
	require.GreaterOrEqual(t, shadows, 4, "Get and Set shadows for Box[int] and Box[string]")
}

func TestScanDictionaryOwnersPerInstantiation(t *testing.T) {
	res := runScan(t, "generic-shared", scan.Config{})
	names := res.Names()

	owners := make(map[string]struct{})
	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeDictEntry {
			continue
		}
		key := names.RefKey(n.Owner)
		if strings.Contains(key, "Box[") {
			owners[key] = struct{}{}
		}
	}

	// Box[int] and Box[string] instantiations keep separate dictionaries.
	var intOwners, stringOwners bool
	for key := range owners {
		if strings.Contains(key, "Box[int]") {
			intOwners = true
		}
		if strings.Contains(key, "Box[string]") {
			stringOwners = true
		}
	}
	require.True(t, intOwners, "expected dictionary owners for Box[int], got %v", owners)
	require.True(t, stringOwners, "expected dictionary owners for Box[string], got %v", owners)
}

func TestScanExtraRoots(t *testing.T) {
	res := runScan(t, "generic-shared", scan.Config{
		ExtraRoots: []string{"example.com/boxes.unusedHelper"},
	})
	marked := methodSet(res)
	require.Contains(t, marked, "example.com/boxes.unusedHelper")
}

func TestScanUnknownExtraRoot(t *testing.T) {
	scanner, err := scan.New(loadProgram(t, "generic-shared"), scan.Config{
		ExtraRoots: []string{"example.com/boxes.noSuchFunc"},
	})
	require.NoError(t, err)

	_, err = scanner.Scan()
	require.ErrorContains(t, err, "noSuchFunc")
}

func TestScanRejectsEmptyInput(t *testing.T) {
	_, err := scan.New(nil, scan.Config{})
	require.Error(t, err)
}
