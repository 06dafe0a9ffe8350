package layout_test

import (
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/715d/aotscan/internal/entity"
	"github.com/715d/aotscan/internal/layout"
	"github.com/715d/aotscan/internal/scan"
)

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
	return pkgs
}

func scanProgram(t *testing.T, pkgs []*packages.Package) *scan.Result {
	t.Helper()
	scanner, err := scan.New(pkgs, scan.Config{})
	require.NoError(t, err)
	res, err := scanner.Scan()
	require.NoError(t, err)
	return res
}

// lookupType resolves a named type from the loaded program's root package.
func lookupType(t *testing.T, pkgs []*packages.Package, name string) types.Type {
	t.Helper()
	for _, pkg := range pkgs {
		if obj := pkg.Types.Scope().Lookup(name); obj != nil {
			return obj.Type()
		}
	}
	t.Fatalf("type %s not found in loaded packages", name)
	return nil
}

func TestVTablePrecomputedForDispatchedTypes(t *testing.T) {
	pkgs := loadProgram(t, "interface-dispatch")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewVTableProvider(res)
	require.NoError(t, err)

	circle := types.NewPointer(lookupType(t, pkgs, "Circle"))
	slice, err := provider.Slice(circle)
	require.NoError(t, err)
	require.False(t, slice.Deferred, "dispatched declared type must be precomputed")
	require.Len(t, slice.Slots, 1)
	require.Equal(t, "Area", slice.Slots[0].Method.Name())
	require.Equal(t, 0, slice.Slots[0].Index)

	// Repeated queries return the same precomputed slice.
	again, err := provider.Slice(circle)
	require.NoError(t, err)
	require.Same(t, slice, again)
}

func TestVTableGapForUnpredictedDeclaredType(t *testing.T) {
	pkgs := loadProgram(t, "interface-dispatch")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewVTableProvider(res)
	require.NoError(t, err)

	// Triangle is declared in the program but never flows into an
	// interface, so the scan predicted no slots for it. Asking anyway is
	// a scanner under-prediction, which is fatal.
	triangle := types.NewPointer(lookupType(t, pkgs, "Triangle"))
	_, err = provider.Slice(triangle)

	var gap *layout.ScanGapError
	require.ErrorAs(t, err, &gap)
	require.Equal(t, layout.GapVTable, gap.Kind)
	require.Contains(t, gap.Error(), "Triangle")
}

func TestVTableDeferredForSynthesizedTypes(t *testing.T) {
	pkgs := loadProgram(t, "interface-dispatch")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewVTableProvider(res)
	require.NoError(t, err)

	// A derived type the program never declares gets an on-demand slice,
	// never a gap error.
	synthesized := types.NewSlice(lookupType(t, pkgs, "Circle"))
	slice, err := provider.Slice(synthesized)
	require.NoError(t, err)
	require.True(t, slice.Deferred)

	// The lazy path caches: the same query returns the cached slice.
	again, err := provider.Slice(synthesized)
	require.NoError(t, err)
	require.Same(t, slice, again)
}

func TestDictionaryPrecomputedPerInstantiation(t *testing.T) {
	pkgs := loadProgram(t, "generic-shared")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewDictionaryProvider(res)
	require.NoError(t, err)

	names := res.Names()
	checked := 0
	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeDictEntry {
			continue
		}
		dict, err := provider.Layout(n.Owner)
		require.NoError(t, err, "owner %s", names.RefKey(n.Owner))
		require.False(t, dict.Deferred)
		require.NotEmpty(t, dict.Entries)
		require.Equal(t, n.Owner, dict.Owner)
		checked++
	}
	require.NotZero(t, checked, "generic program must mark dictionary entries")
}

func TestDictionaryEntriesAreDeduplicated(t *testing.T) {
	pkgs := loadProgram(t, "generic-shared")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewDictionaryProvider(res)
	require.NoError(t, err)

	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeDictEntry {
			continue
		}
		dict, err := provider.Layout(n.Owner)
		require.NoError(t, err)

		seen := make(map[string]struct{}, len(dict.Entries))
		for _, e := range dict.Entries {
			key := res.Names().TypeName(e.Type)
			if e.Method != nil {
				key += "." + e.Method.Id()
			}
			_, dup := seen[key]
			require.False(t, dup, "duplicate entry %s in dictionary", key)
			seen[key] = struct{}{}
		}
	}
}

func TestDictionaryGapForUnpredictedDeclaredInstantiation(t *testing.T) {
	pkgs := loadProgram(t, "generic-shared")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewDictionaryProvider(res)
	require.NoError(t, err)

	// Box is declared in the program, but Box[float64] is never
	// instantiated there, so the scan predicted no dictionary for it.
	// Asking anyway is a scanner under-prediction, which is fatal.
	box := lookupType(t, pkgs, "Box")
	inst, err := types.Instantiate(types.NewContext(), box, []types.Type{types.Typ[types.Float64]}, false)
	require.NoError(t, err)

	_, err = provider.Layout(entity.TypeRef(inst))

	var gap *layout.ScanGapError
	require.ErrorAs(t, err, &gap)
	require.Equal(t, layout.GapDictionary, gap.Kind)
	require.Contains(t, gap.Error(), "Box[float64]")
}

func TestDictionaryDeferredForSynthesizedEntities(t *testing.T) {
	pkgs := loadProgram(t, "generic-shared")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewDictionaryProvider(res)
	require.NoError(t, err)

	// A derived type the program never declares gets an on-demand
	// layout, never a gap error.
	synthesized := entity.TypeRef(types.NewSlice(types.Typ[types.Int]))
	dict, err := provider.Layout(synthesized)
	require.NoError(t, err)
	require.True(t, dict.Deferred)

	// The lazy path caches: the same query returns the cached layout.
	again, err := provider.Layout(synthesized)
	require.NoError(t, err)
	require.Same(t, dict, again)
}

func TestDictionaryRejectsInvalidRef(t *testing.T) {
	pkgs := loadProgram(t, "generic-shared")
	res := scanProgram(t, pkgs)

	provider, err := layout.NewDictionaryProvider(res)
	require.NoError(t, err)

	_, err = provider.Layout(entity.Ref{})
	require.Error(t, err)
}
