package aotscan

import (
	"bytes"
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

func testdataDir(t *testing.T, name string) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "get current file path")
	return filepath.Join(filepath.Dir(filename), "..", "..", "testdata", name)
}

func loadTestProgram(t *testing.T, name string) []*packages.Package {
	t.Helper()
	pkgs, err := LoadPackages(t.Context(), LoaderOptions{
		Dir: testdataDir(t, name),
		Env: append(os.Environ(), "CGO_ENABLED=0"),
	})
	require.NoError(t, err)
	return pkgs
}

func TestLoadPackages(t *testing.T) {
	pkgs := loadTestProgram(t, "interface-dispatch")
	require.Len(t, pkgs, 1)
	require.Equal(t, "example.com/shapes", pkgs[0].PkgPath)
	require.NotNil(t, pkgs[0].Types)
	require.NotEmpty(t, pkgs[0].Syntax)
}

func TestLoadPackagesBadDir(t *testing.T) {
	_, err := LoadPackages(t.Context(), LoaderOptions{
		Dir: testdataDir(t, "no-such-case"),
	})
	require.Error(t, err)
}

func TestScanPipeline(t *testing.T) {
	pkgs := loadTestProgram(t, "interface-dispatch")

	result, err := NewScanner(ScannerOptions{}).Scan(pkgs)
	require.NoError(t, err)

	require.Contains(t, result.MethodNames(), "example.com/shapes.main")
	require.NotEmpty(t, result.ReachableMethods())
	require.NotNil(t, result.VTables())
	require.NotNil(t, result.Dictionaries())
}

func TestScanPipelineVTableQuery(t *testing.T) {
	pkgs := loadTestProgram(t, "interface-dispatch")

	result, err := NewScanner(ScannerOptions{}).Scan(pkgs)
	require.NoError(t, err)

	obj := pkgs[0].Types.Scope().Lookup("Square")
	require.NotNil(t, obj)

	slice, err := result.VTable(types.NewPointer(obj.Type()))
	require.NoError(t, err)
	require.False(t, slice.Deferred)
	require.Len(t, slice.Slots, 1)
	require.Equal(t, "Area", slice.Slots[0].Method.Name())
}

func TestScanPipelineSnapshot(t *testing.T) {
	pkgs := loadTestProgram(t, "generic-shared")

	result, err := NewScanner(ScannerOptions{}).Scan(pkgs)
	require.NoError(t, err)

	snap, err := result.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, snap.Methods)
	require.NotEmpty(t, snap.Dictionaries)

	// Two scans of the same program serialize identically.
	again, err := NewScanner(ScannerOptions{}).Scan(pkgs)
	require.NoError(t, err)
	snapAgain, err := again.Snapshot()
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, snap.Encode(&a))
	require.NoError(t, snapAgain.Encode(&b))
	require.Equal(t, a.Bytes(), b.Bytes())
}
