package entity

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeNameConsistency(t *testing.T) {
	// TypeName must produce identical results for the same type.
	names := NewNameCache()

	basicType := types.Typ[types.String]

	name1 := names.TypeName(basicType)
	name2 := names.TypeName(basicType)
	require.Equal(t, name1, name2, "TypeName produced different results for same type")

	ptrType := types.NewPointer(basicType)
	ptrName1 := names.TypeName(ptrType)
	ptrName2 := names.TypeName(ptrType)
	require.Equal(t, ptrName1, ptrName2, "TypeName produced different results for same pointer type")

	require.Equal(t, "string", name1)
	require.Equal(t, "*string", ptrName1)
}

func TestTypeNameWithNil(t *testing.T) {
	names := NewNameCache()
	require.Empty(t, names.TypeName(nil))
	require.Empty(t, names.FuncName(nil))
}

func TestTypeNameCaching(t *testing.T) {
	names := NewNameCache()

	stringType := types.Typ[types.String]
	intType := types.Typ[types.Int]

	ptrString := types.NewPointer(stringType)
	sliceString := types.NewSlice(stringType)

	for range 10 {
		require.Equal(t, "string", names.TypeName(stringType))
		require.Equal(t, "int", names.TypeName(intType))
		require.Equal(t, "*string", names.TypeName(ptrString))
		require.Equal(t, "[]string", names.TypeName(sliceString))
	}
}

func TestTypeNameNamedTypes(t *testing.T) {
	names := NewNameCache()

	pkg := types.NewPackage("github.com/example/test", "test")
	typename := types.NewTypeName(0, pkg, "MyType", nil)
	named := types.NewNamed(typename, types.Typ[types.Int], nil)

	require.Equal(t, "github.com/example/test.MyType", names.TypeName(named))
	require.Equal(t, "*github.com/example/test.MyType", names.TypeName(types.NewPointer(named)))
	require.Equal(t, "[]github.com/example/test.MyType", names.TypeName(types.NewSlice(named)))
}

func TestTypeNameUnaliases(t *testing.T) {
	// An alias names its target; the scan never distinguishes the two.
	names := NewNameCache()

	pkg := types.NewPackage("github.com/example/test", "test")
	alias := types.NewAlias(types.NewTypeName(0, pkg, "Text", nil), types.Typ[types.String])

	require.Equal(t, "string", names.TypeName(alias))
}

func TestRefKeyPrefixesKind(t *testing.T) {
	// A type and a method with the same printed name must get distinct
	// keys.
	names := NewNameCache()

	pkg := types.NewPackage("github.com/example/test", "test")
	typename := types.NewTypeName(0, pkg, "Thing", nil)
	named := types.NewNamed(typename, types.Typ[types.Int], nil)

	key := names.RefKey(TypeRef(named))
	require.Equal(t, "type:github.com/example/test.Thing", key)

	require.Empty(t, names.RefKey(Ref{}))
}

func TestMultipleNameCaches(t *testing.T) {
	// Caches are independent per scan but agree on names.
	cache1 := NewNameCache()
	cache2 := NewNameCache()

	typ := types.NewPointer(types.Typ[types.Bool])

	name1 := cache1.TypeName(typ)
	name2 := cache2.TypeName(typ)
	require.Equal(t, name1, name2)
	require.Equal(t, "*bool", name1)
}
