package entity

import (
	"go/types"

	"golang.org/x/tools/go/packages"
)

// DeclSet answers whether an entity is part of the scanned program's
// declared metadata, as opposed to being synthesized by the compiler
// (derived types, wrapper and thunk methods, instantiations minted after
// the scan). The layout providers use this predicate to pick between the
// precomputed and lazy paths.
type DeclSet struct {
	paths map[string]struct{}
}

// NewDeclSet records the package paths of the scanned program.
func NewDeclSet(pkgs []*packages.Package) *DeclSet {
	s := &DeclSet{paths: make(map[string]struct{}, len(pkgs))}
	for _, pkg := range pkgs {
		if pkg != nil && pkg.PkgPath != "" {
			s.paths[pkg.PkgPath] = struct{}{}
		}
	}
	return s
}

// ContainsPath reports whether a package path belongs to the scanned program.
func (s *DeclSet) ContainsPath(path string) bool {
	_, ok := s.paths[path]
	return ok
}

// Declared reports whether the entity's definition form is a named
// declaration of one of the scanned packages. Instantiations are judged by
// their generic definition; synthetic wrappers and non-named types are
// never declared metadata.
func (s *DeclSet) Declared(r Ref) bool {
	def := r.Definition()
	switch def.Kind() {
	case KindMethod:
		fn := def.Method()
		if fn.Synthetic != "" {
			return false
		}
		obj := fn.Object()
		if obj == nil || obj.Pkg() == nil {
			return false
		}
		return s.ContainsPath(obj.Pkg().Path())

	case KindType:
		t := def.Type()
		// The method set of *T is part of T's declaration; every other
		// derived form (slices, maps, channels, funcs) is synthesized.
		if ptr, ok := t.(*types.Pointer); ok {
			t = types.Unalias(ptr.Elem())
		}
		named, ok := t.(*types.Named)
		if !ok {
			return false
		}
		obj := named.Obj()
		if obj == nil || obj.Pkg() == nil {
			return false
		}
		return s.ContainsPath(obj.Pkg().Path())
	}
	return false
}
