// Package entity defines value-comparable identities for the types and
// methods tracked by the scanner. A Ref is the unique key for every
// per-entity map in the scan and in the layout providers.
package entity

import (
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// Kind discriminates the two entity kinds a Ref can denote.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindType
	KindMethod
)

// Ref identifies a single compiler-visible entity: a type or a method,
// including generic arguments. Refs are comparable and usable as map keys;
// two Refs comparing equal always denote the same entity.
type Ref struct {
	kind Kind
	typ  types.Type
	fn   *ssa.Function
}

// TypeRef returns the identity of a type entity.
func TypeRef(t types.Type) Ref {
	if t == nil {
		return Ref{}
	}
	return Ref{kind: KindType, typ: types.Unalias(t)}
}

// MethodRef returns the identity of a function or method entity.
func MethodRef(fn *ssa.Function) Ref {
	if fn == nil {
		return Ref{}
	}
	return Ref{kind: KindMethod, fn: fn}
}

// Kind reports which variant of the union this Ref holds.
func (r Ref) Kind() Kind { return r.kind }

// IsValid reports whether the Ref denotes an entity at all.
func (r Ref) IsValid() bool { return r.kind != KindInvalid }

// Type returns the type this Ref denotes, or nil for method Refs.
func (r Ref) Type() types.Type { return r.typ }

// Method returns the function this Ref denotes, or nil for type Refs.
func (r Ref) Method() *ssa.Function { return r.fn }

// IsInstantiation reports whether the entity is a generic instantiation
// rather than a definition.
func (r Ref) IsInstantiation() bool {
	switch r.kind {
	case KindMethod:
		return r.fn.Origin() != nil && r.fn.Origin() != r.fn
	case KindType:
		if named, ok := r.typ.(*types.Named); ok {
			return named.TypeArgs() != nil && named.TypeArgs().Len() > 0
		}
	}
	return false
}

// Definition maps an instantiation to its generic definition form: the
// Origin function for methods, the generic origin for named types. Refs
// that are already definitions map to themselves.
func (r Ref) Definition() Ref {
	switch r.kind {
	case KindMethod:
		if o := r.fn.Origin(); o != nil && o != r.fn {
			return MethodRef(o)
		}
		return r
	case KindType:
		if named, ok := r.typ.(*types.Named); ok {
			if named.TypeArgs() != nil && named.TypeArgs().Len() > 0 {
				return TypeRef(named.Origin())
			}
		}
		return r
	}
	return r
}
