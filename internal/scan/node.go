// Package scan implements the pre-compilation whole-program scanner: it
// marks every method, runtime type, dispatch slot, and generic dictionary
// entry the program can possibly need, running the dependency graph engine
// to a fixed point over SSA method bodies.
package scan

import (
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/aotscan/internal/entity"
)

// NodeKind is the closed set of dependency-node kinds the expansion step
// handles. The expansion switch matches these exhaustively; adding a kind
// means extending the switch, which fails loudly on an unhandled value.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota

	// NodeMethodBody is a function or method whose body is imported for
	// dependencies. For shared generic code this is the canonical form.
	NodeMethodBody

	// NodeShadowMethod is a fully-instantiated generic method sharing its
	// compiled body with a canonical method. Expanding it guarantees the
	// canonical node is expanded, then derives only the
	// instantiation-specific dictionary dependencies.
	NodeShadowMethod

	// NodeRuntimeType is a type that can be the dynamic type of an
	// interface value at run time.
	NodeRuntimeType

	// NodeVTableSlot records that a concrete type must provide a dispatch
	// slot for one interface method.
	NodeVTableSlot

	// NodeDictEntry is one generic-context lookup entry (a type or method
	// handle) required by an instantiation.
	NodeDictEntry
)

// String returns the node kind name used in diagnostics and graph export.
func (k NodeKind) String() string {
	switch k {
	case NodeMethodBody:
		return "method-body"
	case NodeShadowMethod:
		return "shadow-method"
	case NodeRuntimeType:
		return "runtime-type"
	case NodeVTableSlot:
		return "vtable-slot"
	case NodeDictEntry:
		return "dict-entry"
	}
	return "invalid"
}

// Node is one unit of the whole-program dependency graph. Nodes are
// comparable values; the populated fields depend on Kind:
//
//	NodeMethodBody    Fn
//	NodeShadowMethod  Fn (instantiation; Fn.Origin() is the canonical form)
//	NodeRuntimeType   Type
//	NodeVTableSlot    Type (concrete type), Sym (interface method)
//	NodeDictEntry     Owner, and Type and/or Sym (lookup target)
type Node struct {
	Kind  NodeKind
	Fn    *ssa.Function
	Type  types.Type
	Sym   *types.Func
	Owner entity.Ref
}

// MethodBodyNode returns the node for a directly-compiled method body.
func MethodBodyNode(fn *ssa.Function) Node {
	return Node{Kind: NodeMethodBody, Fn: fn}
}

// ShadowMethodNode returns the node for a generic instantiation that
// shares code with its canonical method.
func ShadowMethodNode(fn *ssa.Function) Node {
	return Node{Kind: NodeShadowMethod, Fn: fn}
}

// RuntimeTypeNode returns the node for a type constructible at run time.
// The type must already be canonicalized by the scanner.
func RuntimeTypeNode(t types.Type) Node {
	return Node{Kind: NodeRuntimeType, Type: t}
}

// VTableSlotNode returns the node requiring concrete type c to carry a
// dispatch slot for interface method m.
func VTableSlotNode(c types.Type, m *types.Func) Node {
	return Node{Kind: NodeVTableSlot, Type: c, Sym: m}
}

// DictEntryNode returns one dictionary lookup entry owned by a generic
// instantiation. target is the type handle; m, when non-nil, makes this a
// method-handle entry resolved against target.
func DictEntryNode(owner entity.Ref, target types.Type, m *types.Func) Node {
	return Node{Kind: NodeDictEntry, Owner: owner, Type: target, Sym: m}
}

// methodNode picks the method-body or shadow variant for fn: generic
// instantiations become shadow nodes, everything else a plain body node.
func methodNode(fn *ssa.Function) Node {
	if o := fn.Origin(); o != nil && o != fn {
		return ShadowMethodNode(fn)
	}
	return MethodBodyNode(fn)
}
