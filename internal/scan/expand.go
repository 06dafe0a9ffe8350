package scan

import (
	"errors"
	"fmt"
	"go/types"
	"log/slog"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/aotscan/internal/entity"
)

// expand computes the dependency edges for one newly-reached node. It is
// total: every recoverable failure is absorbed here, so the graph engine
// never observes an error.
func (s *Scanner) expand(n Node) []Node {
	switch n.Kind {
	case NodeMethodBody:
		deps, err := s.importBody(n.Fn)
		if err != nil {
			// Discard any partial result and import the synthetic
			// throwing replacement body instead. The replacement is
			// guaranteed well-formed, so this path cannot fail.
			var ierr *ImportError
			if !errors.As(err, &ierr) {
				ierr = &ImportError{Kind: ErrUnresolved, Fn: n.Fn, Detail: err.Error()}
			}
			s.importFailures.Store(n.Fn, ierr)
			return s.stubDependencies(n.Fn)
		}
		return deps

	case NodeShadowMethod:
		// The shared body's dependencies belong to the canonical node;
		// complete it eagerly, then derive only what is specific to this
		// instantiation.
		s.graph.Ensure(MethodBodyNode(n.Fn.Origin()))
		return s.shadowDependencies(n.Fn)

	case NodeRuntimeType:
		return s.expandRuntimeType(n.Type)

	case NodeVTableSlot:
		return s.expandVTableSlot(n)

	case NodeDictEntry:
		return s.expandDictEntry(n)
	}
	panic(fmt.Sprintf("scan: unhandled node kind %d", n.Kind))
}

// stubDependencies returns the dependency set of the synthetic replacement
// body that deterministically raises the import error at run time: a plain
// panic with a string payload, whose only dependency is the string runtime
// type. The original error stays queryable on the result for diagnostics.
func (s *Scanner) stubDependencies(fn *ssa.Function) []Node {
	_ = fn // the stub's shape is identical for every failed body
	return []Node{RuntimeTypeNode(s.canon(types.Typ[types.String]))}
}

// expandRuntimeType handles a type constructible at run time: it feeds the
// invoke-site cross product for concrete types, derives the dictionary
// entries of instantiated generic types, and recurses into the type
// structure.
func (s *Scanner) expandRuntimeType(t types.Type) []Node {
	if _, isIface := t.Underlying().(*types.Interface); !isIface {
		s.recordRuntimeType(t)
	}

	var deps []Node
	ref := func(elem types.Type) {
		deps = append(deps, RuntimeTypeNode(s.canon(elem)))
	}

	switch t := t.(type) {
	case *types.Pointer:
		ref(t.Elem())
	case *types.Slice:
		ref(t.Elem())
	case *types.Array:
		ref(t.Elem())
	case *types.Chan:
		ref(t.Elem())
	case *types.Map:
		ref(t.Key())
		ref(t.Elem())
	case *types.Struct:
		for i := range t.NumFields() {
			ref(t.Field(i).Type())
		}
	case *types.Named:
		// An instantiated generic type owns a dictionary: one type
		// handle per type argument.
		if args := t.TypeArgs(); args != nil && args.Len() > 0 {
			owner := entity.TypeRef(s.canon(t))
			for i := range args.Len() {
				arg := s.canon(args.At(i))
				deps = append(deps, DictEntryNode(owner, arg, nil))
			}
		}
		ref(t.Underlying())
	case *types.Basic, *types.Interface, *types.Signature, *types.Tuple, *types.TypeParam:
		// No structure to walk: signatures and tuples contribute types
		// only where values of those types are built, and type
		// parameters resolve during instantiation.
	default:
		// Tolerate unknown future type forms instead of aborting the
		// whole-program analysis.
		slog.Warn("skipping unhandled type in scan", "type", fmt.Sprintf("%T", t))
	}
	return deps
}

// expandVTableSlot resolves the concrete method occupying one dispatch
// slot and depends on its body.
func (s *Scanner) expandVTableSlot(n Node) []Node {
	c := n.Type
	mset := s.prog.MethodSets.MethodSet(c)
	sel := mset.Lookup(n.Sym.Pkg(), n.Sym.Name())
	if sel == nil {
		// Interface satisfied through the pointer method set.
		if _, isPtr := c.(*types.Pointer); !isPtr {
			ptrMset := s.prog.MethodSets.MethodSet(types.NewPointer(c))
			sel = ptrMset.Lookup(n.Sym.Pkg(), n.Sym.Name())
		}
	}
	if sel == nil {
		// The implements relation said yes but lookup failed; possible
		// with exotic embedding. Conservatively there is nothing to pin.
		slog.Warn("vtable slot target not found",
			"type", s.names.TypeName(c), "method", n.Sym.Name())
		return nil
	}
	fn := s.prog.MethodValue(sel)
	if fn == nil {
		return nil
	}
	return []Node{methodNode(fn)}
}

// expandDictEntry depends on the lookup target: the type handle's runtime
// type and, for method handles, the resolved target method.
func (s *Scanner) expandDictEntry(n Node) []Node {
	var deps []Node
	if n.Type != nil {
		deps = append(deps, RuntimeTypeNode(s.canon(n.Type)))
	}
	if n.Sym != nil && n.Type != nil {
		mset := s.prog.MethodSets.MethodSet(n.Type)
		if sel := mset.Lookup(n.Sym.Pkg(), n.Sym.Name()); sel != nil {
			if fn := s.prog.MethodValue(sel); fn != nil {
				deps = append(deps, methodNode(fn))
			}
		}
	}
	return deps
}
