package scan

import (
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/715d/aotscan/internal/entity"
)

// shadowDependencies derives the dependencies specific to one generic
// instantiation: its dictionary entries. The shared body's own edges are
// never re-derived here; they live on the canonical node.
//
// The dictionary holds, in order, one type-handle entry per type argument,
// then one method-handle entry per interface-constrained call the
// canonical body performs directly on a type parameter, resolved against
// the corresponding argument.
func (s *Scanner) shadowDependencies(fn *ssa.Function) []Node {
	owner := entity.MethodRef(fn)
	args := fn.TypeArgs()

	deps := make([]Node, 0, len(args))
	for _, arg := range args {
		deps = append(deps, DictEntryNode(owner, s.canon(arg), nil))
	}

	origin := fn.Origin()
	if origin == nil || origin.Blocks == nil {
		return deps
	}
	for _, b := range origin.Blocks {
		for _, instr := range b.Instrs {
			call, ok := instr.(ssa.CallInstruction)
			if !ok || !call.Common().IsInvoke() {
				continue
			}
			tp, ok := types.Unalias(call.Common().Value.Type()).(*types.TypeParam)
			if !ok {
				continue
			}
			idx := tp.Index()
			if idx < 0 || idx >= len(args) {
				continue
			}
			target := s.canon(args[idx])
			deps = append(deps, DictEntryNode(owner, target, call.Common().Method))
		}
	}
	return deps
}
