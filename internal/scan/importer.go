package scan

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// ImportErrorKind classifies the program-level errors a body import can
// hit. These errors never escape the scan: expansion substitutes a
// synthetic throwing body instead.
type ImportErrorKind uint8

const (
	// ErrMissingBody: the function has no SSA body (bodiless declaration,
	// external linkage).
	ErrMissingBody ImportErrorKind = iota + 1
	// ErrUnresolved: the body references an entity that cannot be
	// resolved to a definition.
	ErrUnresolved
)

func (k ImportErrorKind) String() string {
	switch k {
	case ErrMissingBody:
		return "missing-body"
	case ErrUnresolved:
		return "unresolved"
	}
	return "unknown"
}

// ImportError describes why a method body could not be imported. It is a
// value returned from importBody, never panicked: control flow across the
// importer/engine boundary is always an explicit branch.
type ImportError struct {
	Kind   ImportErrorKind
	Fn     *ssa.Function
	Detail string
}

func (e *ImportError) Error() string {
	switch e.Kind {
	case ErrMissingBody:
		return fmt.Sprintf("method body of %s is not available: %s", e.Fn, e.Detail)
	case ErrUnresolved:
		return fmt.Sprintf("unresolved reference in %s: %s", e.Fn, e.Detail)
	}
	return fmt.Sprintf("import error in %s: %s", e.Fn, e.Detail)
}

// importBody derives the dependency edges of fn's body. On failure it
// returns a typed ImportError and no edges; partial results are never
// exposed.
func (s *Scanner) importBody(fn *ssa.Function) ([]Node, error) {
	count, _ := s.importCounts.Load(fn)
	s.importCounts.Store(fn, count+1)

	if fn.Blocks == nil {
		return nil, &ImportError{Kind: ErrMissingBody, Fn: fn, Detail: "no function body"}
	}

	var deps []Node
	var operandSpace [64]*ssa.Value

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			rands := instr.Operands(operandSpace[:0])

			switch instr := instr.(type) {
			case ssa.CallInstruction:
				call := instr.Common()
				switch {
				case call.IsInvoke():
					// Virtual dispatch: record the invoke site so every
					// reachable runtime type implementing the interface
					// gets a slot for this method.
					if iface, ok := call.Value.Type().Underlying().(*types.Interface); ok {
						s.recordInvoke(iface, call.Method)
						deps = append(deps, RuntimeTypeNode(s.canon(call.Value.Type())))
					}
				case call.StaticCallee() != nil:
					deps = append(deps, methodNode(call.StaticCallee()))
				default:
					// Dynamic call through a function value. The callee
					// is one of the address-taken functions, all of which
					// are marked reachable below; the site itself adds no
					// edge.
					if _, ok := call.Value.(*ssa.Builtin); !ok && call.Value == nil {
						return nil, &ImportError{Kind: ErrUnresolved, Fn: fn, Detail: "call without callee"}
					}
				}
				// The call-position operand is not an address-taken
				// function reference.
				if len(rands) > 0 {
					rands = rands[1:]
				}

			case *ssa.MakeInterface:
				// Boxing a value materializes its runtime type.
				deps = append(deps, RuntimeTypeNode(s.canon(instr.X.Type())))

			case *ssa.TypeAssert:
				deps = append(deps, RuntimeTypeNode(s.canon(instr.AssertedType)))

			case *ssa.ChangeInterface:
				deps = append(deps, RuntimeTypeNode(s.canon(instr.Type())))

			case *ssa.MakeClosure:
				if closureFn, ok := instr.Fn.(*ssa.Function); ok {
					deps = append(deps, methodNode(closureFn))
				}

			case *ssa.Panic:
				// A raised value's type must exist at run time.
				deps = append(deps, RuntimeTypeNode(s.canon(instr.X.Type())))
			}

			// Any remaining function operand is address-taken and may be
			// called through a function value later.
			for _, op := range rands {
				if g, ok := (*op).(*ssa.Function); ok {
					deps = append(deps, methodNode(g))
				}
			}
		}
	}
	return deps, nil
}
