package scan

import (
	"fmt"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// buildProgram constructs the SSA representation. InstantiateGenerics
// ensures every generic instantiation exists as its own function with an
// Origin link to the canonical body.
func (s *Scanner) buildProgram() error {
	mode := ssa.InstantiateGenerics | ssa.BareInits

	var pkgs []*ssa.Package
	s.prog, pkgs = ssautil.AllPackages(s.pkgs, mode)
	if s.prog == nil {
		return fmt.Errorf("ssa program construction failed")
	}
	s.prog.Build()

	s.ssaPkgs = make(map[string]*ssa.Package, len(pkgs))
	for _, pkg := range pkgs {
		if pkg != nil {
			s.ssaPkgs[pkg.Pkg.Path()] = pkg
		}
	}
	return nil
}
