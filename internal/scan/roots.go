package scan

import (
	"fmt"
	"go/ast"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

// collectRoots assembles the root set: main and init functions of the
// scanned packages, functions pinned by linkage directives (their address
// is taken outside the program's view), and any caller-supplied extras.
func (s *Scanner) collectRoots() ([]*ssa.Function, error) {
	var roots []*ssa.Function
	seen := make(map[*ssa.Function]struct{})
	add := func(fn *ssa.Function) {
		if fn == nil {
			return
		}
		if _, ok := seen[fn]; ok {
			return
		}
		seen[fn] = struct{}{}
		roots = append(roots, fn)
	}

	pinned := s.directivePinnedFuncs()

	for _, origPkg := range s.pkgs {
		pkg := s.ssaPkgs[origPkg.PkgPath]
		if pkg == nil {
			continue
		}

		if pkg.Pkg.Name() == "main" {
			add(pkg.Func("main"))
		}
		for _, member := range pkg.Members {
			fn, ok := member.(*ssa.Function)
			if !ok || fn == nil {
				continue
			}
			if fn.Name() == "init" || strings.HasPrefix(fn.Name(), "init#") {
				add(fn)
			}
			if _, ok := pinned[origPkg.PkgPath+"."+fn.Name()]; ok {
				add(fn)
			}
		}
	}

	for _, name := range s.cfg.ExtraRoots {
		fn, err := s.lookupRoot(name)
		if err != nil {
			return nil, err
		}
		add(fn)
	}

	if len(roots) == 0 {
		return nil, fmt.Errorf("no scan roots found in %d packages", len(s.pkgs))
	}
	return roots, nil
}

// lookupRoot resolves a "pkgpath.FuncName" root specification.
func (s *Scanner) lookupRoot(name string) (*ssa.Function, error) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return nil, fmt.Errorf("malformed root %q: want \"pkgpath.Func\"", name)
	}
	pkg := s.ssaPkgs[name[:dot]]
	if pkg == nil {
		return nil, fmt.Errorf("root %q: package %q not in scanned set", name, name[:dot])
	}
	fn := pkg.Func(name[dot+1:])
	if fn == nil {
		return nil, fmt.Errorf("root %q: no such function", name)
	}
	return fn, nil
}

// directivePinnedFuncs scans package syntax for functions whose linkage
// makes them callable from outside the scanned code: //go:linkname targets
// and //export (cgo) functions. Keys are "pkgpath.FuncName".
func (s *Scanner) directivePinnedFuncs() map[string]struct{} {
	pinned := make(map[string]struct{})
	var mu sync.Mutex

	var wg errgroup.Group
	wg.SetLimit(runtime.NumCPU())
	for _, pkg := range s.pkgs {
		wg.Go(func() error {
			names := pinnedFuncNames(pkg)
			if len(names) == 0 {
				return nil
			}
			mu.Lock()
			for _, name := range names {
				pinned[pkg.PkgPath+"."+name] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = wg.Wait() // workers never return errors

	return pinned
}

func pinnedFuncNames(pkg *packages.Package) []string {
	var names []string
	for _, file := range pkg.Syntax {
		if file == nil {
			continue
		}
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Doc == nil {
				continue
			}
			for _, comment := range fd.Doc.List {
				if hasLinkageDirective(comment.Text) {
					names = append(names, fd.Name.Name)
					break
				}
			}
		}
	}
	return names
}

// hasLinkageDirective recognizes //go:linkname and cgo //export comments.
// Directives never have a space after the slashes.
func hasLinkageDirective(comment string) bool {
	text := strings.TrimPrefix(comment, "//")
	if strings.HasPrefix(text, " ") {
		return false
	}
	if strings.HasPrefix(text, "export ") {
		return true
	}
	after, ok := strings.CutPrefix(text, "go:linkname")
	return ok && (after == "" || strings.HasPrefix(after, " "))
}
