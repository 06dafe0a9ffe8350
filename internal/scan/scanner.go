package scan

import (
	"fmt"
	"go/types"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/715d/aotscan/internal/depgraph"
	"github.com/715d/aotscan/internal/entity"
)

// Config configures a single scan run.
type Config struct {
	// ExtraRoots are canonical function names (entity.NameCache form,
	// e.g. "main.Handler") added to the root set on top of the
	// automatically-discovered entry points.
	ExtraRoots []string
}

// Scanner drives one whole-program scan. A Scanner carries its own name
// cache and accumulation state; it is created per scan and never reused,
// so concurrent or repeated scans stay independent.
type Scanner struct {
	cfg  Config
	pkgs []*packages.Package

	prog    *ssa.Program
	ssaPkgs map[string]*ssa.Package

	names *entity.NameCache
	decls *entity.DeclSet
	graph *depgraph.Graph[Node]

	// typeCanon maps structurally identical types to one stable
	// representative so derived types (pointers, slices) constructed at
	// different times yield the same node.
	typeCanon typeutil.Map

	// Cross-product state: invoke sites by interface x concrete runtime
	// types. Guarded by mu; per the concurrency model, insertion under
	// distinct keys must stay safe if expansion is ever parallelized.
	mu          sync.Mutex
	invokeSites map[*types.Interface][]*types.Func
	ifaceOrder  []*types.Interface
	concretes   []types.Type
	concreteSet map[types.Type]struct{}

	cinfos typeutil.Map // types.Type -> *concreteTypeInfo
	iinfos typeutil.Map // *types.Interface -> *interfaceTypeInfo

	importFailures *xsync.Map[*ssa.Function, *ImportError]
	importCounts   *xsync.Map[*ssa.Function, int]
}

// New builds the SSA form of the program and prepares a scanner over it.
func New(pkgs []*packages.Package, cfg Config) (*Scanner, error) {
	valid := make([]*packages.Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		if pkg != nil {
			valid = append(valid, pkg)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid packages provided")
	}

	s := &Scanner{
		cfg:  cfg,
		pkgs: valid,
		// The scan is a standalone analysis pass: a fresh cache with
		// neutral (unprefixed) naming, never shared across scans.
		names:          entity.NewNameCache(),
		decls:          entity.NewDeclSet(valid),
		invokeSites:    make(map[*types.Interface][]*types.Func),
		concreteSet:    make(map[types.Type]struct{}),
		importFailures: xsync.NewMap[*ssa.Function, *ImportError](),
		importCounts:   xsync.NewMap[*ssa.Function, int](),
	}

	hasher := typeutil.MakeHasher()
	s.typeCanon.SetHasher(hasher)
	s.cinfos.SetHasher(hasher)
	s.iinfos.SetHasher(hasher)

	if err := s.buildProgram(); err != nil {
		return nil, fmt.Errorf("build ssa program: %w", err)
	}

	s.graph = depgraph.New(s.expand)
	return s, nil
}

// Scan marks everything reachable from the root set, runs the graph to a
// fixed point, freezes it, and returns the immutable result.
func (s *Scanner) Scan() (*Result, error) {
	roots, err := s.collectRoots()
	if err != nil {
		return nil, err
	}
	slog.Info("scan roots collected", "num", len(roots))

	rootNodes := make([]Node, 0, len(roots))
	for _, fn := range roots {
		rootNodes = append(rootNodes, methodNode(fn))
	}

	s.graph.Run(rootNodes)
	s.graph.Freeze()
	slog.Info("scan fixed point reached", "nodes", s.graph.Len())

	return &Result{scanner: s}, nil
}

// canon returns the stable representative for a type, so that structurally
// identical types built at different times compare equal as node fields.
func (s *Scanner) canon(t types.Type) types.Type {
	t = types.Unalias(t)
	if v := s.typeCanon.At(t); v != nil {
		return v.(types.Type)
	}
	s.typeCanon.Set(t, t)
	return t
}

// recordInvoke registers an invoke-mode call of method m on interface
// iface, and marks a vtable-slot node for every known runtime type
// implementing iface. Later-discovered runtime types pick up this site via
// recordRuntimeType: the two sides of the cross product.
func (s *Scanner) recordInvoke(iface *types.Interface, m *types.Func) {
	s.mu.Lock()
	sites, seen := s.invokeSites[iface]
	for _, prev := range sites {
		if prev == m {
			s.mu.Unlock()
			return
		}
	}
	if !seen {
		s.ifaceOrder = append(s.ifaceOrder, iface)
	}
	s.invokeSites[iface] = append(sites, m)
	concretes := s.concretes
	s.mu.Unlock()

	iinfo := s.interfaceInfo(iface)
	for _, c := range concretes {
		if s.implements(s.concreteInfo(c), iinfo) {
			s.graph.Mark(VTableSlotNode(c, m))
		}
	}
}

// recordRuntimeType registers concrete runtime type c and marks slot nodes
// for every invoke site it can satisfy.
func (s *Scanner) recordRuntimeType(c types.Type) {
	s.mu.Lock()
	if _, ok := s.concreteSet[c]; ok {
		s.mu.Unlock()
		return
	}
	s.concreteSet[c] = struct{}{}
	s.concretes = append(s.concretes, c)
	ifaces := s.ifaceOrder
	s.mu.Unlock()

	cinfo := s.concreteInfo(c)
	for _, iface := range ifaces {
		if !s.implements(cinfo, s.interfaceInfo(iface)) {
			continue
		}
		s.mu.Lock()
		sites := s.invokeSites[iface]
		s.mu.Unlock()
		for _, m := range sites {
			s.graph.Mark(VTableSlotNode(c, m))
		}
	}
}
