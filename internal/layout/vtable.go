package layout

import (
	"fmt"
	"go/types"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/aotscan/internal/entity"
	"github.com/715d/aotscan/internal/scan"
)

// lazyCacheSize bounds the cache of lazily-computed layouts for
// compiler-synthesized entities. Lazy computation is deterministic, so
// eviction only costs a recompute.
const lazyCacheSize = 1024

// Slot is one virtual dispatch slot: the interface method occupying it
// and its position in the table.
type Slot struct {
	Method *types.Func
	Index  int
}

// Slice is the ordered, duplicate-free dispatch slot list of one type.
// Deferred marks a placeholder computed on demand for a
// compiler-synthesized type rather than predicted by the scan.
type Slice struct {
	Type     types.Type
	Slots    []Slot
	Deferred bool
}

// VTableProvider maps a type to its dispatch slot list. It is built
// exactly once from the frozen scan result and is read-only afterwards.
type VTableProvider struct {
	res         *scan.Result
	names       *entity.NameCache
	decls       *entity.DeclSet
	precomputed *xsync.Map[string, *Slice]
	lazy        *lru.Cache[string, *Slice]
}

// NewVTableProvider partitions the marked node set by vtable-slot kind and
// indexes the slices by owning type.
func NewVTableProvider(res *scan.Result) (*VTableProvider, error) {
	cache, err := lru.New[string, *Slice](lazyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create lazy slice cache: %w", err)
	}
	p := &VTableProvider{
		res:         res,
		names:       res.Names(),
		decls:       res.Decls(),
		precomputed: xsync.NewMap[string, *Slice](),
		lazy:        cache,
	}

	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeVTableSlot {
			continue
		}
		key := p.names.TypeName(n.Type)
		slice, _ := p.precomputed.LoadOrStore(key, &Slice{Type: n.Type})
		appendSlot(slice, n.Sym)
	}
	return p, nil
}

// appendSlot adds one slot unless the method already occupies one. Nodes
// arrive in first-seen order, so slot indexes are deterministic.
func appendSlot(slice *Slice, m *types.Func) {
	for _, slot := range slice.Slots {
		if slot.Method.Id() == m.Id() {
			return
		}
	}
	slice.Slots = append(slice.Slots, Slot{Method: m, Index: len(slice.Slots)})
}

// Slice returns the dispatch slot list for t.
//
// Types declared in the scanned program's own metadata must have been
// predicted by the scan; absence is a ScanGapError. Compiler-synthesized
// types are not enumerable ahead of time and get a deferred slice computed
// on demand.
func (p *VTableProvider) Slice(t types.Type) (*Slice, error) {
	t = p.res.Canon(t)
	key := p.names.TypeName(t)

	if p.decls.Declared(entity.TypeRef(t)) {
		slice, ok := p.precomputed.Load(key)
		if !ok {
			return nil, &ScanGapError{Kind: GapVTable, Entity: key}
		}
		return slice, nil
	}

	if slice, ok := p.lazy.Get(key); ok {
		return slice, nil
	}
	slice := p.computeDeferred(t)
	p.lazy.Add(key, slice)
	return slice, nil
}

// computeDeferred builds the full-method-set slice for a synthesized type.
// Method-set order is deterministic, so repeated computation yields
// structurally identical slices.
func (p *VTableProvider) computeDeferred(t types.Type) *Slice {
	slice := &Slice{Type: t, Deferred: true}
	mset := p.res.Program().MethodSets.MethodSet(t)
	for i := range mset.Len() {
		if m, ok := mset.At(i).Obj().(*types.Func); ok {
			appendSlot(slice, m)
		}
	}
	return slice
}
