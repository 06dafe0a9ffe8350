package layout

import (
	"fmt"
	"go/types"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/aotscan/internal/entity"
	"github.com/715d/aotscan/internal/scan"
)

// EntryKind discriminates the generic-context lookup entry kinds.
type EntryKind uint8

const (
	// EntryTypeHandle is the runtime handle of one type argument or
	// derived type.
	EntryTypeHandle EntryKind = iota + 1
	// EntryMethodHandle resolves an interface-constrained call against a
	// concrete type argument.
	EntryMethodHandle
)

// Entry is one dictionary lookup entry.
type Entry struct {
	Kind   EntryKind
	Type   types.Type
	Method *types.Func // method handles only
}

// Dictionary is the ordered, duplicate-free generic-context lookup list of
// one instantiated type or method. Deferred marks an on-demand layout for
// a compiler-synthesized instantiation.
type Dictionary struct {
	Owner    entity.Ref
	Entries  []Entry
	Deferred bool
}

// DictionaryProvider maps an instantiated generic type or method to its
// dictionary layout. Built exactly once from the frozen scan result;
// read-only afterwards.
type DictionaryProvider struct {
	res         *scan.Result
	names       *entity.NameCache
	decls       *entity.DeclSet
	precomputed *xsync.Map[string, *Dictionary]
	lazy        *lru.Cache[string, *Dictionary]
}

// NewDictionaryProvider partitions the marked node set by dict-entry kind
// and indexes the layouts by owning entity.
func NewDictionaryProvider(res *scan.Result) (*DictionaryProvider, error) {
	cache, err := lru.New[string, *Dictionary](lazyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create lazy dictionary cache: %w", err)
	}
	p := &DictionaryProvider{
		res:         res,
		names:       res.Names(),
		decls:       res.Decls(),
		precomputed: xsync.NewMap[string, *Dictionary](),
		lazy:        cache,
	}

	for _, n := range res.Nodes() {
		if n.Kind != scan.NodeDictEntry {
			continue
		}
		key := p.names.RefKey(n.Owner)
		dict, _ := p.precomputed.LoadOrStore(key, &Dictionary{Owner: n.Owner})
		appendEntry(dict, n)
	}
	return p, nil
}

func appendEntry(dict *Dictionary, n scan.Node) {
	entry := Entry{Kind: EntryTypeHandle, Type: n.Type}
	if n.Sym != nil {
		entry.Kind = EntryMethodHandle
		entry.Method = n.Sym
	}
	for _, prev := range dict.Entries {
		if prev == entry {
			return
		}
	}
	dict.Entries = append(dict.Entries, entry)
}

// Layout returns the dictionary layout for an instantiated generic type
// or method. The Ref's variant is dispatched explicitly; both cases apply
// the same precomputed-versus-lazy policy, judged on the entity's generic
// definition form.
func (p *DictionaryProvider) Layout(ref entity.Ref) (*Dictionary, error) {
	switch ref.Kind() {
	case entity.KindType:
		ref = entity.TypeRef(p.res.Canon(ref.Type()))
	case entity.KindMethod:
		// Method identity is already canonical.
	default:
		return nil, fmt.Errorf("dictionary layout: invalid entity reference")
	}

	key := p.names.RefKey(ref)
	if p.decls.Declared(ref) {
		dict, ok := p.precomputed.Load(key)
		if !ok {
			return nil, &ScanGapError{Kind: GapDictionary, Entity: key}
		}
		return dict, nil
	}

	if dict, ok := p.lazy.Get(key); ok {
		return dict, nil
	}
	dict := p.computeDeferred(ref)
	p.lazy.Add(key, dict)
	return dict, nil
}

// computeDeferred derives the type-handle entries of a synthesized
// instantiation from its type arguments.
func (p *DictionaryProvider) computeDeferred(ref entity.Ref) *Dictionary {
	dict := &Dictionary{Owner: ref, Deferred: true}
	switch ref.Kind() {
	case entity.KindType:
		if named, ok := ref.Type().(*types.Named); ok {
			if args := named.TypeArgs(); args != nil {
				for i := range args.Len() {
					dict.Entries = append(dict.Entries, Entry{
						Kind: EntryTypeHandle,
						Type: p.res.Canon(args.At(i)),
					})
				}
			}
		}
	case entity.KindMethod:
		for _, arg := range ref.Method().TypeArgs() {
			dict.Entries = append(dict.Entries, Entry{
				Kind: EntryTypeHandle,
				Type: p.res.Canon(arg),
			})
		}
	}
	return dict
}
