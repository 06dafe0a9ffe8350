package entity

import (
	"go/types"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/tools/go/ssa"
)

// NameCache computes and caches canonical names for scan entities. Names
// include generic arguments, so distinct instantiations of one definition
// never collide. A cache is created per scan and carries no unit-specific
// prefix; it must never be shared across scans of different programs.
type NameCache struct {
	fnCache   *xsync.Map[*ssa.Function, string]
	typeCache *xsync.Map[types.Type, string]
}

// NewNameCache returns an empty cache safe for concurrent use.
func NewNameCache() *NameCache {
	return &NameCache{
		fnCache:   xsync.NewMap[*ssa.Function, string](),
		typeCache: xsync.NewMap[types.Type, string](),
	}
}

// FuncName returns the canonical name of a function or method, e.g.
// "main.Foo", "(*main.Circle).Area" or "main.Identity[int]".
func (c *NameCache) FuncName(fn *ssa.Function) string {
	if fn == nil {
		return ""
	}
	name, ok := c.fnCache.Load(fn)
	if ok {
		return name
	}
	name = fn.String()
	c.fnCache.Store(fn, name)
	return name
}

// TypeName returns the canonical, package-qualified name of a type,
// including type arguments for generic instantiations.
func (c *NameCache) TypeName(t types.Type) string {
	if t == nil {
		return ""
	}
	name, ok := c.typeCache.Load(t)
	if ok {
		return name
	}
	name = c.computeTypeName(t)
	c.typeCache.Store(t, name)
	return name
}

// RefKey returns the canonical map key for an entity, prefixed by its kind
// so a type and a method can never collide.
func (c *NameCache) RefKey(r Ref) string {
	switch r.Kind() {
	case KindType:
		return "type:" + c.TypeName(r.Type())
	case KindMethod:
		return "method:" + c.FuncName(r.Method())
	}
	return ""
}

func (c *NameCache) computeTypeName(t types.Type) string {
	switch t := t.(type) {
	case *types.Alias:
		return c.TypeName(types.Unalias(t))

	case *types.Pointer:
		elem := c.TypeName(t.Elem())
		var b strings.Builder
		b.Grow(len(elem) + 1)
		b.WriteByte('*')
		b.WriteString(elem)
		return b.String()

	case *types.Slice:
		return "[]" + c.TypeName(t.Elem())

	case *types.Named:
		obj := t.Obj()
		if obj == nil {
			return t.String()
		}
		var b strings.Builder
		b.Grow(64)
		if pkg := obj.Pkg(); pkg != nil {
			b.WriteString(pkg.Path())
			b.WriteByte('.')
		}
		b.WriteString(obj.Name())
		if args := t.TypeArgs(); args != nil && args.Len() > 0 {
			b.WriteByte('[')
			for i := range args.Len() {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(c.TypeName(args.At(i)))
			}
			b.WriteByte(']')
		} else if params := t.TypeParams(); params != nil && params.Len() > 0 {
			b.WriteByte('[')
			for i := range params.Len() {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(params.At(i).Obj().Name())
			}
			b.WriteByte(']')
		}
		return b.String()
	}

	// Basic types, map/chan/func/struct literals: the go/types string form
	// is already canonical and package-qualified.
	return t.String()
}
