// Package layout turns the frozen scan result into the two queryable
// per-entity layout indexes the later compilation phase relies on: virtual
// dispatch slot lists and generic dictionary layouts.
package layout

import "fmt"

// GapKind enumerates which layout index missed a predicted entity.
type GapKind uint8

const (
	GapVTable GapKind = iota + 1
	GapDictionary
)

// ScanGapError reports a scanner invariant violation: an entity declared
// in the program's own metadata reached the compiler without the scanner
// having predicted its layout. This is always a bug in the scanner's
// reachability logic, never a recoverable runtime condition, and it is
// fatal to the compilation: recovering silently would risk generating code
// against a layout the scan never agreed on.
type ScanGapError struct {
	Kind   GapKind
	Entity string
}

func (e *ScanGapError) Error() string {
	what := "layout"
	switch e.Kind {
	case GapVTable:
		what = "vtable slice"
	case GapDictionary:
		what = "dictionary layout"
	}
	return fmt.Sprintf(
		"%s for %s was not computed by the scanner: the scan's reachability "+
			"prediction is missing an entity the compiler needs; compare the "+
			"scanner's dependency graph with the compiler's (e.g. via the graph "+
			"export) to locate where the prediction diverged",
		what, e.Entity)
}
