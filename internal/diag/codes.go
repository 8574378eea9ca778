// Package diag implements the error taxonomy: parse, structural, semantic
// and engine errors, each carrying an offending position, plus a reporter
// that renders a contextual source snippet with a line/column caret in
// the style of rustc diagnostics.
package diag

// Error code ranges for this module's four-category taxonomy:
//
//	E01xx: parse errors       (malformed envelope)
//	E02xx: structural errors  (unresolved label, block index out of range)
//	E03xx: semantic errors    (uninitialized use, phi type conflict)
//	E04xx: engine errors      (worklist failed to converge)
const (
	ErrEnvelopeMalformed  = "E0101"
	ErrEnvelopeType       = "E0102"
	ErrEnvelopeUnknownOp  = "E0103"

	ErrUnknownLabel       = "E0201"
	ErrBlockIndexRange    = "E0202"
	ErrPhiPredecessorSet  = "E0203"

	ErrUninitializedUse   = "E0301"
	ErrPhiTypeConflict    = "E0302"

	ErrWorklistDivergence = "E0401"
)
