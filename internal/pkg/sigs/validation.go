package sigs

import "fmt"

// ValidationError reports a rule-validation failure. The owning signature
// is rejected individually; loading continues with the remaining rules.
type ValidationError struct {
	SID     uint32
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("signature %d: %s: %s", e.SID, e.Field, e.Message)
}

// Validate checks the structural invariants of a parsed signature:
// a non-zero sid and pattern lengths within bounds. Fast-pattern
// combination rules are checked later by the selector.
func Validate(s *Signature) error {
	if s.SID == 0 {
		return &ValidationError{SID: 0, Field: "sid", Message: "signature id is required"}
	}
	for ctx := 0; ctx < NumBufferContexts; ctx++ {
		for _, cp := range s.List(BufferContext(ctx)) {
			if len(cp.Bytes) > MaxPatternLen {
				return &ValidationError{
					SID:     s.SID,
					Field:   "content",
					Message: fmt.Sprintf("pattern length %d exceeds %d", len(cp.Bytes), MaxPatternLen),
				}
			}
		}
	}
	return nil
}
