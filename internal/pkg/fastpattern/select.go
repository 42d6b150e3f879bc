package fastpattern

import (
	"fmt"

	"github.com/endorses/prowl/internal/pkg/sigs"
)

// Select assigns the fast pattern for every eligible buffer-context list
// of sig, mutating the keyword flags in place. Exactly one content pattern
// per context ends up selected, except for contexts whose every keyword is
// ineligible for pre-filtering.
//
// An explicit fast_pattern directive always wins over auto-selection; when
// several keywords in the same list carry one, the last declared wins.
// Validation failures reject the whole signature: the returned error names
// the violated constraint and no flags are stamped on any list.
func Select(reg sigs.ContextRegistry, sig *sigs.Signature) error {
	type selection struct {
		cp        *sigs.ContentPattern
		directive sigs.Directive
	}
	var chosen []selection

	for _, entry := range reg.Entries() {
		list := sig.List(entry.Context)
		if len(list) == 0 {
			continue
		}

		cp, err := pickForList(sig.SID, list)
		if err != nil {
			return err
		}
		if cp == nil {
			continue
		}
		chosen = append(chosen, selection{cp: cp, directive: cp.Directive})
	}

	// All lists validated; stamping is all-or-nothing.
	for _, sel := range chosen {
		sel.cp.Fast.Selected = true
		switch sel.directive.Kind {
		case sigs.DirectiveOnly:
			sel.cp.Fast.Only = true
		case sigs.DirectiveChop:
			chop := sel.directive.Chop
			sel.cp.Fast.Chop = &chop
		}
	}
	return nil
}

// pickForList resolves one list to its fast-pattern keyword, or nil when
// no keyword is eligible. Explicit directives are validated here.
func pickForList(sid uint32, list sigs.SigMatchList) (*sigs.ContentPattern, error) {
	// Last explicitly marked keyword wins over earlier ones.
	explicit := -1
	for i, cp := range list {
		if cp.Directive.Kind != sigs.DirectiveNone {
			explicit = i
		}
	}

	if explicit >= 0 {
		cp := list[explicit]
		if err := validateExplicit(sid, cp); err != nil {
			return nil, err
		}
		return cp, nil
	}

	// Auto-selection: strongest score wins, earliest declaration breaks ties.
	best := -1
	var bestScore uint32
	for i, cp := range list {
		if !autoEligible(cp) {
			continue
		}
		s := Score(cp.Bytes)
		if best < 0 || s > bestScore {
			best = i
			bestScore = s
		}
	}
	if best < 0 {
		return nil, nil
	}
	return list[best], nil
}

// autoEligible excludes keywords whose modifier combination makes
// pre-filtering ill-defined: absence constraints anchored to a position
// cannot be approximated by a presence scan.
func autoEligible(cp *sigs.ContentPattern) bool {
	if cp.Negated && cp.HasRelativeModifier() {
		return false
	}
	return len(cp.Bytes) > 0
}

func validateExplicit(sid uint32, cp *sigs.ContentPattern) error {
	if cp.Negated && cp.HasRelativeModifier() {
		return &sigs.ValidationError{
			SID:     sid,
			Field:   "fast_pattern",
			Message: "negated content with relative modifiers cannot be a fast pattern",
		}
	}

	switch cp.Directive.Kind {
	case sigs.DirectiveOnly:
		if cp.HasRelativeModifier() {
			return &sigs.ValidationError{
				SID:     sid,
				Field:   "fast_pattern",
				Message: "fast_pattern:only cannot combine with distance, within, offset or depth",
			}
		}
	case sigs.DirectiveChop:
		chop := cp.Directive.Chop
		total := int(chop.Offset) + int(chop.Length)
		if total > sigs.MaxPatternLen {
			return &sigs.ValidationError{
				SID:     sid,
				Field:   "fast_pattern",
				Message: fmt.Sprintf("chop offset %d + length %d exceeds %d", chop.Offset, chop.Length, sigs.MaxPatternLen),
			}
		}
		if total > len(cp.Bytes) {
			return &sigs.ValidationError{
				SID:     sid,
				Field:   "fast_pattern",
				Message: fmt.Sprintf("chop offset %d + length %d exceeds pattern length %d", chop.Offset, chop.Length, len(cp.Bytes)),
			}
		}
	}

	if len(cp.Bytes) == 0 {
		return &sigs.ValidationError{
			SID:     sid,
			Field:   "fast_pattern",
			Message: "empty content cannot be a fast pattern",
		}
	}
	return nil
}
