// Package fastpattern selects, per signature and per buffer context, the
// single literal pattern registered into the multi-pattern matcher, and
// parses the fast_pattern rule option that can force that choice.
package fastpattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/endorses/prowl/internal/pkg/sigs"
)

// ParseDirective parses the argument text of a fast_pattern rule option.
//
// Accepted forms:
//   - ""                -> bare `fast_pattern;`
//   - "only"            -> `fast_pattern:only;`
//   - "<offset>,<length>" -> `fast_pattern:<offset>,<length>;`
//
// Offset and length are unsigned decimal integers, each at most 65535,
// with optional surrounding whitespace. Any other argument text is a
// rule-load error, never a crash. The grammar is three cases, so this is
// a hand-written parser rather than a regex.
func ParseDirective(arg string) (sigs.Directive, error) {
	arg = strings.TrimSpace(arg)

	if arg == "" {
		return sigs.Directive{Kind: sigs.DirectiveBare}, nil
	}
	if arg == "only" {
		return sigs.Directive{Kind: sigs.DirectiveOnly}, nil
	}

	offText, lenText, found := strings.Cut(arg, ",")
	if !found {
		return sigs.Directive{}, fmt.Errorf("fast_pattern: invalid argument %q: want nothing, \"only\" or \"offset,length\"", arg)
	}

	offset, err := parseChopField("offset", offText)
	if err != nil {
		return sigs.Directive{}, err
	}
	length, err := parseChopField("length", lenText)
	if err != nil {
		return sigs.Directive{}, err
	}
	if int(offset)+int(length) > sigs.MaxPatternLen {
		return sigs.Directive{}, fmt.Errorf("fast_pattern: offset %d + length %d exceeds %d", offset, length, sigs.MaxPatternLen)
	}

	return sigs.Directive{
		Kind: sigs.DirectiveChop,
		Chop: sigs.ChopRange{Offset: offset, Length: length},
	}, nil
}

func parseChopField(name, text string) (uint16, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("fast_pattern: missing %s", name)
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("fast_pattern: invalid %s %q: not an unsigned integer", name, text)
	}
	if v > sigs.MaxPatternLen {
		return 0, fmt.Errorf("fast_pattern: %s %d exceeds %d", name, v, sigs.MaxPatternLen)
	}
	return uint16(v), nil
}
