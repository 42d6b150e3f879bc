// Package ruleset loads signature documents from YAML. It is the
// collaborator surface standing in for a full rule parser: each document
// entry carries the parts of a rule this subsystem consumes (sid, group,
// content keywords with modifiers and an optional fast_pattern option).
package ruleset

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/endorses/prowl/internal/pkg/fastpattern"
	"github.com/endorses/prowl/internal/pkg/logger"
	"github.com/endorses/prowl/internal/pkg/sigs"
)

// Document is the top-level YAML structure of a ruleset file.
type Document struct {
	Rules []*RuleYAML `yaml:"rules"`
}

// RuleYAML is one signature in YAML form.
type RuleYAML struct {
	SID      uint32         `yaml:"sid"`
	Msg      string         `yaml:"msg,omitempty"`
	Group    string         `yaml:"group,omitempty"`
	Contents []*ContentYAML `yaml:"contents"`
}

// ContentYAML is one content keyword in YAML form. FastPattern mirrors
// the rule-language option: absent means none, empty string means the
// bare form, otherwise "only" or "<offset>,<length>".
type ContentYAML struct {
	Pattern     string  `yaml:"pattern"`
	Context     string  `yaml:"context,omitempty"`
	Negated     bool    `yaml:"negated,omitempty"`
	Distance    *int32  `yaml:"distance,omitempty"`
	Within      *int32  `yaml:"within,omitempty"`
	Offset      *int32  `yaml:"offset,omitempty"`
	Depth       *int32  `yaml:"depth,omitempty"`
	FastPattern *string `yaml:"fast_pattern,omitempty"`
}

// RuleError records one rule dropped during loading.
type RuleError struct {
	SID uint32
	Err error
}

// Load parses a ruleset document. Malformed individual rules are dropped
// with one diagnostic each and returned in the second value; only an
// unreadable document is a hard error.
func Load(r io.Reader, reg sigs.ContextRegistry) ([]*sigs.Signature, []RuleError, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading ruleset: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing ruleset: %w", err)
	}

	var out []*sigs.Signature
	var dropped []RuleError
	for _, rule := range doc.Rules {
		sig, err := toSignature(rule, reg)
		if err != nil {
			dropped = append(dropped, RuleError{SID: rule.SID, Err: err})
			logger.Warn("rule dropped", "sid", rule.SID, "reason", err.Error())
			continue
		}
		out = append(out, sig)
	}
	return out, dropped, nil
}

// LoadFile is Load over a file path.
func LoadFile(path string, reg sigs.ContextRegistry) ([]*sigs.Signature, []RuleError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening ruleset: %w", err)
	}
	defer f.Close()
	return Load(f, reg)
}

func toSignature(rule *RuleYAML, reg sigs.ContextRegistry) (*sigs.Signature, error) {
	if rule.SID == 0 {
		return nil, &sigs.ValidationError{SID: 0, Field: "sid", Message: "signature id is required"}
	}
	if len(rule.Contents) == 0 {
		return nil, &sigs.ValidationError{SID: rule.SID, Field: "contents", Message: "at least one content keyword is required"}
	}

	sig := &sigs.Signature{SID: rule.SID, Msg: rule.Msg, Group: rule.Group}
	for i, c := range rule.Contents {
		cp, err := toContent(rule.SID, i, c, reg)
		if err != nil {
			return nil, err
		}
		sig.AddContent(cp)
	}
	return sig, nil
}

func toContent(sid uint32, idx int, c *ContentYAML, reg sigs.ContextRegistry) (*sigs.ContentPattern, error) {
	if c.Pattern == "" {
		return nil, &sigs.ValidationError{
			SID:     sid,
			Field:   fmt.Sprintf("contents[%d].pattern", idx),
			Message: "content pattern is required",
		}
	}

	ctx := sigs.BufferPayload
	if c.Context != "" {
		resolved, ok := reg.ByName(c.Context)
		if !ok {
			return nil, &sigs.ValidationError{
				SID:     sid,
				Field:   fmt.Sprintf("contents[%d].context", idx),
				Message: fmt.Sprintf("unknown buffer context %q", c.Context),
			}
		}
		ctx = resolved
	}

	directive := sigs.Directive{Kind: sigs.DirectiveNone}
	if c.FastPattern != nil {
		parsed, err := fastpattern.ParseDirective(*c.FastPattern)
		if err != nil {
			return nil, &sigs.ValidationError{
				SID:     sid,
				Field:   fmt.Sprintf("contents[%d].fast_pattern", idx),
				Message: err.Error(),
			}
		}
		directive = parsed
	}

	return &sigs.ContentPattern{
		Bytes:     []byte(c.Pattern),
		Negated:   c.Negated,
		Distance:  c.Distance,
		Within:    c.Within,
		Offset:    c.Offset,
		Depth:     c.Depth,
		Context:   ctx,
		Directive: directive,
	}, nil
}
