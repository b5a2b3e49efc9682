package recur

import "github.com/samber/mo"

// RuleInput is a rule given either as raw parts or as an already built
// Recur.
type RuleInput = mo.Either[RuleParts, *Recur]

// RawRule wraps unvalidated rule parts.
func RawRule(p RuleParts) RuleInput {
	return mo.Left[RuleParts, *Recur](p)
}

// BuiltRule wraps a constructed rule.
func BuiltRule(r *Recur) RuleInput {
	return mo.Right[RuleParts, *Recur](r)
}

// FromInput resolves in to a validated rule. Built rules are cloned so the
// caller may keep mutating its copy.
func FromInput(in RuleInput) (*Recur, error) {
	if p, ok := in.Left(); ok {
		return NewRecur(p)
	}
	r, _ := in.Right()
	if r == nil {
		return nil, validationError("missing rule")
	}
	c := r.Clone()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
