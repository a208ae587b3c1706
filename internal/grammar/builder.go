package grammar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownRule is returned when a grammar refers to, or a parse starts
// from, a rule that was never defined.
var ErrUnknownRule = errors.New("unknown rule")

// Builder collects the named rules of a grammar. It is only valid inside the
// definition function passed to Compile.
type Builder[G any] struct {
	rules map[string]*Rule[G]
	order []string
	errs  []error
}

// Rule registers r under name.
func (b *Builder[G]) Rule(name string, r *Rule[G]) {
	if _, ok := b.rules[name]; ok {
		b.errs = append(b.errs, fmt.Errorf("rule %q defined twice", name))
		return
	}
	b.rules[name] = r
	b.order = append(b.order, name)
}

// Prefix carries decorators that are applied to the next rule it builds.
type Prefix[G any] struct {
	init       InitFunc
	display    string
	ignoreCase bool
}

// Init returns a prefix that starts the rule with the accumulator fn returns.
func (b *Builder[G]) Init(fn InitFunc) Prefix[G] { return Prefix[G]{}.Init(fn) }

// Name returns a prefix that names the rule in error messages.
func (b *Builder[G]) Name(name string) Prefix[G] { return Prefix[G]{}.Name(name) }

// IgnoreCase returns a prefix that makes literals within the rule
// case-insensitive.
func (b *Builder[G]) IgnoreCase() Prefix[G] { return Prefix[G]{}.IgnoreCase() }

func (p Prefix[G]) Init(fn InitFunc) Prefix[G] {
	p.init = fn
	return p
}

func (p Prefix[G]) Name(name string) Prefix[G] {
	p.display = name
	return p
}

func (p Prefix[G]) IgnoreCase() Prefix[G] {
	p.ignoreCase = true
	return p
}

func (p Prefix[G]) apply(r *Rule[G]) *Rule[G] {
	r.init = p.init
	r.display = p.display
	r.ignoreCase = p.ignoreCase
	return r
}

func (p Prefix[G]) Ref(name string) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindRef, ref: name, handle: -1})
}

func (p Prefix[G]) Lit(token string) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindLit, token: token})
}

func (p Prefix[G]) LitRegexp(re *regexp.Regexp) *Rule[G] {
	r := &Rule[G]{kind: kindRegexp, re: re, reFold: re}
	if !strings.HasPrefix(re.String(), "(?i)") {
		r.reFold = regexp.MustCompile("(?i)" + re.String())
	}
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" {
			r.group = i
			break
		}
	}
	return p.apply(r)
}

func (p Prefix[G]) Seq(rules ...*Rule[G]) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindSeq, rules: rules})
}

func (p Prefix[G]) Alt(rules ...*Rule[G]) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindAlt, rules: rules})
}

func (p Prefix[G]) Opt(rules ...*Rule[G]) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindOpt, rules: []*Rule[G]{oneOrSeq(rules)}})
}

func (p Prefix[G]) Rep(rules ...*Rule[G]) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindRep, rules: []*Rule[G]{oneOrSeq(rules)}})
}

func (p Prefix[G]) Exc(rule *Rule[G]) *Rule[G] {
	return p.apply(&Rule[G]{kind: kindExc, rules: []*Rule[G]{rule}})
}

func oneOrSeq[G any](rules []*Rule[G]) *Rule[G] {
	if len(rules) == 1 {
		return rules[0]
	}
	return &Rule[G]{kind: kindSeq, rules: rules}
}

// Ref matches the rule registered under name.
func (b *Builder[G]) Ref(name string) *Rule[G] { return Prefix[G]{}.Ref(name) }

// Lit matches token exactly.
func (b *Builder[G]) Lit(token string) *Rule[G] { return Prefix[G]{}.Lit(token) }

// LitRegexp matches re against the remaining input. The expression is not
// anchored; use ^ to match at the current position.
func (b *Builder[G]) LitRegexp(re *regexp.Regexp) *Rule[G] { return Prefix[G]{}.LitRegexp(re) }

// Seq matches each rule in order.
func (b *Builder[G]) Seq(rules ...*Rule[G]) *Rule[G] { return Prefix[G]{}.Seq(rules...) }

// Alt matches the first of rules that succeeds.
func (b *Builder[G]) Alt(rules ...*Rule[G]) *Rule[G] { return Prefix[G]{}.Alt(rules...) }

// Opt matches Seq(rules...) zero or one time.
func (b *Builder[G]) Opt(rules ...*Rule[G]) *Rule[G] { return Prefix[G]{}.Opt(rules...) }

// Rep matches Seq(rules...) any number of times.
func (b *Builder[G]) Rep(rules ...*Rule[G]) *Rule[G] { return Prefix[G]{}.Rep(rules...) }

// Exc matches at least one character up to, but not including, rule.
func (b *Builder[G]) Exc(rule *Rule[G]) *Rule[G] { return Prefix[G]{}.Exc(rule) }

// Compile runs define, resolves every reference and freezes the rules.
// newGlobal produces the global value of each parse; it may be nil, in which
// case the zero value of G is used.
func Compile[G any](define func(b *Builder[G]), newGlobal func() G) (*Parser[G], error) {
	b := &Builder[G]{rules: make(map[string]*Rule[G])}
	define(b)
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("defining grammar: %w", errors.Join(b.errs...))
	}

	p := &Parser[G]{
		names:     make(map[string]int, len(b.order)),
		newGlobal: newGlobal,
	}
	for _, name := range b.order {
		p.names[name] = len(p.rules)
		p.rules = append(p.rules, b.rules[name])
	}

	seen := make(map[*Rule[G]]bool)
	var resolve func(r *Rule[G]) error
	resolve = func(r *Rule[G]) error {
		if seen[r] {
			return nil
		}
		seen[r] = true
		if r.kind == kindRef {
			h, ok := p.names[r.ref]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownRule, r.ref)
			}
			r.handle = h
		}
		for _, sub := range r.rules {
			if err := resolve(sub); err != nil {
				return err
			}
		}
		r.frozen = true
		return nil
	}
	for _, r := range p.rules {
		if err := resolve(r); err != nil {
			return nil, fmt.Errorf("compiling grammar: %w", err)
		}
	}
	return p, nil
}

// MustCompile is like Compile but panics if the grammar is invalid.
func MustCompile[G any](define func(b *Builder[G]), newGlobal func() G) *Parser[G] {
	p, err := Compile(define, newGlobal)
	if err != nil {
		panic(err)
	}
	return p
}
