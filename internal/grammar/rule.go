package grammar

import (
	"fmt"
	"regexp"
)

// Null is a capture that explicitly holds no value. A nil capture means the
// rule captured nothing, and is replaced by the matched text when passed to a
// capture function; Null is passed through as-is.
var Null any = null{}

type null struct{}

func (null) String() string { return "null" }

// IsNull reports whether v is nil or Null.
func IsNull(v any) bool {
	return v == nil || v == Null
}

// CaptureFunc combines the accumulator of the enclosing rule with a rule's
// capture (or matched text) into a new capture.
type CaptureFunc func(outer, capture any) (any, error)

// InitFunc produces the starting accumulator of a rule from the accumulator
// of the enclosing rule.
type InitFunc func(outer any) any

// GlobalFunc receives the capture of a successful rule along with the
// parse-wide global value.
type GlobalFunc[G any] func(global G, value any)

type kind uint8

const (
	kindRef kind = iota
	kindLit
	kindRegexp
	kindSeq
	kindAlt
	kindOpt
	kindRep
	kindExc
)

func (k kind) String() string {
	switch k {
	case kindRef:
		return "ref"
	case kindLit:
		return "lit"
	case kindRegexp:
		return "regexp"
	case kindSeq:
		return "seq"
	case kindAlt:
		return "alt"
	case kindOpt:
		return "opt"
	case kindRep:
		return "rep"
	case kindExc:
		return "exc"
	}
	return "unknown"
}

// Rule is one node of a grammar. Rules are created through a Builder and are
// frozen once the grammar is compiled.
type Rule[G any] struct {
	kind kind

	ref    string // kindRef: target name
	handle int    // kindRef: resolved target

	token  string         // kindLit
	re     *regexp.Regexp // kindRegexp
	reFold *regexp.Regexp // kindRegexp, case-insensitive variant
	group  int            // kindRegexp: index of the first named group, or 0

	rules []*Rule[G]

	display    string
	ignoreCase bool
	init       InitFunc
	capture    CaptureFunc
	global     GlobalFunc[G]

	frozen bool
}

func (r *Rule[G]) mutate() {
	if r.frozen {
		panic(fmt.Sprintf("grammar: %s rule decorated after compile", r.kind))
	}
}

// Call sets fn as the capture function of the rule.
func (r *Rule[G]) Call(fn CaptureFunc) *Rule[G] {
	r.mutate()
	r.capture = fn
	return r
}

// Set captures the rule's capture, or its matched text if it captured
// nothing.
func (r *Rule[G]) Set() *Rule[G] {
	return r.Call(func(_, x any) (any, error) { return x, nil })
}

// SetValue captures v whenever the rule matches.
func (r *Rule[G]) SetValue(v any) *Rule[G] {
	return r.Call(func(_, _ any) (any, error) { return v, nil })
}

// Skip discards the rule's capture.
func (r *Rule[G]) Skip() *Rule[G] {
	return r.Call(func(_, _ any) (any, error) { return nil, nil })
}

// Append appends the capture to a *[]any accumulator, allocating one if the
// accumulator is not one already.
func (r *Rule[G]) Append() *Rule[G] {
	return r.Call(func(a, x any) (any, error) {
		s := sliceOf(a)
		*s = append(*s, x)
		return s, nil
	})
}

// AppendValue appends v to a *[]any accumulator.
func (r *Rule[G]) AppendValue(v any) *Rule[G] {
	return r.Call(func(a, _ any) (any, error) {
		s := sliceOf(a)
		*s = append(*s, v)
		return s, nil
	})
}

func sliceOf(a any) *[]any {
	if s, ok := a.(*[]any); ok && s != nil {
		return s
	}
	return new([]any)
}

// Field assigns the capture to key f of a map[string]any accumulator.
func (r *Rule[G]) Field(f string) *Rule[G] {
	return r.Call(func(a, x any) (any, error) {
		m, err := fieldMap(a)
		if err != nil {
			return nil, err
		}
		m[f] = x
		return m, nil
	})
}

// FieldValue assigns v to key f of a map[string]any accumulator.
func (r *Rule[G]) FieldValue(f string, v any) *Rule[G] {
	return r.Call(func(a, _ any) (any, error) {
		m, err := fieldMap(a)
		if err != nil {
			return nil, err
		}
		m[f] = v
		return m, nil
	})
}

// AppendField appends the capture to the []any at key f of a map[string]any
// accumulator.
func (r *Rule[G]) AppendField(f string) *Rule[G] {
	return r.Call(func(a, x any) (any, error) {
		m, err := fieldMap(a)
		if err != nil {
			return nil, err
		}
		s, _ := m[f].([]any)
		m[f] = append(s, x)
		return m, nil
	})
}

// AppendFieldValue appends v to the []any at key f of a map[string]any
// accumulator.
func (r *Rule[G]) AppendFieldValue(f string, v any) *Rule[G] {
	return r.Call(func(a, _ any) (any, error) {
		m, err := fieldMap(a)
		if err != nil {
			return nil, err
		}
		s, _ := m[f].([]any)
		m[f] = append(s, v)
		return m, nil
	})
}

func fieldMap(a any) (map[string]any, error) {
	if IsNull(a) {
		return map[string]any{}, nil
	}
	m, ok := a.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field capture on %T", a)
	}
	return m, nil
}

// Global sets fn to be called with the global value and the rule's final
// capture after the rule matches.
func (r *Rule[G]) Global(fn GlobalFunc[G]) *Rule[G] {
	r.mutate()
	r.global = fn
	return r
}

// SetGlobal stores the rule's capture under key f of a map[string]any global.
func (r *Rule[G]) SetGlobal(f string) *Rule[G] {
	return r.Global(func(g G, v any) {
		if m, ok := any(g).(map[string]any); ok {
			m[f] = v
		}
	})
}

// AppendGlobal appends the rule's capture to the []any under key f of a
// map[string]any global.
func (r *Rule[G]) AppendGlobal(f string) *Rule[G] {
	return r.Global(func(g G, v any) {
		if m, ok := any(g).(map[string]any); ok {
			s, _ := m[f].([]any)
			m[f] = append(s, v)
		}
	})
}
