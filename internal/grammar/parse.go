package grammar

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parser is a compiled grammar. It is immutable and safe for concurrent use.
type Parser[G any] struct {
	rules     []*Rule[G]
	names     map[string]int
	newGlobal func() G
}

// Result is the outcome of a successful parse.
type Result[G any] struct {
	Capture any
	Match   string
	Global  G
}

// Rules returns the names of the rules in definition order.
func (p *Parser[G]) Rules() []string {
	names := make([]string, len(p.rules))
	for name, h := range p.names {
		names[h] = name
	}
	return names
}

// Parse parses source starting from the "main" rule.
func (p *Parser[G]) Parse(source string) (*Result[G], error) {
	return p.ParseRule(source, "main")
}

// ParseRule parses source starting from the named rule. The whole source must
// be consumed. Mismatches are returned as *Error.
func (p *Parser[G]) ParseRule(source, name string) (*Result[G], error) {
	h, ok := p.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}

	s := &state[G]{p: p, src: source}
	if p.newGlobal != nil {
		s.global = p.newGlobal()
	}

	ok, match, capture := s.invoke(p.rules[h])
	switch {
	case s.fatal != nil:
		return nil, s.fatal
	case !ok:
		return nil, s.failure()
	case s.pos < len(source):
		c, _ := utf8.DecodeRuneInString(source[s.pos:])
		delim := '"'
		if c == '"' {
			delim = '\''
		}
		return nil, newError(source, s.pos, fmt.Sprintf("unexpected character %c%c%c", delim, c, delim))
	}
	return &Result[G]{Capture: capture, Match: match, Global: s.global}, nil
}

// state is the context of a single parse.
type state[G any] struct {
	p   *Parser[G]
	src string
	pos int

	name       string
	ignoreCase bool
	outer      any
	global     G

	// Deepest recorded failure. depth is how far into the source the failing
	// rule got, which may be past the reported offset. A failure is stale once
	// a rule invoked before it was recorded has matched; a later failure at
	// the same depth replaces it.
	failed    bool
	failDepth int
	failPos   int
	failMsg   string
	failCall  int
	failStale bool
	quiet     int
	calls     int

	fatal *Error
}

func (s *state[G]) fail(depth, pos int, msg string) {
	if s.quiet > 0 {
		return
	}
	if !s.failed || depth > s.failDepth || (depth == s.failDepth && s.failStale) {
		s.failed = true
		s.failDepth = depth
		s.failPos = pos
		s.failMsg = msg
		s.failCall = s.calls
		s.failStale = false
	}
}

func (s *state[G]) expected(token string) {
	if s.name != "" {
		token = s.name
	}
	s.fail(s.pos, s.pos, fmt.Sprintf("expected %s, got %s", token, describeNext(s.src, s.pos)))
}

func (s *state[G]) failure() *Error {
	if !s.failed {
		return newError(s.src, s.pos, fmt.Sprintf("unexpected %s", describeNext(s.src, s.pos)))
	}
	return newError(s.src, s.failPos, s.failMsg)
}

func (s *state[G]) invoke(r *Rule[G]) (bool, string, any) {
	call := s.calls
	s.calls++
	prevName, prevFold, prevOuter := s.name, s.ignoreCase, s.outer
	if r.display != "" {
		s.name = r.display
	}
	if r.ignoreCase {
		s.ignoreCase = true
	}
	value := prevOuter
	if r.init != nil {
		value = r.init(value)
	}
	s.outer = value

	ok, match, capture := s.match(r)
	if ok && s.fatal == nil {
		if r.capture != nil {
			x := capture
			if x == nil {
				x = match
			}
			v, err := r.capture(value, x)
			if err != nil {
				s.fatal = newError(s.src, s.pos, err.Error())
				ok = false
			}
			value = v
		} else {
			value = capture
		}
		if ok && r.global != nil {
			r.global(s.global, value)
		}
	} else {
		value = capture
	}

	if ok && s.failed && s.failCall > call {
		s.failStale = true
	}
	s.name, s.ignoreCase, s.outer = prevName, prevFold, prevOuter
	return ok, match, value
}

func (s *state[G]) match(r *Rule[G]) (bool, string, any) {
	if s.fatal != nil {
		return false, "", nil
	}
	switch r.kind {
	case kindRef:
		return s.invoke(s.p.rules[r.handle])
	case kindLit:
		return s.matchLit(r)
	case kindRegexp:
		return s.matchRegexp(r)
	case kindSeq:
		return s.matchSeq(r)
	case kindAlt:
		return s.matchAlt(r)
	case kindOpt:
		start := s.pos
		ok, match, capture := s.invoke(r.rules[0])
		if s.fatal != nil {
			return false, "", nil
		}
		if !ok {
			s.pos = start
			return true, "", nil
		}
		return true, match, capture
	case kindRep:
		return s.matchRep(r)
	case kindExc:
		return s.matchExc(r)
	}
	panic(fmt.Sprintf("grammar: unhandled rule kind %d", r.kind))
}

func (s *state[G]) matchLit(r *Rule[G]) (bool, string, any) {
	if end := s.pos + len(r.token); end <= len(s.src) {
		seg := s.src[s.pos:end]
		if seg == r.token || (s.ignoreCase && strings.EqualFold(seg, r.token)) {
			s.pos = end
			return true, r.token, nil
		}
	}
	s.expected(strconv.Quote(r.token))
	return false, "", nil
}

func (s *state[G]) matchRegexp(r *Rule[G]) (bool, string, any) {
	re := r.re
	if s.ignoreCase {
		re = r.reFold
	}
	rest := s.src[s.pos:]
	loc := re.FindStringSubmatchIndex(rest)
	if loc == nil {
		s.expected("/" + r.re.String() + "/")
		return false, "", nil
	}
	match := rest[loc[0]:loc[1]]
	if g := r.group; g > 0 && loc[2*g] >= 0 {
		match = rest[loc[2*g]:loc[2*g+1]]
	}
	s.pos += loc[1]
	return true, match, nil
}

func (s *state[G]) matchSeq(r *Rule[G]) (bool, string, any) {
	start := s.pos
	var capture any
	for _, sub := range r.rules {
		ok, _, c := s.invoke(sub)
		if !ok {
			s.pos = start
			return false, "", nil
		}
		if c != nil {
			capture = c
		}
	}
	return true, s.src[start:s.pos], capture
}

func (s *state[G]) matchAlt(r *Rule[G]) (bool, string, any) {
	start := s.pos
	for _, sub := range r.rules {
		ok, match, capture := s.invoke(sub)
		if ok {
			return true, match, capture
		}
		if s.fatal != nil {
			break
		}
		s.pos = start
	}
	return false, "", nil
}

func (s *state[G]) matchRep(r *Rule[G]) (bool, string, any) {
	start := s.pos
	var capture any
	for {
		before := s.pos
		ok, _, c := s.invoke(r.rules[0])
		if s.fatal != nil {
			return false, "", nil
		}
		if !ok {
			s.pos = before
			break
		}
		if c != nil {
			capture = c
		}
		if s.pos == before {
			break
		}
	}
	return true, s.src[start:s.pos], capture
}

func (s *state[G]) matchExc(r *Rule[G]) (bool, string, any) {
	start := s.pos
	for {
		before := s.pos
		s.quiet++
		ok, _, _ := s.invoke(r.rules[0])
		s.quiet--
		s.pos = before
		if s.fatal != nil {
			return false, "", nil
		}
		if ok {
			if s.pos == start {
				return false, "", nil
			}
			return true, s.src[start:s.pos], nil
		}
		if s.pos >= len(s.src) {
			s.fail(s.pos, start, "unexpected end of query")
			s.pos = start
			return false, "", nil
		}
		_, size := utf8.DecodeRuneInString(s.src[s.pos:])
		s.pos += size
	}
}
