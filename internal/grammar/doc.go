// Package grammar is a small backtracking PEG engine. Grammars are declared
// with combinators, compiled once, and then used to parse any number of
// inputs concurrently.
//
// A grammar is defined by a function that registers named rules:
//
//	p, err := grammar.Compile(func(b *grammar.Builder[*Globals]) {
//		b.Rule("main", b.Seq(b.Ref("number"), b.Rep(b.Lit(","), b.Ref("number"))))
//		b.Rule("number", b.LitRegexp(regexp.MustCompile(`^\d+`)))
//	}, newGlobals)
//
// Combinators:
//
//	Ref(name)        matches the named rule; references may be recursive
//	Lit(s)           matches s exactly (or case-insensitively, see IgnoreCase)
//	LitRegexp(re)    matches re against the rest of the input; not anchored
//	Seq(rules...)    matches every rule in order
//	Alt(rules...)    matches the first rule that succeeds
//	Opt(rules...)    matches Seq(rules...) zero or one time; never fails
//	Rep(rules...)    matches Seq(rules...) any number of times; never fails
//	Exc(rule)        matches everything up to, but excluding, rule
//
// Besides the matched text, every rule produces a capture. Captures flow up
// through the rule tree and are shaped by decorators. Prefix decorators are
// applied before the rule is built:
//
//	b.Init(fn).Seq(...)      start the rule with a fresh accumulator
//	b.Name("number").Lit(..) name used in error messages, inherited by inner rules
//	b.IgnoreCase().Lit(..)   make inner literals case-insensitive
//
// Suffix decorators transform the capture once the rule matches. A capture
// function receives the accumulator of the enclosing rule and either the
// rule's capture or, when the rule captured nothing, its matched text:
//
//	rule.Set()                capture the matched text
//	rule.SetValue(v)          capture v
//	rule.Call(fn)             capture fn(accumulator, capture)
//	rule.Skip()               capture nothing
//	rule.Global(fn)           call fn with the parse-wide global value
//
// A capture function that returns an error aborts the parse. The error is
// reported at the current input position, the same way as a mismatch.
package grammar
