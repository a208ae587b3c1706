package grammar

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Error is a parse failure at a position of the source.
type Error struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Offset  int    `json:"offset"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func newError(src string, offset int, msg string) *Error {
	line, column := position(src, offset)
	return &Error{Message: msg, Line: line, Column: column, Offset: offset}
}

// position returns the 1-based line and column of byte offset i within s.
// Columns count runes.
func position(s string, i int) (line, column int) {
	if i > len(s) {
		i = len(s)
	}
	head := s[:i]
	line = 1 + strings.Count(head, "\n")
	if nl := strings.LastIndexByte(head, '\n'); nl >= 0 {
		head = head[nl+1:]
	}
	return line, utf8.RuneCountInString(head) + 1
}

func describeNext(src string, i int) string {
	if i >= len(src) {
		return "end of query"
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return fmt.Sprintf("%q", string(r))
}
