package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Query accumulates SQL text and its arguments together, so every placeholder
// number comes from the argument it binds and the two can never disagree.
type Query struct {
	sb   strings.Builder
	args []any
}

// Arg binds v and returns its placeholder ("$1", "$2", ...).
func (q *Query) Arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// Write appends raw SQL. Only constant text or whitelisted identifiers may be written.
func (q *Query) Write(s string) *Query {
	q.sb.WriteString(s)
	return q
}

// Writef appends formatted SQL; use Arg for any value inside the format arguments.
func (q *Query) Writef(format string, a ...any) *Query {
	fmt.Fprintf(&q.sb, format, a...)
	return q
}

// In writes "column = ANY($n)" binding the whole slice as one array parameter.
func (q *Query) In(column string, values any) *Query {
	return q.Writef("%s = ANY(%s)", column, q.Arg(values))
}

func (q *Query) SQL() string { return q.sb.String() }
func (q *Query) Args() []any { return q.args }
