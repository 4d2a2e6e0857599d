package store

import _ "embed"

// Schema is the reference DDL for every table the repositories touch. The
// service never applies it; `qa schema` prints it for operators.
//
//go:embed schema.sql
var Schema string
