// Package store carries the shared storage schema for the approval module.
// The per-aggregate stores live in subpackages.
package store

import _ "embed"

// Schema is the DDL for all approval tables. Integration tests and local
// bootstrap apply it verbatim; it is idempotent.
//
//go:embed schema.sql
var Schema string
