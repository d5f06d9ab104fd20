// Package db embeds the billing database schema.
package db

import _ "embed"

// Schema creates the branch, tariff, order and api key tables. It is safe to
// apply repeatedly.
//
//go:embed migrations/001_schema.sql
var Schema string
