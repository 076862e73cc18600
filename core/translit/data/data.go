// Package data embeds the curated transliteration tables.
package data

import "embed"

// FS holds every *.tbl file in this directory.
//
//go:embed *.tbl
var FS embed.FS
