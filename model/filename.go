package model

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeStoredFilename recovers a UTF-8 filename from the lossy form the
// upload path stores. Historical rows hold the filename's raw UTF-8
// bytes reinterpreted as latin1, so every byte became one rune; encoding
// those runes back to latin1 yields the original byte sequence.
//
// This is a compatibility shim for data already in the database. Once
// storage is normalized to UTF-8 it can be removed in one place.
func DecodeStoredFilename(stored string) string {
	encoded, err := charmap.ISO8859_1.NewEncoder().String(stored)
	if err != nil {
		// Contains runes above U+00FF, so it never went through the
		// lossy path. Use it as-is.
		return stored
	}
	if !utf8.ValidString(encoded) {
		return stored
	}
	return encoded
}
