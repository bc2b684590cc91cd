// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package projection

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer strips combining marks after NFD decomposition, which folds
// accented characters to their base form ("é" -> "e").
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ligatures folds the characters NFD cannot decompose, matching the
// unaccent rules the SQL side applies ("œ" -> "oe", "ø" -> "o").
var ligatures = strings.NewReplacer(
	"œ", "oe", "Œ", "OE",
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"ß", "ss",
)

// NormalizeText is the client-side mirror of the SQL normalize_text
// function: accent-fold then lowercase, with whitespace collapsed. The two
// implementations MUST stay in agreement; fingerprints and trigram lookups
// compare their outputs.
func NormalizeText(s string) string {
	folded, _, err := transform.String(normalizer, s)
	if err != nil {
		// Transform failures only happen on invalid UTF-8; fall back to
		// the raw input rather than losing the row.
		folded = s
	}
	folded = ligatures.Replace(folded)
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
