// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

// Package cache implements the two-tier read-through cache engine: the
// per-item cache keyed by (source, sourceId) and the per-query search
// cache keyed by a deterministic fingerprint, both backed by PostgreSQL,
// plus the bounded fire-and-forget write-back pool they share.
package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Fingerprint derives the deterministic search-cache key from a query and
// its parameters.
//
// The fingerprint is the canonical JSON serialization of {query} ∪ params
// with keys sorted lexicographically and every value coerced to a string.
// Identical logical inputs produce identical fingerprints regardless of
// the params map's insertion order.
func Fingerprint(query string, params map[string]any) string {
	keys := make([]string, 0, len(params)+1)
	keys = append(keys, "query")
	for k := range params {
		if k == "query" {
			continue // the query argument wins over a params duplicate
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		v := query
		if k != "query" {
			v = coerceString(params[k])
		}
		sb.WriteString(quote(k))
		sb.WriteByte(':')
		sb.WriteString(quote(v))
	}
	sb.WriteByte('}')
	return sb.String()
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// Integral floats print without a trailing ".0" so that 3 and
		// 3.0 fingerprint identically.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// quote produces a JSON string literal. Parameter keys and values are
// plain query text; the minimal escape set keeps the output valid JSON.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
