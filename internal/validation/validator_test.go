// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package validation

import (
	"strings"
	"testing"
)

type searchRequest struct {
	Query string `validate:"required,min=1"`
	Max   int    `validate:"min=1,max=40"`
	Lang  string `validate:"omitempty,min=2,max=5"`
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	if err := ValidateStruct(&searchRequest{Query: "tintin", Max: 20}); err != nil {
		t.Errorf("ValidateStruct: %v", err)
	}
}

func TestValidateStruct_Required(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&searchRequest{Max: 20})
	if err == nil {
		t.Fatal("empty query must fail")
	}
	if got := err.Error(); got != "query is required" {
		t.Errorf("Error = %q", got)
	}
	if fields := err.Fields(); len(fields) != 1 || fields[0] != "query" {
		t.Errorf("Fields = %v", fields)
	}
}

func TestValidateStruct_MinMaxMessages(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&searchRequest{Query: "x", Max: 500})
	if err == nil {
		t.Fatal("max=500 must fail")
	}
	if got := err.Error(); got != "max must be at most 40" {
		t.Errorf("Error = %q", got)
	}

	// String fields get the character-count variant.
	err = ValidateStruct(&searchRequest{Query: "x", Max: 1, Lang: "f"})
	if err == nil {
		t.Fatal("1-char lang must fail")
	}
	if got := err.Error(); !strings.Contains(got, "characters") {
		t.Errorf("Error = %q, want character-count message", got)
	}
}

func TestValidateStruct_MultipleFailures(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&searchRequest{})
	if err == nil {
		t.Fatal("expected failures")
	}
	if got := len(err.Errors()); got != 2 {
		t.Fatalf("Errors = %d, want query and max", got)
	}
	if got := err.Error(); !strings.Contains(got, "; ") {
		t.Errorf("combined message = %q, want joined parts", got)
	}
	fields := err.Fields()
	if fields[0] != "query" || fields[1] != "max" {
		t.Errorf("Fields = %v", fields)
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("validator instance not shared")
	}
}
