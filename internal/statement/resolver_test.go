package statement

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/querycomposer/internal/testutil"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
	"github.com/stretchr/testify/assert"
)

type stubOracle struct {
	rng   *textrange.Range
	err   error
	calls int
}

func (o *stubOracle) EnclosingStatementRange(string, textrange.Range) (*textrange.Range, error) {
	o.calls++
	return o.rng, o.err
}

func sel(from, to int) *textrange.Range {
	r := textrange.New(from, to)
	return &r
}

func TestResolver_Resolve(t *testing.T) {
	text := "SELECT 1; SELECT 2;"

	tests := []struct {
		name string
		sel  *textrange.Range
		want string
	}{
		{name: "no selection", sel: nil, want: text},
		{name: "inside second statement", sel: sel(12, 15), want: "SELECT 2;"},
		{name: "inside first statement", sel: sel(0, 3), want: "SELECT 1;"},
		{name: "cursor expands to statement", sel: sel(3, 3), want: "SELECT 1;"},
		{name: "across both", sel: sel(5, 12), want: text},
		{name: "whole text", sel: sel(0, 19), want: text},
		{name: "out of bounds", sel: sel(5, 40), want: text},
	}

	r := NewResolver(nil, testutil.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(text, tt.sel))
		})
	}
}

func TestResolver_CursorOnBoundary(t *testing.T) {
	r := NewResolver(nil, nil)
	assert.Equal(t, "SELECT 1;", r.Resolve("SELECT 1;SELECT 2;", sel(9, 9)))
}

func TestResolver_DollarQuotedBody(t *testing.T) {
	text := "CREATE FUNCTION f() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql; SELECT f();"
	r := NewResolver(nil, nil)
	assert.Equal(t, "CREATE FUNCTION f() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql;", r.Resolve(text, sel(40, 40)))
	assert.Equal(t, "SELECT f();", r.Resolve(text, sel(70, 70)))
}

func TestResolver_CursorBetweenStatements(t *testing.T) {
	text := "SELECT 1;\n\nSELECT 2;"
	r := NewResolver(nil, nil)
	assert.Equal(t, text, r.Resolve(text, sel(10, 10)))
}

func TestResolver_Fallbacks(t *testing.T) {
	text := "SELECT 1; SELECT 2;"

	tests := []struct {
		name   string
		oracle *stubOracle
	}{
		{name: "oracle error", oracle: &stubOracle{err: errors.New("parse failed")}},
		{name: "oracle returns nil", oracle: &stubOracle{}},
		{name: "oracle returns out of bounds", oracle: &stubOracle{rng: sel(0, 99)}},
		{name: "oracle returns empty statement", oracle: &stubOracle{rng: sel(4, 4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.oracle, testutil.NewTestLogger(t))
			assert.Equal(t, text, r.Resolve(text, sel(12, 13)))
			assert.Equal(t, 1, tt.oracle.calls)
		})
	}
}

func TestResolver_UnterminatedInputFallsBack(t *testing.T) {
	text := "SELECT 1; SELECT 'oops"
	r := NewResolver(nil, nil)
	assert.Equal(t, text, r.Resolve(text, sel(12, 13)))
}
