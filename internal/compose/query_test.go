package compose

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in        string
		strategy  Strategy
		label     string
		instance  string
		category  string
		criterion string
	}{
		{in: "mug", strategy: StrategyFirst, label: "mug"},
		{in: "  Branch ", strategy: StrategyFirst, label: "branch"},
		{in: "blue mug", strategy: StrategyNamed, instance: "blue mug", category: "mug"},
		{in: "Big Blue  Mug", strategy: StrategyNamed, instance: "big blue mug", category: "mug"},
		{in: "left branch", strategy: StrategyGeometric, category: "branch", criterion: "leftmost"},
		{in: "Rightmost branch", strategy: StrategyGeometric, category: "branch", criterion: "rightmost"},
		{in: "top shelf bracket", strategy: StrategyGeometric, category: "shelf bracket", criterion: "highest"},
		{in: "largest mug", strategy: StrategyGeometric, category: "mug", criterion: "largest"},
		{in: "first:blue mug", strategy: StrategyFirst, label: "blue mug"},
		{in: "named:left mug", strategy: StrategyNamed, instance: "left mug", category: "mug"},
		{in: "geometric:lowest branch", strategy: StrategyGeometric, category: "branch", criterion: "lowest"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q, err := ParseQuery(tt.in)
			if err != nil {
				t.Fatalf("ParseQuery failed: %v", err)
			}
			if q.Strategy != tt.strategy {
				t.Errorf("Strategy: got %v, want %v", q.Strategy, tt.strategy)
			}
			if q.Label != tt.label || q.Instance != tt.instance || q.Category != tt.category {
				t.Errorf("got label=%q instance=%q category=%q", q.Label, q.Instance, q.Category)
			}
			name := ""
			if q.Criterion != nil {
				name = q.Criterion.Name()
			}
			if name != tt.criterion {
				t.Errorf("Criterion: got %q, want %q", name, tt.criterion)
			}
			if q.Raw != tt.in {
				t.Errorf("Raw: got %q", q.Raw)
			}
		})
	}
}

func TestParseQuery_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "named:mug", "geometric:branch", "geometric:blue mug", "sideways:mug"} {
		if _, err := ParseQuery(in); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("ParseQuery(%q): expected ErrInvalidQuery, got %v", in, err)
		}
	}
}

func TestQueryString_RoundTrip(t *testing.T) {
	for _, in := range []string{"mug", "blue mug", "left branch", "first:blue mug", "nearest mug", "farthest old branch", "top shelf box"} {
		q, err := ParseQuery(in)
		if err != nil {
			t.Fatalf("ParseQuery(%q) failed: %v", in, err)
		}
		again, err := ParseQuery(q.String())
		if err != nil {
			t.Fatalf("ParseQuery(%q) failed: %v", q.String(), err)
		}
		if again.String() != q.String() {
			t.Errorf("%q: %q != %q", in, again.String(), q.String())
		}
	}
}

func TestQueryString_NearKeepsCategory(t *testing.T) {
	ref := r3.Vector{X: 1}
	q, err := ParseQueryNear("nearest mug", ref)
	if err != nil {
		t.Fatalf("ParseQueryNear failed: %v", err)
	}
	if got := q.String(); got != "geometric:nearest mug" {
		t.Errorf("String: got %q", got)
	}

	again, err := ParseQueryNear(q.String(), ref)
	if err != nil {
		t.Fatalf("ParseQueryNear(%q) failed: %v", q.String(), err)
	}
	if again.Category != "mug" {
		t.Errorf("category: got %q, want mug", again.Category)
	}
	if again.Criterion.Name() != q.Criterion.Name() {
		t.Errorf("criterion: got %q, want %q", again.Criterion.Name(), q.Criterion.Name())
	}
}

func TestParsePlan(t *testing.T) {
	targets, err := ParsePlan(map[string]string{"mug": "blue mug", "branch": "left branch"})
	if err != nil {
		t.Fatalf("ParsePlan failed: %v", err)
	}
	if len(targets) != 2 || targets[0].Role != "branch" || targets[1].Role != "mug" {
		t.Errorf("unexpected targets: %+v", targets)
	}

	if _, err := ParsePlan(map[string]string{}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("empty plan: expected ErrInvalidPlan, got %v", err)
	}
	if _, err := ParsePlan(map[string]string{"mug": ""}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("empty query: expected ErrInvalidQuery, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyFirst, StrategyNamed, StrategyGeometric} {
		got, err := ParseStrategy(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStrategy(%q): got (%v, %v)", s.String(), got, err)
		}
	}
}
