package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/selection"
)

// ErrInvalidQuery is returned for a target query that cannot be resolved to
// a strategy.
var ErrInvalidQuery = errors.New("invalid query")

// Strategy is how a query picks one point set.
type Strategy int

const (
	// StrategyFirst takes the first detection of the label.
	StrategyFirst Strategy = iota
	// StrategyNamed asks the instance resolver for the descriptor within its
	// category.
	StrategyNamed
	// StrategyGeometric applies a selection criterion to every detection of
	// the category.
	StrategyGeometric
)

var strategyNames = map[Strategy]string{
	StrategyFirst:     "first",
	StrategyNamed:     "named",
	StrategyGeometric: "geometric",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts "first", "named" or "geometric".
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for s, sn := range strategyNames {
		if sn == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", ErrInvalidQuery, name)
}

// Query is a parsed target reference such as "blue mug" or "left branch".
type Query struct {
	Strategy Strategy

	// Label is the detect label for StrategyFirst.
	Label string

	// Instance is the descriptor for StrategyNamed.
	Instance string

	// Category is searched by StrategyNamed and StrategyGeometric.
	Category string

	// Criterion orders candidates for StrategyGeometric.
	Criterion selection.Criterion

	// Raw is the text the query was parsed from.
	Raw string
}

// String renders the query in a form ParseQuery accepts. A geometric query
// keeps only the criterion's leading word, so "nearest" and "farthest" lose
// their reference point; parse those back with ParseQueryNear.
func (q Query) String() string {
	switch q.Strategy {
	case StrategyNamed:
		return "named:" + q.Instance
	case StrategyGeometric:
		word := ""
		if q.Criterion != nil {
			if f := strings.Fields(q.Criterion.Name()); len(f) > 0 {
				word = f[0]
			}
		}
		return "geometric:" + word + " " + q.Category
	default:
		return "first:" + q.Label
	}
}

// ParseQuery turns a target reference into a Query.
//
// The leading word decides the strategy. A criterion word ("left", "top",
// "nearest", ...) followed by a category is geometric. Any other multi-word
// reference is a named instance whose category is its last word. A single
// word takes the first detection.
//
// A "first:", "named:" or "geometric:" prefix forces the strategy, e.g.
// "first:blue mug" detects the instance label directly.
func ParseQuery(text string) (Query, error) {
	return ParseQueryNear(text, r3.Vector{})
}

// ParseQueryNear is ParseQuery with the reference point used by "nearest"
// and "farthest".
func ParseQueryNear(text string, ref r3.Vector) (Query, error) {
	raw := text
	forced := -1
	if prefix, rest, ok := strings.Cut(text, ":"); ok {
		s, err := ParseStrategy(prefix)
		if err != nil {
			return Query{}, err
		}
		forced = int(s)
		text = rest
	}

	words := strings.Fields(detection.Normalize(text))
	if len(words) == 0 {
		return Query{}, fmt.Errorf("%w: empty target", ErrInvalidQuery)
	}
	norm := strings.Join(words, " ")
	last := words[len(words)-1]

	criterion, isCriterion := selection.ParseCriterion(words[0], ref)

	strategy := StrategyFirst
	switch {
	case forced >= 0:
		strategy = Strategy(forced)
	case len(words) > 1 && isCriterion:
		strategy = StrategyGeometric
	case len(words) > 1:
		strategy = StrategyNamed
	}

	q := Query{Strategy: strategy, Raw: raw}
	switch strategy {
	case StrategyFirst:
		q.Label = norm
	case StrategyNamed:
		if len(words) < 2 {
			return Query{}, fmt.Errorf("%w: %q names no instance within a category", ErrInvalidQuery, raw)
		}
		q.Instance = norm
		q.Category = last
	case StrategyGeometric:
		if len(words) < 2 || !isCriterion {
			return Query{}, fmt.Errorf("%w: %q needs a criterion word and a category", ErrInvalidQuery, raw)
		}
		q.Criterion = criterion
		q.Category = strings.Join(words[1:], " ")
	}
	return q, nil
}
