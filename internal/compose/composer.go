package compose

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
	"github.com/ironsheep/scene-compose-mcp/internal/selection"
)

var (
	// ErrNotFound is returned when a target has no detections.
	ErrNotFound = detection.ErrNotFound

	// ErrInvalidPlan is returned for an empty or duplicated role.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Target binds a role in the output to the query that fills it.
type Target struct {
	Role  string
	Query Query
}

// Output maps each role to its selected point set.
type Output map[string]geometry.PointSet

// Roles returns the output's roles in sorted order.
func (o Output) Roles() []string {
	roles := make([]string, 0, len(o))
	for r := range o {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Resolution is the outcome of resolving one query.
type Resolution struct {
	Role       string            `json:"role,omitempty"`
	Query      string            `json:"query"`
	Strategy   string            `json:"strategy"`
	Index      int               `json:"index"`
	Candidates int               `json:"candidates"`
	Criterion  string            `json:"criterion,omitempty"`
	Scores     []float64         `json:"scores,omitempty"`
	PointSet   geometry.PointSet `json:"point_set"`
}

// Composer resolves target queries against a detector.
//
// A Composer holds no per-call state; composing the same plan twice against
// unchanged detections gives equal outputs.
type Composer struct {
	detector detection.Detector
	resolver detection.InstanceResolver
	policy   selection.TiePolicy
}

// NewComposer returns a Composer using d for detections and r for named
// instance lookups.
func NewComposer(d detection.Detector, r detection.InstanceResolver, policy selection.TiePolicy) *Composer {
	return &Composer{detector: d, resolver: r, policy: policy}
}

// ForBackend returns a Composer over a backend that both detects and
// resolves.
func ForBackend(b detection.Backend, policy selection.TiePolicy) *Composer {
	return NewComposer(b, b, policy)
}

// DetectInstance returns the single named instance from its category as a
// one-element slice.
func (c *Composer) DetectInstance(ctx context.Context, instance, category string) ([]geometry.PointSet, error) {
	candidates, err := c.detect(ctx, category)
	if err != nil {
		return nil, err
	}
	res, err := selection.SelectNamed(ctx, c.resolver, candidates, instance, category)
	if err != nil {
		return nil, err
	}
	return []geometry.PointSet{res.PointSet}, nil
}

// DetectCategory returns every detection of category.
func (c *Composer) DetectCategory(ctx context.Context, category string) ([]geometry.PointSet, error) {
	return c.detect(ctx, category)
}

// Resolve picks one point set for q.
func (c *Composer) Resolve(ctx context.Context, q Query) (*Resolution, error) {
	res := &Resolution{Query: q.String(), Strategy: q.Strategy.String()}

	switch q.Strategy {
	case StrategyFirst:
		sets, err := c.detect(ctx, q.Label)
		if err != nil {
			return nil, err
		}
		res.Index, res.Candidates, res.PointSet = 0, len(sets), sets[0]

	case StrategyNamed:
		sets, err := c.detect(ctx, q.Category)
		if err != nil {
			return nil, err
		}
		sel, err := selection.SelectNamed(ctx, c.resolver, sets, q.Instance, q.Category)
		if err != nil {
			return nil, err
		}
		res.Index, res.Candidates, res.PointSet = sel.Index, len(sets), sel.PointSet

	case StrategyGeometric:
		if q.Criterion == nil {
			return nil, fmt.Errorf("%w: geometric query without a criterion", ErrInvalidQuery)
		}
		sets, err := c.detect(ctx, q.Category)
		if err != nil {
			return nil, err
		}
		sel, err := selection.Select(sets, q.Criterion, c.policy)
		if err != nil {
			return nil, fmt.Errorf("select %s %s: %w", q.Criterion.Name(), q.Category, err)
		}
		res.Index, res.Candidates, res.PointSet = sel.Index, len(sets), sel.PointSet
		res.Criterion, res.Scores = sel.Criterion, sel.Scores

	default:
		return nil, fmt.Errorf("%w: unknown strategy %v", ErrInvalidQuery, q.Strategy)
	}
	return res, nil
}

// ResolveAll resolves every target in plan order. It stops at the first
// failure.
func (c *Composer) ResolveAll(ctx context.Context, targets []Target) ([]Resolution, error) {
	if err := validatePlan(targets); err != nil {
		return nil, err
	}
	out := make([]Resolution, 0, len(targets))
	for _, t := range targets {
		res, err := c.Resolve(ctx, t.Query)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", t.Role, err)
		}
		res.Role = t.Role
		out = append(out, *res)
	}
	return out, nil
}

// Compose resolves every target and returns the role mapping. The output
// holds exactly the plan's roles, or nothing on error.
func (c *Composer) Compose(ctx context.Context, targets []Target) (Output, error) {
	resolved, err := c.ResolveAll(ctx, targets)
	if err != nil {
		return nil, err
	}
	out := make(Output, len(resolved))
	for _, r := range resolved {
		out[r.Role] = r.PointSet
	}
	return out, nil
}

func (c *Composer) detect(ctx context.Context, label string) ([]geometry.PointSet, error) {
	sets, err := c.detector.Detect(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("detect %q: %w", label, err)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: no detections for %q", ErrNotFound, label)
	}
	for i, ps := range sets {
		if ps.Len() == 0 {
			return nil, fmt.Errorf("detect %q: set %d: %w", label, i, geometry.ErrEmptyPointSet)
		}
	}
	return sets, nil
}

func validatePlan(targets []Target) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidPlan)
	}
	seen := make(map[string]bool, len(targets))
	for i, t := range targets {
		if t.Role == "" {
			return fmt.Errorf("%w: target %d has no role", ErrInvalidPlan, i)
		}
		if seen[t.Role] {
			return fmt.Errorf("%w: duplicate role %q", ErrInvalidPlan, t.Role)
		}
		seen[t.Role] = true
	}
	return nil
}

// ParsePlan parses role to query text. Targets are ordered by role.
func ParsePlan(plan map[string]string) ([]Target, error) {
	roles := make([]string, 0, len(plan))
	for role := range plan {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	targets := make([]Target, 0, len(roles))
	for _, role := range roles {
		q, err := ParseQuery(plan[role])
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", role, err)
		}
		targets = append(targets, Target{Role: role, Query: q})
	}
	if err := validatePlan(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// DefaultPlan is the stock tabletop composition: the blue mug taken as the
// first "blue mug" detection, and the leftmost branch.
func DefaultPlan() []Target {
	return []Target{
		{Role: "mug", Query: Query{Strategy: StrategyFirst, Label: "blue mug", Raw: "first:blue mug"}},
		{Role: "branch", Query: Query{Strategy: StrategyGeometric, Category: "branch", Criterion: selection.Leftmost, Raw: "left branch"}},
	}
}
