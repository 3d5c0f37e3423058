// Package validate checks the warehouse for physical and temporal consistency.
package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/reps/internal/events"
	"example.com/reps/internal/observability"
	"example.com/reps/internal/warehouse"
)

// Source is the read-only view of the warehouse the rules run against.
type Source interface {
	SessionSpans(ctx context.Context) ([]warehouse.SessionSpan, error)
	LabelSegments(ctx context.Context) ([]warehouse.SessionSegment, error)
	ScanIMU(ctx context.Context, fn func(warehouse.SessionSample) error) error
}

// Namer renders exercise codes for humans.
type Namer interface {
	Name(code int32) string
}

type codeNamer struct{}

func (codeNamer) Name(code int32) string { return fmt.Sprintf("exercise %d", code) }

// RuleResult is the outcome of one rule.
type RuleResult struct {
	Rule       string      `json:"rule"`
	Header     string      `json:"header"`
	Violations []Violation `json:"violations"`
	Lines      []string    `json:"lines"`
	Error      string      `json:"error,omitempty"`
}

// Report aggregates every rule of a validation run.
type Report struct {
	RunID       string       `json:"run_id"`
	Results     []RuleResult `json:"results"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Clean reports whether no rule found a violation.
func (r Report) Clean() bool {
	for _, res := range r.Results {
		if len(res.Violations) > 0 {
			return false
		}
	}
	return true
}

// Messages returns one human-readable block per failing rule, in rule order.
func (r Report) Messages() []string {
	var out []string
	for _, res := range r.Results {
		if len(res.Violations) == 0 {
			continue
		}
		out = append(out, res.Header+"\n"+strings.Join(res.Lines, "\n"))
	}
	return out
}

// Counts returns the number of violations per rule, including rules that passed.
func (r Report) Counts() map[string]int {
	counts := make(map[string]int, len(r.Results))
	for _, res := range r.Results {
		counts[res.Rule] = len(res.Violations)
	}
	return counts
}

// Validator runs a fixed rule set against a Source.
type Validator struct {
	source    Source
	rules     []Rule
	names     Namer
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures optional behaviour for the Validator.
type Option func(*Validator)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(v *Validator) { v.rules = rules }
}

// WithNamer renders exercise codes in null padding reports.
func WithNamer(names Namer) Option {
	return func(v *Validator) { v.names = names }
}

// WithPublisher sets the destination of ValidationCompleted events.
func WithPublisher(p events.Publisher) Option {
	return func(v *Validator) { v.publisher = p }
}

// New constructs a Validator running DefaultRules with the default limits.
func New(source Source, opts ...Option) *Validator {
	v := &Validator{
		source:    source,
		rules:     DefaultRules(DefaultLimits(), false),
		names:     codeNamer{},
		publisher: events.Noop{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every rule. A rule that fails to execute does not stop the others; the
// joined execution errors are returned alongside the partial report.
func (v *Validator) Validate(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	var errs []error

	for _, rule := range v.rules {
		res := RuleResult{Rule: rule.Name, Header: rule.Header}
		violations, err := rule.Check(ctx, v.source)
		if err != nil {
			err = fmt.Errorf("rule %s: %w", rule.Name, err)
			errs = append(errs, err)
			res.Error = err.Error()
			v.logger.Error("validation rule failed", zap.String("rule", rule.Name), zap.Error(err))
		}
		res.Violations = violations
		for _, viol := range violations {
			res.Lines = append(res.Lines, rule.Line(viol, v.names))
		}
		v.logger.Info("validation rule finished", zap.String("rule", rule.Name), zap.Int("violations", len(violations)))
		report.Results = append(report.Results, res)
	}
	report.CompletedAt = v.now().UTC()

	counts := report.Counts()
	observability.RecordValidation(report.CompletedAt, counts)

	evt := events.ValidationCompleted{
		RunID:       report.RunID,
		Clean:       report.Clean() && len(errs) == 0,
		Violations:  counts,
		Messages:    report.Messages(),
		CompletedAt: report.CompletedAt,
	}
	if err := v.publisher.ValidationCompleted(ctx, evt); err != nil {
		v.logger.Warn("publish validation completed event", zap.Error(err))
	}

	return report, errors.Join(errs...)
}
