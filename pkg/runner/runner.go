// Package runner walks a resolved suite, runs its cases in order and
// collects a report.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heig-tin/baygon/pkg/suite"
)

// Runner executes a suite depth-first, one case at a time.
type Runner struct {
	// Limit stops the run once that many cases failed. Zero: no limit.
	Limit int
	// Hook is passed to every case run.
	Hook suite.Hook
	// OnEntry is called for each group header, before its children run,
	// and for each case once it ran.
	OnEntry func(Entry)
	Logger  *zap.Logger
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run resets s and runs every case. On cancellation the partial report is
// returned with ctx's error.
func (r *Runner) Run(ctx context.Context, s *suite.Suite) (*Report, error) {
	start := time.Now()
	s.Reset()
	rep := &Report{Name: s.Name(), Version: s.Version}
	if s.ComputeScore {
		total := s.Points()
		earned := decimal.Zero
		rep.Summary.Points, rep.Summary.Earned = &total, &earned
	}

	w := &walker{r: r, rep: rep, score: s.ComputeScore}
	err := w.children(ctx, s.TestGroup, 0)
	if errors.Is(err, errStop) {
		rep.Stopped = true
		err = nil
	}
	rep.DurationMs = time.Since(start).Milliseconds()
	r.logger().Info("run complete",
		zap.Int("total", rep.Summary.Total),
		zap.Int("passed", rep.Summary.Passed),
		zap.Int("failed", rep.Summary.Failed),
		zap.Int("skipped", rep.Summary.Skipped),
		zap.Bool("stopped", rep.Stopped))
	return rep, err
}

var errStop = errors.New("failure limit reached")

type walker struct {
	r     *Runner
	rep   *Report
	score bool
}

func (w *walker) emit(e Entry) {
	w.rep.Entries = append(w.rep.Entries, e)
	if w.r.OnEntry != nil {
		w.r.OnEntry(e)
	}
}

func (w *walker) children(ctx context.Context, g *suite.TestGroup, depth int) error {
	for _, n := range g.Tests() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch t := n.(type) {
		case *suite.TestGroup:
			w.emit(Entry{ID: t.ID().String(), Name: t.Name(), Group: true, Depth: depth, Points: w.points(t)})
			err = w.children(ctx, t, depth+1)
		case *suite.TestCase:
			err = w.testCase(ctx, t, depth)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) testCase(ctx context.Context, tc *suite.TestCase, depth int) error {
	start := time.Now()
	issues, err := tc.Run(ctx, w.r.Hook)
	if err != nil && !errors.Is(err, suite.ErrSkipped) {
		return err
	}
	e := Entry{
		ID:         tc.ID().String(),
		Name:       tc.Name(),
		Depth:      depth,
		Status:     string(tc.Status()),
		DurationMs: time.Since(start).Milliseconds(),
		Points:     w.points(tc),
		SkipReason: tc.SkipReason,
		Issues:     issues,
	}

	sum := &w.rep.Summary
	sum.Total++
	switch tc.Status() {
	case suite.Passed:
		sum.Passed++
		if e.Points != nil {
			earned := *e.Points
			e.Earned = &earned
			*sum.Earned = sum.Earned.Add(earned)
		}
	case suite.Failed:
		sum.Failed++
	case suite.Skipped:
		sum.Skipped++
	}
	w.emit(e)

	if w.r.Limit > 0 && sum.Failed >= w.r.Limit {
		w.r.logger().Warn("failure limit reached", zap.Int("limit", w.r.Limit))
		return errStop
	}
	return nil
}

func (w *walker) points(n suite.Node) *decimal.Decimal {
	if !w.score {
		return nil
	}
	p := n.Points()
	return &p
}
