// Package trace writes an append-only JSONL record of a run. Each line
// carries the SHA-256 of the previous one so a trace can be checked for
// tampering with Verify.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heig-tin/baygon/pkg/governance"
	"github.com/heig-tin/baygon/pkg/runner"
	"github.com/heig-tin/baygon/pkg/suite"
)

// EventType enumerates trace event types.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventCommandExecuted EventType = "command_executed"
	EventCaseComplete    EventType = "case_complete"
	EventRunComplete     EventType = "run_complete"
)

// Event is a single line of the trace.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

var genesis = strings.Repeat("0", 64)

// Writer writes trace events. It is safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	runID    string
	prevHash string
	policy   *governance.Policy
	now      func() time.Time
	err      error // first failed write
}

// NewWriter creates a trace writer. An empty runID is replaced by a random
// UUID.
func NewWriter(w io.Writer, runID string) *Writer {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Writer{
		w:        w,
		runID:    runID,
		prevHash: genesis,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewFileWriter creates a trace writer on a fresh file at path. An existing
// file is truncated so the hash chain starts at genesis.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the identifier stamped on every event.
func (tw *Writer) RunID() string { return tw.runID }

// SetPolicy redacts recorded output and environment through p.
func (tw *Writer) SetPolicy(p *governance.Policy) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.policy = p
}

// Close closes the underlying file, if the writer owns one, and reports the
// first failed write.
func (tw *Writer) Close() error {
	var err error
	if tw.closer != nil {
		err = tw.closer.Close()
	}
	return errors.Join(tw.Err(), err)
}

// Emit writes a single event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	evt := Event{
		Type:      eventType,
		Timestamp: tw.now(),
		RunID:     tw.runID,
		PrevHash:  tw.prevHash,
		Data:      data,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return tw.fail(fmt.Errorf("marshal trace event: %w", err))
	}
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return tw.fail(fmt.Errorf("write trace event %s: %w", eventType, err))
	}
	h := sha256.Sum256(line)
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

func (tw *Writer) fail(err error) error {
	if tw.err == nil {
		tw.err = err
	}
	return err
}

// Err returns the first event that could not be written, including those
// emitted by Hook.
func (tw *Writer) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.err
}

// EmitRunStart records the suite about to run.
func (tw *Writer) EmitRunStart(s *suite.Suite) error {
	return tw.Emit(EventRunStart, map[string]any{
		"name":          s.Name(),
		"version":       s.Version,
		"cases":         len(s.Cases()),
		"compute_score": s.ComputeScore,
	})
}

// Hook returns an execution hook recording every command.
func (tw *Writer) Hook() suite.Hook {
	return func(e suite.Execution) {
		tw.mu.Lock()
		p := tw.policy
		tw.mu.Unlock()

		data := map[string]any{
			"test_id":     e.TestID,
			"test_name":   e.TestName,
			"command":     p.Redact(e.Command()),
			"stdin":       p.Redact(e.Stdin),
			"stdout":      p.Redact(e.Stdout),
			"stderr":      p.Redact(e.Stderr),
			"exit_status": e.ExitStatus,
			"duration":    e.Elapsed.String(),
		}
		if e.Dir != "" {
			data["dir"] = e.Dir
		}
		if len(e.Env) > 0 {
			data["env"] = p.RedactEnv(e.Env)
		}
		if e.Err != nil {
			data["error"] = e.Err.Error()
		}
		// Failures are kept for Err and Close.
		_ = tw.Emit(EventCommandExecuted, data)
	}
}

// EmitCase records the outcome of a test case. Group entries are ignored.
func (tw *Writer) EmitCase(e runner.Entry) error {
	if e.Group {
		return nil
	}
	data := map[string]any{
		"test_id":  e.ID,
		"name":     e.Name,
		"status":   e.Status,
		"duration": (time.Duration(e.DurationMs) * time.Millisecond).String(),
	}
	if e.SkipReason != "" {
		data["skip_reason"] = e.SkipReason
	}
	if len(e.Issues) > 0 {
		issues := make([]string, len(e.Issues))
		for i, is := range e.Issues {
			issues[i] = is.String()
		}
		data["issues"] = issues
	}
	if e.Points != nil {
		data["points"] = e.Points.String()
	}
	return tw.Emit(EventCaseComplete, data)
}

// EmitRunComplete records the summary of a run and the hash of the chain
// so far.
func (tw *Writer) EmitRunComplete(rep *runner.Report) error {
	tw.mu.Lock()
	chain := tw.prevHash
	tw.mu.Unlock()

	s := rep.Summary
	data := map[string]any{
		"total":      s.Total,
		"passed":     s.Passed,
		"failed":     s.Failed,
		"skipped":    s.Skipped,
		"stopped":    rep.Stopped,
		"duration":   (time.Duration(rep.DurationMs) * time.Millisecond).String(),
		"chain_hash": chain,
	}
	if s.Points != nil && s.Earned != nil {
		data["points"] = s.Points.String()
		data["earned"] = s.Earned.String()
	}
	return tw.Emit(EventRunComplete, data)
}
