// Package intake decides which files are accepted into the queue.
package intake

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/talent-screener/internal/cvfile"
)

// Filter represents a single acceptance step applied to candidate files.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, deps Deps, files []*cvfile.File) ([]*cvfile.File, []Rejection, error)
}

// Deps aggregates dependencies shared across all steps.
type Deps struct {
	Logger *zap.Logger
}

// Rejection explains why a file was not accepted.
type Rejection struct {
	File   *cvfile.File
	Filter string
	Reason string
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// toggle is embedded by filters to implement Disable and IsEnabled.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the accepted
// files in their original order together with every rejection.
func Run(ctx context.Context, deps Deps, steps []Filter, files []*cvfile.File) ([]*cvfile.File, []Rejection, error) {
	var rejected []Rejection

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		initial := len(files)
		next, dropped, err := step.Apply(ctx, deps, files)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		info := Step{Initial: initial, Dropped: len(dropped), Left: len(next)}
		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		rejected = append(rejected, dropped...)
		files = next
	}

	return files, rejected, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// partition keeps files for which reject returns an empty reason.
func partition(name string, files []*cvfile.File, reject func(*cvfile.File) string) ([]*cvfile.File, []Rejection) {
	kept := make([]*cvfile.File, 0, len(files))
	var dropped []Rejection
	for _, f := range files {
		if reason := reject(f); reason != "" {
			dropped = append(dropped, Rejection{File: f, Filter: name, Reason: reason})
			continue
		}
		kept = append(kept, f)
	}
	return kept, dropped
}
