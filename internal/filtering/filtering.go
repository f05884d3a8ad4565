package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/retrieval"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to retrieved calls.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, c *calls.Calls) (Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config selects the filters applied to every retrieval result.
type Config struct {
	// ExcludeFile lists calls already reviewed by the user.
	ExcludeFile string   `mapstructure:"exclude-file"`
	Programmes  []string `mapstructure:"exclude-programmes"`
	SkipClosed  bool     `mapstructure:"skip-closed"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Steps builds the filter list of cfg. Filters with nothing to do are disabled.
func Steps(cfg Config) []Filter {
	steps := []Filter{
		NewClosed(),
		NewExcludedProgrammes(cfg.Programmes),
		NewExcludeFile(cfg.ExcludeFile),
	}
	if !cfg.SkipClosed {
		DisableByName(steps, closedName, "skip-closed is not set")
	}
	return steps
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Filtering runs filters sequentially.
type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filtering{steps: steps, logger: logger}
}

// Run applies every enabled filter to items and returns the survivors.
// The input slice is not modified.
func (f *Filtering) Run(ctx context.Context, items []*calls.Call) ([]*calls.Call, error) {
	c := &calls.Calls{Items: append([]*calls.Call(nil), items...)}

	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := step.Apply(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if info.Dropped > 0 {
			f.logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}
	}

	return c.Items, nil
}

// Describe returns status entries for the configured filters.
func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.steps))
	for _, step := range f.steps {
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

// Adapter filters the results of another retrieval adapter.
type Adapter struct {
	next      retrieval.Adapter
	filtering *Filtering
}

func NewAdapter(next retrieval.Adapter, filtering *Filtering) *Adapter {
	return &Adapter{next: next, filtering: filtering}
}

// Search implements retrieval.Adapter.
func (a *Adapter) Search(ctx context.Context, req retrieval.Request) ([]*calls.Call, error) {
	found, err := a.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.filtering.Run(ctx, found)
}
