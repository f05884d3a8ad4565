package filtering

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/eu-call-finder/internal/calls"
)

const (
	closedName     = "closed"
	programmesName = "programmes"
	excludeName    = "exclude_file"
	statusClosed   = "closed"
)

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type closedFilter struct {
	toggle
}

// NewClosed creates a filter that removes calls the portal reports as closed.
func NewClosed() Filter {
	return &closedFilter{}
}

func (f *closedFilter) Name() string { return closedName }

func (f *closedFilter) Apply(_ context.Context, c *calls.Calls) (Step, error) {
	initial := c.Len()
	excluded := c.Exclude(calls.FieldStatus, []string{statusClosed})
	return Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *closedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type programmesFilter struct {
	toggle
	programmes []string
}

// NewExcludedProgrammes creates a filter that removes calls of the given programmes.
func NewExcludedProgrammes(programmes []string) Filter {
	f := &programmesFilter{programmes: programmes}
	if len(programmes) == 0 {
		f.Disable("no programmes to exclude")
	}
	return f
}

func (f *programmesFilter) Name() string { return programmesName }

func (f *programmesFilter) Apply(_ context.Context, c *calls.Calls) (Step, error) {
	initial := c.Len()
	excluded := c.Exclude(calls.FieldProgramme, f.programmes)
	return Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *programmesFilter) Status() Status {
	details := map[string]string{}
	if len(f.programmes) > 0 {
		details["programmes"] = strings.Join(f.programmes, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes calls listed in an exclude file.
// The file is read on every run so entries appended meanwhile apply.
func NewExcludeFile(path string) Filter {
	f := &excludeFileFilter{path: strings.TrimSpace(path)}
	if f.path == "" {
		f.Disable("exclude file is not configured")
	}
	return f
}

func (f *excludeFileFilter) Name() string { return excludeName }

func (f *excludeFileFilter) Apply(_ context.Context, c *calls.Calls) (Step, error) {
	initial := c.Len()

	excluded, err := calls.LoadExcluded(f.path)
	if err != nil {
		return Step{}, fmt.Errorf("getting excluded calls from file: %w", err)
	}

	removed := c.Exclude(calls.FieldID, excluded.IDs())
	return Step{Initial: initial, Dropped: len(removed), Left: c.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
