package calls

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestExcludeKeepsOrder(t *testing.T) {
	c := &Calls{Items: []*Call{
		{ID: "A", Programme: "Horizon Europe"},
		{ID: "B", Programme: "LIFE"},
		{ID: "C", Programme: "horizon europe"},
		{ID: "D", Programme: "Digital Europe"},
	}}

	excluded := c.Exclude(FieldProgramme, []string{" Horizon Europe "})
	if !slices.Equal(excluded, []string{"A", "C"}) {
		t.Fatalf("unexpected excluded ids %v", excluded)
	}
	if !slices.Equal(c.IDs(), []string{"B", "D"}) {
		t.Fatalf("unexpected remaining ids %v", c.IDs())
	}

	if got := c.Exclude(FieldID, nil); got != nil || c.Len() != 2 {
		t.Fatalf("empty targets must not exclude anything, got %v", got)
	}
}

func TestExcludedFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	missing, err := LoadExcluded(path)
	if err != nil || len(missing.Items) != 0 {
		t.Fatalf("missing file must be empty, got %v %v", missing, err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	found := &Calls{Items: []*Call{{ID: "A", Title: "Grids"}, {ID: "B"}}}
	excluded := &Excluded{}
	excluded.Append(found.ToExcluded(now))
	excluded.Append(found.ToExcluded(now))
	if !slices.Equal(excluded.IDs(), []string{"A", "B"}) {
		t.Fatalf("append must skip known ids, got %v", excluded.IDs())
	}
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	short := &Excluded{Items: excluded.Items[:1]}
	if err := short.ToFile(path); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	loaded, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(loaded.IDs(), []string{"A"}) || !loaded.Items[0].ExcludedAt.Equal(now) {
		t.Fatalf("unexpected content %+v", loaded.Items)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if got, err := LoadExcluded(empty); err != nil || len(got.Items) != 0 {
		t.Fatalf("empty file must be an empty list, got %v %v", got, err)
	}
}
