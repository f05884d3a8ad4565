package calls

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"
)

const (
	FieldID        = "id"
	FieldProgramme = "programme"
	FieldStatus    = "status"
)

// Excluded is the content of an exclude file: calls the user has already reviewed.
type Excluded struct {
	Items []*ExcludedCall
}

type ExcludedCall struct {
	ID         string
	Title      string
	URL        string
	ExcludedAt time.Time
}

// ToExcluded converts the collection into exclude file entries.
func (c *Calls) ToExcluded(now time.Time) *Excluded {
	excluded := &Excluded{}
	for _, call := range c.Items {
		excluded.Items = append(excluded.Items, &ExcludedCall{
			ID:         call.ID,
			Title:      call.Title,
			URL:        call.URL,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

// LoadExcluded reads an exclude file. A missing or empty file is an empty list.
func LoadExcluded(path string) (*Excluded, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Excluded{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Excluded{}, nil
	}

	var excluded Excluded
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds the entries of s that are not listed yet.
func (e *Excluded) Append(s *Excluded) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *Excluded) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *Excluded) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// StringField returns the value of a named field used by Exclude.
func (c *Call) StringField(name string) string {
	switch name {
	case FieldID:
		return c.ID
	case FieldProgramme:
		return c.Programme
	case FieldStatus:
		return c.Status
	default:
		return ""
	}
}

// Exclude drops every call whose field matches one of targets, ignoring case,
// and returns the ids of the dropped calls. Order is preserved.
func (c *Calls) Exclude(name string, targets []string) []string {
	if c == nil || len(targets) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}

	var excluded []string
	kept := c.Items[:0]
	for _, call := range c.Items {
		if _, ok := set[strings.ToLower(strings.TrimSpace(call.StringField(name)))]; ok {
			excluded = append(excluded, call.ID)
			continue
		}
		kept = append(kept, call)
	}
	clear(c.Items[len(kept):])
	c.Items = kept
	return excluded
}
