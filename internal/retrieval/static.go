package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/eu-call-finder/internal/calls"
)

// Static serves a fixed catalog. A call matches when its text contains any term.
type Static struct {
	Calls []*calls.Call
}

// Search implements Adapter.
func (s *Static) Search(ctx context.Context, req Request) ([]*calls.Call, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*calls.Call
	for _, c := range s.Calls {
		if c == nil {
			continue
		}
		text := c.Text()
		for _, term := range req.Terms {
			if strings.Contains(text, strings.ToLower(term)) {
				out = append(out, c.Clone())
				break
			}
		}
	}
	return out, nil
}

// LoadFile reads a catalog from a JSON file holding either a list of calls or
// a calls collection dump.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calls file: %w", err)
	}

	var items []*calls.Call
	if err := json.Unmarshal(data, &items); err != nil {
		var collection calls.Calls
		if err2 := json.Unmarshal(data, &collection); err2 != nil {
			return nil, fmt.Errorf("decode calls file %s: %w", path, err)
		}
		items = collection.Items
	}

	for _, c := range items {
		if c != nil {
			c.Normalize()
		}
	}
	return &Static{Calls: items}, nil
}
