package eu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spigell/eu-call-finder/internal/calls"
)

// Portal status codes.
const (
	StatusForthcoming = "31094501"
	StatusOpen        = "31094502"
	StatusClosed      = "31094503"
)

var statusNames = map[string]string{
	StatusForthcoming: "forthcoming",
	StatusOpen:        "open",
	StatusClosed:      "closed",
}

var typeNames = map[string]string{
	"0": "tender",
	"1": "topic",
	"2": "call for proposals",
	"8": "cascade funding",
}

// programmes maps identifier prefixes to programme names. Longer prefixes first.
var programmes = []struct {
	prefix string
	name   string
}{
	{prefix: "HORIZON-EIC", name: "EIC Accelerator"},
	{prefix: "HORIZON-", name: "Horizon Europe"},
	{prefix: "DIGITAL-", name: "Digital Europe"},
	{prefix: "LIFE-", name: "LIFE Programme"},
	{prefix: "EU4H-", name: "EU4Health"},
	{prefix: "CEF-", name: "Connecting Europe Facility"},
	{prefix: "ERASMUS-", name: "Erasmus+"},
	{prefix: "INNOVFUND-", name: "Innovation Fund"},
	{prefix: "SMP-", name: "Single Market Programme"},
	{prefix: "CREA-", name: "Creative Europe"},
}

var deadlineLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

func toCall(r result) *calls.Call {
	id := first(r.Metadata, "identifier")
	if id == "" {
		return nil
	}

	call := &calls.Call{
		ID:          id,
		Title:       first(r.Metadata, "title"),
		Programme:   programmeOf(id),
		Keywords:    values(r.Metadata, "keywords"),
		URL:         TopicURL(id),
		ContentType: typeNames[first(r.Metadata, "type")],
		Status:      statusNames[first(r.Metadata, "status")],
	}
	if call.Title == "" {
		call.Title = first(r.Metadata, "callTitle")
	}
	for _, tag := range values(r.Metadata, "tags") {
		call.RequiredDomains = append(call.RequiredDomains, strings.ToLower(tag))
	}

	call.Description = htmlToText(first(r.Metadata, "descriptionByte"))
	call.BudgetText = sentenceWith(call.Description, "")
	call.ContributionText = sentenceWith(call.Description, "contribution")

	if raw := first(r.Metadata, "deadlineDate"); raw != "" {
		call.DeadlineText = raw
		for _, layout := range deadlineLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				call.Deadline = t.UTC()
				break
			}
		}
	}

	call.Normalize()
	return call
}

func programmeOf(id string) string {
	upper := strings.ToUpper(id)
	for _, p := range programmes {
		if strings.HasPrefix(upper, p.prefix) {
			return p.name
		}
	}
	return ""
}

var blockBreaks = strings.NewReplacer(
	"</p>", "</p> ",
	"</li>", "</li> ",
	"</div>", "</div> ",
	"<br>", "<br> ",
	"<br/>", "<br/> ",
	"<br />", "<br /> ",
)

var euroRe = regexp.MustCompile(`(?i)\bEUR\b|€`)

// htmlToText drops markup and collapses whitespace.
func htmlToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blockBreaks.Replace(html)))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// sentenceWith returns the first sentence mentioning EUR and, when set, word.
func sentenceWith(text, word string) string {
	for _, s := range strings.SplitAfter(text, ". ") {
		if !euroRe.MatchString(s) {
			continue
		}
		if word != "" && !strings.Contains(strings.ToLower(s), word) {
			continue
		}
		return strings.TrimSpace(s)
	}
	return ""
}

func first(meta map[string]any, key string) string {
	if v := values(meta, key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// values reads a metadata entry. The portal sends arrays but single values occur.
func values(meta map[string]any, key string) []string {
	raw, ok := meta[key]
	if !ok || raw == nil {
		return nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	default:
		items = []any{v}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch v := item.(type) {
		case nil:
			continue
		case string:
			s = strings.TrimSpace(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			s = strings.TrimSpace(fmt.Sprint(v))
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
