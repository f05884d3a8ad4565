package eu

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/retrieval"
	"github.com/spigell/eu-call-finder/internal/utils"
	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.tech.ec.europa.eu/search-api/prod/rest/search"
	apiKey    = "SEDIA"
	userAgent = "spigell/eu-call-finder"
	topicURL  = "https://ec.europa.eu/info/funding-tenders/opportunities/portal/screen/opportunities/topic-details/%s"
	// Max value the portal serves without paging.
	pageSize = 50
)

// Config tunes the portal client.
type Config struct {
	URL      string        `mapstructure:"url"`
	PageSize int           `mapstructure:"page-size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Pause between two term queries.
	Pause time.Duration `mapstructure:"pause"`
}

// Client queries the EU Funding & Tenders portal search API.
type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	PageSize   int
	Pause      time.Duration
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = apiURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = pageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}

	return &Client{
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		UserAgent: userAgent,
		APIURL:    cfg.URL,
		PageSize:  cfg.PageSize,
		Pause:     cfg.Pause,
	}
}

// Search implements retrieval.Adapter. Every term is one request; results are
// merged by identifier. A failing term is skipped unless all terms fail.
func (c *Client) Search(ctx context.Context, req retrieval.Request) ([]*calls.Call, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		collection = &calls.Calls{}
		failed     int
		lastErr    error
	)
	for i, term := range req.Terms {
		if i > 0 {
			if err := utils.WaitFor(ctx, c.Pause); err != nil {
				return nil, err
			}
		}

		found, err := c.searchTerm(ctx, term, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			lastErr = err
			c.logger.Warn("portal search failed for term", zap.String("term", term), zap.Error(err))
			continue
		}

		var added int
		collection, added = collection.Merge(found)
		c.logger.Debug("portal search done",
			zap.String("term", term),
			zap.Int("results", len(found)),
			zap.Int("new", added),
		)
	}

	if failed == len(req.Terms) {
		return nil, fmt.Errorf("all %d portal searches failed: %w", failed, lastErr)
	}
	return collection.Items, nil
}

// TopicURL returns the portal page of a topic.
func TopicURL(id string) string {
	return fmt.Sprintf(topicURL, strings.ToLower(strings.TrimSpace(id)))
}
