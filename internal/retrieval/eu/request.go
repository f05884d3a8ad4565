package eu

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/eu-call-finder/internal/calls"
	"github.com/spigell/eu-call-finder/internal/retrieval"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// displayFields are the metadata keys requested for every result.
var displayFields = []string{
	"identifier",
	"title",
	"callTitle",
	"descriptionByte",
	"deadlineDate",
	"keywords",
	"tags",
	"status",
	"type",
	"url",
}

type searchResponse struct {
	TotalResults int      `json:"totalResults"`
	PageNumber   int      `json:"pageNumber"`
	Results      []result `json:"results"`
}

type result struct {
	Reference string         `json:"reference"`
	URL       string         `json:"url"`
	Metadata  map[string]any `json:"metadata"`
}

func (c *Client) searchTerm(ctx context.Context, term string, req retrieval.Request) ([]*calls.Call, error) {
	body, formType, err := buildForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, body)
	if err != nil {
		return nil, err
	}
	httpReq = c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", formType)

	q := url.Values{}
	q.Set("apiKey", apiKey)
	q.Set("text", term)
	q.Set("pageSize", strconv.Itoa(c.PageSize))
	q.Set("pageNumber", "1")
	httpReq.URL.RawQuery = q.Encode()

	resp, err := c.request(httpReq)
	if err != nil {
		return nil, err
	}

	response, err := parseResponse(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("got response from portal", zap.Int("total", response.TotalResults), zap.Int("results", len(response.Results)))

	out := make([]*calls.Call, 0, len(response.Results))
	for _, r := range response.Results {
		if call := toCall(r); call != nil {
			out = append(out, call)
		}
	}
	return out, nil
}

// buildForm encodes the filter document and display fields as JSON blob parts.
func buildForm(req retrieval.Request) (*bytes.Buffer, string, error) {
	query, err := json.Marshal(filterQuery(req))
	if err != nil {
		return nil, "", err
	}
	fields, err := json.Marshal(displayFields)
	if err != nil {
		return nil, "", err
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for _, part := range []struct {
		name string
		data []byte
	}{
		{name: "query", data: query},
		{name: "displayFields", data: fields},
	} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="blob"`, part.name))
		h.Set("Content-Type", contentType)
		field, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := field.Write(part.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

func filterQuery(req retrieval.Request) map[string]any {
	var must []any
	if len(req.Filter.Types) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"type": req.Filter.Types}})
	}
	if len(req.Filter.Status) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"status": req.Filter.Status}})
	}
	if req.Filter.Period != "" {
		must = append(must, map[string]any{"term": map[string]any{"programmePeriod": req.Filter.Period}})
	}
	return map[string]any{"bool": map[string]any{"must": must}}
}

func parseResponse(resp *http.Response) (*searchResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	var raw map[string]any
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode portal response: %w", err)
	}

	var response searchResponse
	cfg := &mapstructure.DecoderConfig{
		Result:           &response,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode portal results: %w", err)
	}
	return &response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
