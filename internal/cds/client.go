package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Common errors.
var (
	ErrUnauthorized = errors.New("cds: unauthorized (check your API key)")
	ErrForbidden    = errors.New("cds: access forbidden (dataset licence not accepted?)")
	ErrNotFound     = errors.New("cds: resource not found")
	ErrServerError  = errors.New("cds: server error")
	ErrJobFailed    = errors.New("cds: retrieval job failed")
	ErrNoAsset      = errors.New("cds: job result has no downloadable asset")
)

// DefaultBaseURL is the production CDS API endpoint.
const DefaultBaseURL = "https://cds.climate.copernicus.eu/api"

// Options configures the CDS client.
type Options struct {
	// BaseURL is the API root. Default: DefaultBaseURL.
	BaseURL string

	// Key is the personal access token sent as PRIVATE-TOKEN.
	Key string

	// Timeout for individual requests (submit, poll, results). The
	// result download itself is not bounded by this timeout.
	// Default: 60s
	Timeout time.Duration

	// PollInterval is the wait between job status polls.
	// Default: 5s
	PollInterval time.Duration

	// UserAgent identifies the client. Default: "era5dl"
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		BaseURL:      DefaultBaseURL,
		Timeout:      60 * time.Second,
		PollInterval: 5 * time.Second,
		UserAgent:    "era5dl",
	}
}

// Request describes one retrieval: a single year of a dataset filtered
// by product type, variables and calendar coverage.
type Request struct {
	Dataset     string
	ProductType string
	Variables   []string
	Year        int
	Months      []string
	Days        []string
	Hours       []string
	Format      string
}

// inputs builds the JSON request body the CDS retrieve API expects.
func (r Request) inputs() map[string]any {
	return map[string]any{
		"product_type":    []string{r.ProductType},
		"variable":        r.Variables,
		"year":            []string{strconv.Itoa(r.Year)},
		"month":           r.Months,
		"day":             r.Days,
		"time":            r.Hours,
		"data_format":     r.Format,
		"download_format": "unarchived",
	}
}

// Client talks to the CDS retrieval API.
//
// Each call is single-shot: there is no internal retry loop. Retrying is
// owned entirely by the caller so that attempt accounting stays in one
// place.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new CDS client with the given options.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "era5dl"
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	return &Client{
		client: &http.Client{},
		opts:   opts,
	}
}

// Retrieve submits req, waits for the job to finish and streams the
// resulting file to w. Returns the number of bytes written.
func (c *Client) Retrieve(ctx context.Context, req Request, w io.Writer) (int64, error) {
	jobID, err := c.submit(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("submit %s: %w", req.Dataset, err)
	}

	if err := c.wait(ctx, jobID); err != nil {
		return 0, fmt.Errorf("job %s: %w", jobID, err)
	}

	href, err := c.resultHref(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("job %s results: %w", jobID, err)
	}

	n, err := c.download(ctx, href, w)
	if err != nil {
		return n, fmt.Errorf("job %s download: %w", jobID, err)
	}
	return n, nil
}

type statusResponse struct {
	JobID   string `json:"jobID"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// submit posts the retrieval request and returns the job ID.
func (c *Client) submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(map[string]any{"inputs": req.inputs()})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.opts.BaseURL, req.Dataset)
	httpReq, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var status statusResponse
	if err := c.doJSON(httpReq, &status); err != nil {
		return "", err
	}
	if status.JobID == "" {
		return "", fmt.Errorf("cds: submission returned no job ID")
	}
	return status.JobID, nil
}

// wait polls the job status until it is successful, failed or the
// context is cancelled.
func (c *Client) wait(ctx context.Context, jobID string) error {
	url := fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.opts.BaseURL, jobID)

	for {
		req, err := c.newRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		var status statusResponse
		if err := c.doJSON(req, &status); err != nil {
			return err
		}

		switch status.Status {
		case "successful":
			return nil
		case "failed", "dismissed":
			if status.Message != "" {
				return fmt.Errorf("%w: %s", ErrJobFailed, status.Message)
			}
			return ErrJobFailed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}
}

type resultsResponse struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
		} `json:"value"`
	} `json:"asset"`
}

// resultHref fetches the job results and returns the asset URL.
func (c *Client) resultHref(ctx context.Context, jobID string) (string, error) {
	url := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.opts.BaseURL, jobID)
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	var results resultsResponse
	if err := c.doJSON(req, &results); err != nil {
		return "", err
	}
	if results.Asset.Value.Href == "" {
		return "", ErrNoAsset
	}
	return results.Asset.Value.Href, nil
}

// download streams the asset at href to w. href may be relative to the
// API host.
func (c *Client) download(ctx context.Context, href string, w io.Writer) (int64, error) {
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return 0, fmt.Errorf("parse base URL: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return 0, fmt.Errorf("parse asset URL: %w", err)
	}
	href = base.ResolveReference(ref).String()

	req, err := c.newRequest(ctx, http.MethodGet, href, nil)
	if err != nil {
		return 0, err
	}

	// No client timeout here: large files legitimately take longer than
	// the request timeout. Cancellation comes from ctx.
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return 0, err
	}

	return io.Copy(w, resp.Body)
}

// newRequest builds a request with auth and user agent headers applied.
func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.Key != "" {
		req.Header.Set("PRIVATE-TOKEN", c.opts.Key)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	return req, nil
}

// doJSON executes req with the request timeout applied and decodes the
// JSON response into out.
func (c *Client) doJSON(req *http.Request, out any) error {
	ctx, cancel := context.WithTimeout(req.Context(), c.opts.Timeout)
	defer cancel()

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("cds: unexpected status code: %d", code)
	}
}
