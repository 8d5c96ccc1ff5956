package caseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	domerrors "github.com/imapex/tacbot-go/internal/errors"
	"golang.org/x/oauth2/clientcredentials"
)

const apiName = "caseapi"

// Recorder records upstream request metrics. Satisfied by *metrics.Metrics.
type Recorder interface {
	RecordUpstream(api, status string, duration float64)
}

// Config holds the Case API client settings.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Recorder     Recorder // optional
}

// Client fetches case details from the TAC Case API. The bearer token
// comes from an OAuth2 client-credentials exchange; the token source
// reuses unexpired tokens across calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	recorder   Recorder
}

// NewClient creates a new Case API client.
func NewClient(cfg Config) *Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	// The oauth2 client injects the bearer token on each request and
	// performs the credentials exchange when no valid token is held.
	httpClient := cc.Client(context.Background())
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		recorder:   cfg.Recorder,
	}
}

// apiError is the error payload shape the Case API returns on failures.
type apiError struct {
	ErrorDescription string `json:"error_description"`
	Error            struct {
		Description string `json:"DESCRIPTION"`
	} `json:"ERROR"`
}

// Fetch retrieves the details for one case number.
// Outcomes: a populated CaseDetail, errors.ErrCaseNotFound for zero
// matches, or *errors.UpstreamError for non-200 responses.
func (c *Client) Fetch(ctx context.Context, caseNumber string) (*CaseDetail, error) {
	start := time.Now()
	detail, err := c.fetch(ctx, caseNumber)

	if c.recorder != nil {
		status := "success"
		switch {
		case errors.Is(err, domerrors.ErrCaseNotFound):
			status = "not_found"
		case err != nil:
			status = "error"
		}
		c.recorder.RecordUpstream(apiName, status, time.Since(start).Seconds())
	}
	return detail, err
}

func (c *Client) fetch(ctx context.Context, caseNumber string) (*CaseDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/cases/details/case_ids/" + url.PathEscape(caseNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domerrors.UpstreamError{API: apiName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domerrors.UpstreamError{API: apiName, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domerrors.NewUpstreamError(apiName, resp.StatusCode, errorDescription(body))
	}

	return parseCaseDetail(caseNumber, body)
}

// errorDescription extracts the upstream-provided description from an
// error payload, falling back to the raw body.
func errorDescription(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil {
		if ae.ErrorDescription != "" {
			return ae.ErrorDescription
		}
		if ae.Error.Description != "" {
			return ae.Error.Description
		}
	}
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
