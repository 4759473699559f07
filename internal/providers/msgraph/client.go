// Package msgraph implements the sync provider for Microsoft Graph drives
// (SharePoint sites and OneDrive), built on the Graph delta protocol with
// checkpointed site/drive work queues.
package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// DefaultBaseURL is the Graph API v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Sentinel errors for Graph status classification.
var (
	ErrUnauthorized = errors.New("msgraph: unauthorized")
	ErrForbidden    = errors.New("msgraph: forbidden")
	ErrNotFound     = errors.New("msgraph: not found")
	ErrGone         = errors.New("msgraph: delta token expired")
)

// apiError wraps a Graph failure with its status and message body.
type apiError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *apiError) Error() string {
	return fmt.Sprintf("msgraph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *apiError) Unwrap() error { return e.Err }

// client is a thin HTTP client for the Graph API. Throttling is not retried
// here: a 429 surfaces as a typed rate-limit error carrying the Retry-After
// delay so the caller owns backoff.
type client struct {
	baseURL    string
	httpClient *http.Client
	token      oauth2.TokenSource
}

func newClient(baseURL string, httpClient *http.Client, token oauth2.TokenSource) *client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &client{baseURL: baseURL, httpClient: httpClient, token: token}
}

// get executes a GET. An absolute url (nextLink/deltaLink) is used as-is;
// anything else is treated as a path under the base URL.
func (c *client) get(ctx context.Context, url string) (*http.Response, error) {
	if len(url) == 0 || url[0] == '/' {
		url = c.baseURL + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("msgraph: create request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, &domain.AuthenticationError{Provider: ProviderName, Err: err}
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("msgraph: %s: %w", url, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, c.classify(resp, string(body))
}

// getJSON executes a GET and decodes the JSON response into out.
func (c *client) getJSON(ctx context.Context, url string, out any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("msgraph: decode response: %w", err)
	}
	return nil
}

// classify maps a non-2xx response to the domain error taxonomy.
func (c *client) classify(resp *http.Response, body string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &domain.AuthenticationError{
			Provider: ProviderName,
			Err:      &apiError{StatusCode: resp.StatusCode, Message: body, Err: ErrUnauthorized},
		}
	case http.StatusTooManyRequests:
		return &domain.RateLimitError{
			Provider:   ProviderName,
			RetryAfter: retryAfter(resp),
			Err:        &apiError{StatusCode: resp.StatusCode, Message: body},
		}
	case http.StatusForbidden:
		return &apiError{StatusCode: resp.StatusCode, Message: body, Err: ErrForbidden}
	case http.StatusNotFound:
		return &apiError{StatusCode: resp.StatusCode, Message: body, Err: ErrNotFound}
	case http.StatusGone:
		return &apiError{StatusCode: resp.StatusCode, Message: body, Err: ErrGone}
	default:
		return &apiError{StatusCode: resp.StatusCode, Message: body}
	}
}

// retryAfter parses the Retry-After header, accepting delta-seconds or an
// HTTP-date, defaulting to a minute.
func retryAfter(resp *http.Response) time.Duration {
	val := resp.Header.Get("Retry-After")
	if val == "" {
		return time.Minute
	}
	if n, err := strconv.Atoi(val); err == nil {
		if n > 0 {
			return time.Duration(n) * time.Second
		}
		return time.Minute
	}
	if at, err := http.ParseTime(val); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return time.Minute
}
