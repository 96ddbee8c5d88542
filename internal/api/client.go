package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TokenSource provides a bearer token for outgoing requests.
// An empty string means no token is available.
type TokenSource func() string

// Client talks to the remote panny service.
type Client struct {
	httpClient *http.Client
	apiHost    string
	authHost   string
	tokens     TokenSource
}

// New instantiates and returns a new client.
func New(apiHost, authHost string, timeout time.Duration) *Client {
	if authHost == "" {
		authHost = apiHost
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiHost:    strings.TrimSuffix(apiHost, "/"),
		authHost:   strings.TrimSuffix(authHost, "/"),
	}
}

// SetTokenSource installs the bearer token hook.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// errorBody is the shape servers commonly use for structured errors.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Hint    string `json:"hint"`
}

func (b *errorBody) text() string {
	switch {
	case b.Error != "":
		return b.Error
	case b.Message != "":
		return b.Message
	default:
		return b.Detail
	}
}

// do issues a request and decodes the response into out (unless out is nil).
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshaling request body")
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	// Avoid overwriting an existing Authorization header.
	if c.tokens != nil && request.Header.Get("Authorization") == "" {
		if token := c.tokens(); token != "" {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer response.Body.Close()

	responseBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		details := &errorBody{}
		_ = json.Unmarshal(responseBytes, details)
		switch {
		case response.StatusCode == http.StatusUnauthorized:
			return ErrUnauthenticated
		case response.StatusCode == http.StatusTooManyRequests || details.Error == "rate_limited":
			return &RateLimitError{Message: details.text(), Hint: details.Hint}
		default:
			return &StatusError{Code: response.StatusCode, Message: details.text()}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBytes, out); err != nil {
		return errors.Wrap(err, "unmarshaling response body")
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	return c.do(ctx, http.MethodPost, url, body, out)
}
