// Package api sends REST requests to the chat service on behalf of the authentication flow and
// the entity cache. It performs no retries; callers decide what to do with failures.
package api

import (
	"bytes"
	"context"
	_ "embed" // Used to embed version for use with user agent
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"runtime/debug"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/relaychat/chatcore/internal/log"
)

var (
	//go:embed version.txt
	libraryVersion string
)

// DefaultBaseURL is the REST root used when a Client is created with an empty base URL.
const DefaultBaseURL = "https://discordapp.com/api"

// MaxResponseLength caps the byte-length of response bodies.
const MaxResponseLength = 100000

// RequestIDHeader carries a per-request identifier that is also included in debug logs.
const RequestIDHeader = "X-Request-Id"

// ErrResponseTooLarge indicates the server returned more than MaxResponseLength bytes.
var ErrResponseTooLarge = errors.New("response exceeds maximum length")

var validate = validator.New()

// buildUserAgent returns app followed by the library token. If app is empty, it is derived from
// the main module of the running binary.
func buildUserAgent(app string) string {
	library := "chatcore/" + strings.TrimSpace(libraryVersion)
	if app == "" {
		app = binaryName()
	}
	if app == "" {
		return library
	}
	return app + " " + library
}

func binaryName() string {
	build, ok := debug.ReadBuildInfo()
	if !ok || build.Path == "" {
		return ""
	}
	name := path.Base(build.Path)
	if v := build.Main.Version; v != "" && v != "(devel)" {
		name += "/" + v
	}
	return name
}

// HTTPError is returned when the server answers with a non-2xx status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Message)
}

// Temporary returns true if the status code indicates a condition that may resolve on its own.
func (e *HTTPError) Temporary() bool {
	return e.Code >= 500 ||
		e.Code == http.StatusTooManyRequests ||
		e.Code == http.StatusRequestTimeout
}

// Unauthorized returns true if the server refused the provided credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// Client sends requests to the REST API rooted at BaseURL.
type Client struct {
	// The default UserAgent is constructed from build information, but can be overridden.
	UserAgent string
	BaseURL   string
	client    *http.Client
}

// New returns a Client. An empty baseURL selects DefaultBaseURL, an empty userAgent is generated
// from build information, and a nil httpClient selects a fresh http.Client.
func New(baseURL, userAgent string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		UserAgent: buildUserAgent(userAgent),
		BaseURL:   strings.TrimRight(baseURL, "/"),
		client:    httpClient,
	}
}

// Get sends an HTTP GET request to endpoint.
//
// The endpoint should contain only the path (e.g., "gateway"). The authorization value is sent
// as-is in the Authorization header and may be empty.
func (c *Client) Get(ctx context.Context, endpoint, authorization string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, authorization, nil)
}

// Post sends an HTTP POST request to endpoint. The payload must support JSON serialization, unless
// it is already a []byte.
func (c *Client) Post(ctx context.Context, endpoint, authorization string, payload interface{}) ([]byte, error) {
	var body []byte
	var ok bool
	if body, ok = payload.([]byte); !ok {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return c.do(ctx, http.MethodPost, endpoint, authorization, body)
}

func (c *Client) do(ctx context.Context, method, endpoint, authorization string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.BaseURL, strings.TrimLeft(endpoint, "/"))
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("error constructing request to %s: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	log.Debug("[%s] %s %s...", requestID, method, url)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", c.UserAgent)
	request.Header.Set(RequestIDHeader, requestID)
	if authorization != "" {
		request.Header.Set("Authorization", authorization)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", endpoint, err)
	}
	defer response.Body.Close()

	limited := io.LimitedReader{R: response.Body, N: MaxResponseLength + 1}
	respBody, err := io.ReadAll(&limited)
	if err != nil {
		return nil, fmt.Errorf("error reading response from %s: %w", endpoint, err)
	}
	if len(respBody) > MaxResponseLength {
		return nil, ErrResponseTooLarge
	}
	log.Debug("[%s] Server returned %d: %s", requestID, response.StatusCode, http.StatusText(response.StatusCode))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &HTTPError{Code: response.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// Decode unmarshals a JSON body into v and checks v's `validate` struct tags.
func Decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("unexpected response shape: %w", err)
	}
	return nil
}

type privateChannelRequest struct {
	RecipientID string `json:"recipient_id"`
}

type privateChannelResponse struct {
	ID string `json:"id" validate:"required"`
}

// CreatePrivateChannel asks the service to open a private channel with recipientID and returns
// the new channel's identifier.
func (c *Client) CreatePrivateChannel(ctx context.Context, authorization, recipientID string) (string, error) {
	body, err := c.Post(ctx, "users/@me/channels", authorization, &privateChannelRequest{RecipientID: recipientID})
	if err != nil {
		return "", err
	}
	var rsp privateChannelResponse
	if err := Decode(body, &rsp); err != nil {
		return "", err
	}
	return rsp.ID, nil
}
