package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lotero/internal/pkg/mail"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL  = "https://gmail.googleapis.com/gmail/v1/users/me"
	DefaultQuery    = `from:info@tulotero.es subject:"Premio en el boleto"`
	DefaultMaxPages = 20
	pageSize        = 100
)

// ErrTooManyPages means the listing still had pages left after MaxPages.
var ErrTooManyPages = errors.New("gmail search exceeded page limit")

type GmailClient struct {
	// MaxPages bounds one Search; hitting it with pages left is an error.
	MaxPages int

	baseURL     string
	query       string
	credentials CredentialProvider
	client      *http.Client
}

type listResp struct {
	Messages           []mail.MessageRef `json:"messages"`
	NextPageToken      string            `json:"nextPageToken"`
	ResultSizeEstimate int               `json:"resultSizeEstimate"`
}

type errorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// APIError is a non-200 answer from the Gmail API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmail API error %d: %s", e.StatusCode, e.Message)
}

func New(baseURL, query string, credentials CredentialProvider) *GmailClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if query == "" {
		query = DefaultQuery
	}
	return &GmailClient{
		MaxPages:    DefaultMaxPages,
		baseURL:     baseURL,
		query:       query,
		credentials: credentials,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// UseDefaultClient routes requests through http.DefaultClient (tests swap its transport).
func (c *GmailClient) UseDefaultClient() {
	c.client = http.DefaultClient
}

// SearchQuery builds the q parameter; Gmail's after: has day granularity.
func (c *GmailClient) SearchQuery(after *time.Time) string {
	if after == nil || after.IsZero() {
		return c.query
	}
	return fmt.Sprintf("%s after:%s", c.query, after.Format("2006/01/02"))
}

// Search lists prize notifications received after the given time, following
// nextPageToken. A listing longer than MaxPages fails with ErrTooManyPages
// rather than returning a partial result.
func (c *GmailClient) Search(ctx context.Context, after *time.Time) ([]mail.MessageRef, error) {
	q := c.SearchQuery(after)
	log.Printf("Searching messages: %s", q)

	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var refs []mail.MessageRef
	pageToken := ""
	for page := 0; ; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("%w: %d pages of %d, %d messages so far", ErrTooManyPages, maxPages, pageSize, len(refs))
		}

		params := url.Values{}
		params.Set("q", q)
		params.Set("maxResults", fmt.Sprint(pageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var out listResp
		if err := c.get(ctx, "/messages", params, &out); err != nil {
			return nil, err
		}
		refs = append(refs, out.Messages...)

		if out.NextPageToken == "" {
			return refs, nil
		}
		pageToken = out.NextPageToken
	}
}

// FetchFull returns the full message resource including the MIME tree.
func (c *GmailClient) FetchFull(ctx context.Context, id string) (*mail.RawMessage, error) {
	params := url.Values{}
	params.Set("format", "full")

	var msg mail.RawMessage
	if err := c.get(ctx, "/messages/"+url.PathEscape(id), params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *GmailClient) get(ctx context.Context, path string, params url.Values, out any) error {
	token, err := c.credentials.BearerToken(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gmail request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody errorResp
		if json.Unmarshal(body, &errBody) == nil && errBody.Error.Message != "" {
			apiErr.Message = errBody.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode gmail response: %w", err)
	}
	return nil
}
