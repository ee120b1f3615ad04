package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/docscan/internal/document"
)

// ScansPath is where a docscan server exposes its scan store
const ScansPath = "/api/remote/scans"

// HTTPStore talks to the scan store of another docscan server
type HTTPStore struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewHTTPStore creates a client for the server at baseURL. Credentials are
// sent with basic auth when username is set.
func NewHTTPStore(baseURL, username, password string) (*HTTPStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remote URL is required")
	}
	return &HTTPStore{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (h *HTTPStore) do(ctx context.Context, method string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+ScansPath, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.username != "" {
		req.SetBasicAuth(h.username, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
		default:
			return fmt.Errorf("%w: status %d: %s", ErrRemoteOperationFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrRemoteOperationFailed, err)
	}
	return nil
}

// UploadScan implements ScanStore
func (h *HTTPStore) UploadScan(ctx context.Context, doc *document.Document) error {
	data, err := json.Marshal(NewRecord(doc))
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return h.do(ctx, http.MethodPost, bytes.NewReader(data), nil)
}

// FetchScans implements ScanStore
func (h *HTTPStore) FetchScans(ctx context.Context) ([]*document.Document, error) {
	var records []Record
	if err := h.do(ctx, http.MethodGet, nil, &records); err != nil {
		return nil, err
	}
	return documents(records), nil
}
