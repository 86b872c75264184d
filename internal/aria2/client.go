package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"haul/internal/config"
)

// maxResponseBytes caps RPC response reads. tellStopped with a large window
// stays well under this.
const maxResponseBytes = 8 << 20

// HTTPDoer describes the HTTP client used for JSON-RPC calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues JSON-RPC 2.0 calls against a single aria2 endpoint. It holds
// no connection state beyond the underlying HTTP client and performs no
// retries; callers own backoff policy.
type Client struct {
	endpoint string
	secret   string
	client   HTTPDoer
}

// NewClient constructs a client for the given endpoint. The secret may be
// empty when the daemon runs without RPC authentication.
func NewClient(endpoint, secret string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		secret:   strings.TrimSpace(secret),
		client:   doer,
	}
}

// FromConfig builds a client pointed at the configured RPC endpoint.
func FromConfig(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.Aria2.RPCTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	endpoint := fmt.Sprintf("http://%s:%d/jsonrpc", cfg.Aria2.Host, cfg.Aria2.RPCPort)
	return NewClient(endpoint, cfg.Aria2.RPCSecret, &http.Client{Timeout: timeout})
}

// Endpoint returns the JSON-RPC URL this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *string         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// Call invokes an aria2 RPC method and returns the raw result payload. The
// configured secret is injected as the leading token parameter, and the
// response is matched to the request by correlation id before any result is
// surfaced.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("aria2: client not configured")
	}

	id := uuid.NewString()
	args := make([]any, 0, len(params)+1)
	if c.secret != "" {
		args = append(args, "token:"+c.secret)
	}
	args = append(args, params...)

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: args})
	if err != nil {
		return nil, fmt.Errorf("aria2: encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("aria2: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrUnauthorized, method, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("aria2: read %s response: %w", method, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("aria2: %s returned HTTP %d", method, resp.StatusCode)
		}
		return nil, fmt.Errorf("aria2: decode %s response: %w", method, err)
	}

	if decoded.Error != nil {
		// Error responses echo our id unless the server could not parse the
		// request at all; a different id means the reply is not ours.
		if decoded.ID != nil && *decoded.ID != id {
			return nil, correlationMismatch(method, decoded.ID, id)
		}
		return nil, remoteError(method, decoded.Error)
	}

	if decoded.ID == nil || *decoded.ID != id {
		return nil, correlationMismatch(method, decoded.ID, id)
	}

	return decoded.Result, nil
}

func correlationMismatch(method string, got *string, want string) error {
	gotText := "<none>"
	if got != nil {
		gotText = *got
	}
	return fmt.Errorf("aria2: %s response id %q does not match request id %q", method, gotText, want)
}

func classifyTransport(method string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, method, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, method, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, method, err)
}

func remoteError(method string, e *rpcError) error {
	if e == nil {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(e.Message), "unauthorized") {
		return fmt.Errorf("%w: %s rejected by daemon", ErrUnauthorized, method)
	}
	return &RemoteError{Method: method, Code: e.Code, Message: e.Message}
}

func decodeResult(method string, raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("aria2: decode %s result: %w", method, err)
	}
	return nil
}
