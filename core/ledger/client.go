package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Transaction is a transfer as reported by the ledger gateway.
type Transaction struct {
	// Ref is the ledger transaction reference.
	Ref string `json:"ref"`
	// Recipient is the ledger account the transfer pays to.
	Recipient string `json:"recipient"`
	// Amount is the transferred quantity in base units.
	Amount int64 `json:"amount"`
	// Memo carries the source reference the submitter attached.
	Memo string `json:"memo"`
	// Confirmed indicates the transfer is final on the ledger.
	Confirmed bool `json:"confirmed"`
	// LedgerTime is when the ledger recorded the transfer.
	LedgerTime time.Time `json:"ledger_time"`
}

// Client defines the interface for ledger gateway operations.
// All methods take a context and are bounded by the configured timeout;
// callers must treat an unavailable gateway as "outcome unknown", never
// as "definitely failed".
type Client interface {
	// Submit broadcasts a transfer and returns the ledger transaction reference.
	Submit(ctx context.Context, recipient string, amount int64, memo string) (string, error)
	// GetByReference fetches a transaction by its reference.
	// Returns ErrNotFound if the ledger has no such transaction.
	GetByReference(ctx context.Context, ref string) (*Transaction, error)
	// FindByIdentity lists transfers matching (recipient, amount, memo)
	// recorded within the lookback window. The result may be empty or
	// contain more than one transfer.
	FindByIdentity(ctx context.Context, recipient string, amount int64, memo string, window time.Duration) ([]Transaction, error)
}

// NewClient creates a ledger gateway client based on the configuration.
func NewClient(cfg Config) Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	// Strict transport timeouts so a hung gateway cannot stall a cycle
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	return &httpClient{
		base:  strings.TrimSuffix(cfg.Endpoint, "/"),
		key:   cfg.ApiKey,
		asset: cfg.Asset,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeoutDuration,
		},
	}
}

type httpClient struct {
	base  string
	key   string
	asset string
	http  *http.Client
}

type submitRequest struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Asset     string `json:"asset"`
	Memo      string `json:"memo"`
}

type submitResponse struct {
	Ref string `json:"ref"`
}

type listResponse struct {
	Transfers []Transaction `json:"transfers"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *httpClient) Submit(ctx context.Context, recipient string, amount int64, memo string) (string, error) {
	body, err := json.Marshal(submitRequest{
		Recipient: recipient,
		Amount:    amount,
		Asset:     c.asset,
		Memo:      memo,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure or timeout: the transfer may or may not have
		// been broadcast. Classified as unavailable, never as rejected.
		return "", &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			// The ledger accepted the transfer but we lost the reference.
			// Reconciliation recovers it via the identity lookback.
			return "", &Error{Kind: KindUnavailable, Message: "failed to decode submit response: " + err.Error()}
		}
		return out.Ref, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &Error{Kind: KindRejected, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	default:
		return "", &Error{Kind: KindUnavailable, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
}

func (c *httpClient) GetByReference(ctx context.Context, ref string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/transfers/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build get request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var tx Transaction
		if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
			return nil, &Error{Kind: KindUnavailable, Message: "failed to decode transaction: " + err.Error()}
		}
		return &tx, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &Error{Kind: KindUnavailable, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
}

func (c *httpClient) FindByIdentity(ctx context.Context, recipient string, amount int64, memo string, window time.Duration) ([]Transaction, error) {
	q := url.Values{}
	q.Set("recipient", recipient)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("memo", memo)
	q.Set("asset", c.asset)
	q.Set("since", time.Now().Add(-window).UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/transfers?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindUnavailable, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &Error{Kind: KindUnavailable, Message: "failed to decode transfer list: " + err.Error()}
	}
	return out.Transfers, nil
}

func (c *httpClient) authorize(req *http.Request) {
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
}

// readErrorMessage extracts a message from a gateway error body, falling back
// to the raw body when it is not the usual JSON shape.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no error detail"
	}
	var out errorResponse
	if err := json.Unmarshal(data, &out); err == nil && out.Message != "" {
		return out.Message
	}
	return string(data)
}
