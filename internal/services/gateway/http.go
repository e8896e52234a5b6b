package gateway

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"ocru/internal/metrics"
)

const maxResponseBytes = 1 << 20

// NewHTTPClient returns the client shared by the adapters. Every provider
// call is bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// postJSON sends body to url and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, m metrics.MetricsCollector, provider, operation, url string, headers map[string]string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() { m.RecordProviderCall(provider, operation, time.Since(start), err) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProviderRequestFailed, provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", ErrProviderRequestFailed, provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d", ErrProviderRequestFailed, provider, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %v", ErrProviderRequestFailed, provider, err)
	}
	return nil
}

// randomInt returns a uniform value in [0, n).
func randomInt(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

const memoAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		n, err := randomInt(int64(len(memoAlphabet)))
		if err != nil {
			return "", err
		}
		b[i] = memoAlphabet[n]
	}
	return string(b), nil
}

// decodeJSONMap decodes a webhook body keeping numbers exact.
func decodeJSONMap(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
