package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Relay dispatches decryption requests to an external oracle over HTTP.
// The oracle answers the dispatch with the request id it assigned and
// later invokes the gateway callback route out of band.
type Relay struct {
	endpoint string
	client   *http.Client
}

// NewRelay builds a relay to the oracle at endpoint.
func NewRelay(endpoint string) *Relay {
	return &Relay{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type relayRequest struct {
	Handles  []string `json:"handles"` // base64
	Callback string   `json:"callback"`
}

type relayResponse struct {
	RequestID uint64 `json:"request_id"`
}

// RequestDecryption implements Dispatcher.
func (r *Relay) RequestDecryption(ctx context.Context, handles []contracts.Handle, callback string) (uint64, error) {
	body := relayRequest{Callback: callback}
	for _, h := range handles {
		body.Handles = append(body.Handles, base64.StdEncoding.EncodeToString(h))
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode dispatch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(buf))
	if err != nil {
		return 0, fmt.Errorf("build dispatch: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("dispatch to oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return 0, fmt.Errorf("oracle dispatch returned %d", resp.StatusCode)
	}

	var out relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode dispatch response: %w", err)
	}
	if out.RequestID == 0 {
		return 0, fmt.Errorf("oracle dispatch returned no request id")
	}
	return out.RequestID, nil
}
