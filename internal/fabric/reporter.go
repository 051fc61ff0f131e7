package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"fabricbridge/internal/actions"
	"fabricbridge/internal/vars"
)

// Config holds the Fabric connector settings. Immutable after construction.
type Config struct {
	// Endpoint is the URL of the Fabric node accepting JSON-RPC requests.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// RequestTimeout is the HTTP timeout in seconds.
	RequestTimeout int `yaml:"request_timeout" json:"requestTimeout"`
}

const (
	DefaultEndpoint       = "http://localhost:8545"
	DefaultRequestTimeout = 10 // seconds

	rpcMethod = "omp2p_shareStatus"
)

// HTTPClient abstracts the HTTP round trip for testing.
// The standard *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// rpcRequest is the JSON-RPC 2.0 envelope sent to the Fabric node.
type rpcRequest struct {
	Method  string       `json:"method"`
	Params  []poseParams `json:"params"`
	ID      int          `json:"id"`
	JSONRPC string       `json:"jsonrpc"`
}

type poseParams struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Yaw       float64 `json:"yaw"`
}

// Outcome describes the result of one share attempt, for observers
// (dashboard, journal). The dispatch path itself never sees it.
type Outcome struct {
	OK     bool
	Reason string // empty on success
	At     time.Time
}

// Reporter shares the robot's position with a Fabric network node.
// Stateless between calls apart from its configuration; safe for
// concurrent invocation.
type Reporter struct {
	endpoint string
	timeout  time.Duration
	store    vars.Provider
	client   HTTPClient
	log      *slog.Logger

	onOutcome func(Outcome)
}

// NewReporter creates a Reporter over the given variable store.
// A nil client gets a default *http.Client with the configured timeout.
func NewReporter(cfg Config, store vars.Provider, client HTTPClient, log *slog.Logger) *Reporter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Reporter{
		endpoint: cfg.Endpoint,
		timeout:  timeout,
		store:    store,
		client:   client,
		log:      log,
	}
}

// SetOutcomeHook registers an observer called after each share attempt.
// Must be set before the reporter is handed to the dispatcher.
func (r *Reporter) SetOutcomeHook(fn func(Outcome)) {
	r.onOutcome = fn
}

// Connect handles a dispatched action. Only ShareLocation triggers any
// side effect; the share result is deliberately discarded so the
// dispatch path never fails loudly.
func (r *Reporter) Connect(action actions.Action) {
	r.log.Info("received action", "action", string(action))
	if action == actions.ShareLocation {
		r.SendCoordinates()
	}
}

// SendCoordinates reads the current position from the variable store and
// posts it to the Fabric endpoint as a single JSON-RPC call. Returns true
// only when the node acknowledged with a truthy "result". Never retries.
func (r *Reporter) SendCoordinates() bool {
	ok, reason := r.share()
	if r.onOutcome != nil {
		r.onOutcome(Outcome{OK: ok, Reason: reason, At: time.Now()})
	}
	return ok
}

func (r *Reporter) share() (bool, string) {
	r.log.Info("sending coordinates to fabric network")

	lat, latOK := r.store.Get(vars.KeyLatitude)
	lon, lonOK := r.store.Get(vars.KeyLongitude)
	yaw, yawOK := r.store.Get(vars.KeyYawDeg)

	// All three must be present; any single missing value aborts.
	if !latOK || !lonOK || !yawOK {
		var missing []string
		if !latOK {
			missing = append(missing, vars.KeyLatitude)
		}
		if !lonOK {
			missing = append(missing, vars.KeyLongitude)
		}
		if !yawOK {
			missing = append(missing, vars.KeyYawDeg)
		}
		r.log.Error("coordinates not available", "missing", missing)
		return false, "missing coordinates"
	}

	r.log.Info("position read", "latitude", lat, "longitude", lon, "yaw", yaw)

	payload, err := json.Marshal(rpcRequest{
		Method:  rpcMethod,
		Params:  []poseParams{{Latitude: lat, Longitude: lon, Yaw: yaw}},
		ID:      1,
		JSONRPC: "2.0",
	})
	if err != nil {
		r.log.Error("marshal request failed", "error", err)
		return false, "marshal failure"
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		r.log.Error("build request failed", "endpoint", r.endpoint, "error", err)
		return false, "bad endpoint"
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, r.classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.log.Error("read response failed", "error", err)
		return false, "transport error"
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.log.Error("fabric http error", "status", resp.StatusCode, "body", string(body))
		return false, fmt.Sprintf("http status %d", resp.StatusCode)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.log.Error("failed to parse json response", "error", err)
		return false, "invalid json"
	}

	if rpcErr, present := parsed["error"]; present {
		var code, message any
		if obj, ok := rpcErr.(map[string]any); ok {
			code = obj["code"]
			message = obj["message"]
		}
		r.log.Error("fabric rpc error", "code", code, "message", message)
		return false, "rpc error"
	}

	if result, present := parsed["result"]; present && truthy(result) {
		r.log.Info("coordinates shared successfully")
		return true, ""
	}

	r.log.Error("failed to share coordinates")
	return false, "no result"
}

// classifyTransportError logs and labels a failed round trip. Timeouts
// are reported before connection failures so a timed-out dial is still a
// timeout.
func (r *Reporter) classifyTransportError(err error) string {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded):
		r.log.Error("request timed out", "timeout", r.timeout)
		return "timeout"
	case isConnectionError(err):
		r.log.Error("connection error", "error", err)
		return "connection failure"
	default:
		r.log.Error("error sending coordinates", "error", err)
		return "transport error"
	}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// truthy reports whether a decoded JSON value counts as a positive
// acknowledgement: non-null, non-false, non-zero, non-empty.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
