package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/54b3r/taskagent-go/internal/credential"
	"github.com/54b3r/taskagent-go/internal/logging"
)

const (
	// DefaultTimeout bounds a single business-system call.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of an external response body is kept.
	maxResponseBytes = 1 << 20
)

// Config holds the dependencies required to construct a Dispatcher.
type Config struct {
	// Credentials supplies the bearer token for every call.
	Credentials credential.Provider

	// Timeout bounds each external call. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// HTTPClient overrides the client used for external calls. Its Timeout is
	// replaced by Timeout.
	HTTPClient *http.Client
}

// TimeoutFromEnv reads ACTION_TIMEOUT, returning 0 when unset or invalid.
func TimeoutFromEnv() time.Duration {
	d, err := time.ParseDuration(os.Getenv("ACTION_TIMEOUT"))
	if err != nil {
		return 0
	}
	return d
}

// Dispatcher executes actions against external endpoints.
type Dispatcher struct {
	// creds supplies bearer tokens.
	creds credential.Provider
	// client performs the POST.
	client *http.Client
	// timeout bounds each call.
	timeout time.Duration
}

// NewDispatcher returns a Dispatcher for cfg.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("action: Credentials must not be nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		client = &c
	}
	client.Timeout = timeout

	return &Dispatcher{creds: cfg.Credentials, client: client, timeout: timeout}, nil
}

// Dispatch runs act for task and returns the normalized result. It never
// returns nil.
func (d *Dispatcher) Dispatch(ctx context.Context, act Action, task string) (res *Result) {
	log := logging.FromContext(ctx).With(slog.String("action", act.Name))

	defer func() {
		if r := recover(); r != nil {
			log.Error("action: dispatch panicked", slog.Any("panic", r))
			res = failed(act, fmt.Sprintf("action: internal error: %v", r))
		}
	}()

	if act.Endpoint == "" {
		log.Warn("action: endpoint not configured, skipping external call")
		return failed(act, fmt.Sprintf("action: endpoint for %s is not configured", act.Name))
	}

	var payload Payload
	if act.Build != nil {
		payload = act.Build(task)
	}
	if payload == nil {
		payload = Payload{}
	}

	token, err := d.creds.Token(ctx)
	if err != nil {
		log.Warn("action: credential acquisition failed, skipping external call", slog.Any("error", err))
		return failed(act, err.Error())
	}

	status, body, err := d.post(ctx, act.Endpoint, token, payload)
	if err != nil {
		log.Warn("action: external call failed", slog.Any("error", err))
		return failed(act, err.Error())
	}

	outcome := act.Failed()
	if status.OK() {
		outcome = act.Submitted()
	}
	log.Info("action: external call completed",
		slog.Int("status", int(status)),
		slog.String("outcome", outcome),
	)
	return &Result{Status: status, Body: body, Outcome: outcome}
}

// post sends payload to endpoint with a bearer token and decodes the
// response body by content type.
func (d *Dispatcher) post(ctx context.Context, endpoint, token string, payload Payload) (Status, any, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return StatusError, nil, fmt.Errorf("action: failed to encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return StatusError, nil, fmt.Errorf("action: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(req)
	if err != nil {
		return StatusError, nil, fmt.Errorf("action: request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return StatusError, nil, fmt.Errorf("action: failed to read response: %w", err)
	}

	return Status(resp.StatusCode), decodeBody(resp.Header.Get("Content-Type"), raw), nil
}

// decodeBody returns raw as json.RawMessage when the content type is JSON
// and the bytes are valid JSON, and as a string otherwise.
func decodeBody(contentType string, raw []byte) any {
	if isJSON(contentType) && json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
