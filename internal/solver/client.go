package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/san-kum/pksim/internal/pk"
)

const maxResponseBytes = 64 << 20

// Routes of the model service, relative to the base URL.
const (
	ParsePath    = "/parse/"
	SimulatePath = "/simulate/"
	FitPath      = "/fit/"
)

// Config locates the service. A zero timeout leaves the call bounded only by its context.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the model service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a client for cfg.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNoBaseURL
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type parseRequest struct {
	Text string `json:"text"`
}

func (c *Client) Parse(ctx context.Context, equations string) (*pk.Model, error) {
	if strings.TrimSpace(equations) == "" {
		return nil, pk.Invalid("equations", ErrEmptyEquations)
	}
	var m pk.Model
	if err := c.call(ctx, "parse", ParsePath, parseRequest{Text: equations}, &m); err != nil {
		return nil, err
	}
	if len(m.Compartments) == 0 {
		return nil, &pk.SolverError{Op: "parse", Message: "no compartments found in the equations"}
	}
	if err := m.Validate(); err != nil {
		return nil, &pk.SolverError{Op: "parse", Message: err.Error()}
	}
	return &m, nil
}

func (c *Client) Simulate(ctx context.Context, req *SimulateRequest) (*SimulateResult, error) {
	var res SimulateResult
	if err := c.call(ctx, "simulate", SimulatePath, req, &res); err != nil {
		return nil, err
	}
	if res.Profile == nil {
		return nil, &pk.TransportError{Op: "simulate", Status: http.StatusOK, Err: fmt.Errorf("%w: no profile", ErrMalformedResponse)}
	}
	return &res, nil
}

func (c *Client) Fit(ctx context.Context, req *FitRequest) (*FitResult, error) {
	var res FitResult
	if err := c.call(ctx, "fit", FitPath, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) call(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &pk.TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &pk.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &pk.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(nullNonFinite(raw), &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.Message != "" {
			msg = env.Message
		}
		return &pk.TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return &pk.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)}
	}
	if env.Status != "ok" {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("service reported status %q", env.Status)
		}
		return &pk.SolverError{Op: op, Message: msg}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &pk.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: no data", ErrMalformedResponse)}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &pk.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}
