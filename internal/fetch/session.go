// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fxbrun/colporteur/internal/config"
	"github.com/fxbrun/colporteur/internal/logging"
	"github.com/fxbrun/colporteur/internal/metrics"
)

// ProxyResponse is the solved page returned by the anti-bot proxy.
type ProxyResponse struct {
	Status int
	Body   string
}

// solverRequest is the FlareSolverr v1 command envelope.
type solverRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	Session    string `json:"session,omitempty"`
	MaxTimeout int    `json:"maxTimeout,omitempty"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Session  string `json:"session"`
	Solution struct {
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// SessionManager owns the single shared session against the anti-bot
// proxy (FlareSolverr protocol). Session creation and destruction are
// serialized under a mutex so concurrent scraped-provider requests reuse
// one browser session instead of racing to create their own.
//
// A circuit breaker guards the solver: when the proxy itself is down or
// consistently failing, scraped providers fail fast instead of queueing
// 40-second timeouts.
type SessionManager struct {
	cfg     config.ProxyConfig
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[*ProxyResponse]
	limiter *Limiter

	// mu guards sessionID and createdAt.
	mu        chan struct{}
	sessionID string
	createdAt time.Time
}

// NewSessionManager builds the manager. The proxy timeout is the long
// one: the solver may spend tens of seconds on an anti-bot challenge.
// The limiter is the shared per-provider spacer; proxied fetches honor
// the same minimum intervals as direct ones.
func NewSessionManager(cfg config.ProxyConfig, fetchCfg config.FetchConfig, limiter *Limiter) *SessionManager {
	cbName := "proxy-solver"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*ProxyResponse](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	m := &SessionManager{
		cfg:     cfg,
		client:  &http.Client{Timeout: fetchCfg.ProxyTimeout},
		cb:      cb,
		limiter: limiter,
		mu:      make(chan struct{}, 1),
	}
	m.mu <- struct{}{}
	return m
}

// lock acquires the session mutex, honoring context cancellation so a
// dying request does not queue behind a slow session create.
func (m *SessionManager) lock(ctx context.Context) error {
	select {
	case <-m.mu:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) unlock() { m.mu <- struct{}{} }

// FetchViaProxy fetches a URL through the shared proxy session on behalf
// of the named provider. On a solver failure or an upstream 5xx the
// session is rotated and the fetch retried once with the fresh session.
// Each attempt waits out the provider's minimum spacing first.
func (m *SessionManager) FetchViaProxy(ctx context.Context, source, url string) (*ProxyResponse, error) {
	resp, err := m.fetchOnce(ctx, source, url)
	if err == nil && resp.Status < 500 {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &SessionError{Err: err}
	}

	logging.Ctx(ctx).Warn().Err(err).Str("url", url).Msg("proxy fetch failed, rotating session")
	m.Rotate(ctx)

	resp, err = m.fetchOnce(ctx, source, url)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 500 {
		return nil, &UpstreamError{Provider: "proxy", StatusCode: resp.Status}
	}
	return resp, nil
}

func (m *SessionManager) fetchOnce(ctx context.Context, source, url string) (*ProxyResponse, error) {
	if err := m.limiter.Wait(ctx, source); err != nil {
		return nil, err
	}

	session, err := m.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	return m.cb.Execute(func() (*ProxyResponse, error) {
		var out solverResponse
		if err := m.command(ctx, solverRequest{
			Cmd:        "request.get",
			URL:        url,
			Session:    session,
			MaxTimeout: int(m.client.Timeout / time.Millisecond),
		}, &out); err != nil {
			return nil, err
		}
		if out.Status != "ok" {
			return nil, &SessionError{Err: fmt.Errorf("solver status %q: %s", out.Status, out.Message)}
		}
		return &ProxyResponse{Status: out.Solution.Status, Body: out.Solution.Response}, nil
	})
}

// ensureSession returns the current session id, creating one when none
// exists or the configured TTL has elapsed.
func (m *SessionManager) ensureSession(ctx context.Context) (string, error) {
	if err := m.lock(ctx); err != nil {
		return "", err
	}
	defer m.unlock()

	if m.sessionID != "" && (m.cfg.SessionTTL <= 0 || time.Since(m.createdAt) < m.cfg.SessionTTL) {
		return m.sessionID, nil
	}
	if m.sessionID != "" {
		m.destroyLocked(ctx)
	}

	var out solverResponse
	if err := m.command(ctx, solverRequest{Cmd: "sessions.create"}, &out); err != nil {
		return "", &SessionError{Err: err}
	}
	if out.Session == "" {
		return "", &SessionError{Err: fmt.Errorf("solver returned no session id: %s", out.Message)}
	}

	m.sessionID = out.Session
	m.createdAt = time.Now()
	metrics.ProxySessionCreations.Inc()
	logging.Ctx(ctx).Info().Str("session", out.Session).Msg("proxy session created")
	return m.sessionID, nil
}

// Rotate destroys the current session so the next call creates a fresh
// one.
func (m *SessionManager) Rotate(ctx context.Context) {
	if err := m.lock(ctx); err != nil {
		return
	}
	defer m.unlock()
	if m.sessionID == "" {
		return
	}
	m.destroyLocked(ctx)
	metrics.ProxySessionRotations.Inc()
}

// Destroy tears down the session on shutdown.
func (m *SessionManager) Destroy(ctx context.Context) {
	if err := m.lock(ctx); err != nil {
		return
	}
	defer m.unlock()
	m.destroyLocked(ctx)
}

func (m *SessionManager) destroyLocked(ctx context.Context) {
	if m.sessionID == "" {
		return
	}
	var out solverResponse
	if err := m.command(ctx, solverRequest{Cmd: "sessions.destroy", Session: m.sessionID}, &out); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("session", m.sessionID).Msg("proxy session destroy failed")
	}
	m.sessionID = ""
	m.createdAt = time.Time{}
}

// command POSTs one solver command to the proxy's /v1 endpoint.
func (m *SessionManager) command(ctx context.Context, cmd solverRequest, out *solverResponse) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding solver command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v1", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return &UpstreamError{Provider: "proxy", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Provider: "proxy", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &UpstreamError{Provider: "proxy", Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Provider: "proxy", Err: fmt.Errorf("decoding solver response: %w", err)}
	}
	return nil
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
