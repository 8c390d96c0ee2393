// Package remote reads banks from an HTTP bank API serving
// GET /api/banks and GET /api/banks/{id}.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"bankfees/internal/core"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
	"bankfees/internal/wire"
)

const backendName = "remote"

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

var errUpstreamStatus = errors.New("unexpected upstream status")

type Config struct {
	BaseURL string
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero means 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before letting a probe
	// through. Zero means 30s.
	OpenTimeout time.Duration
}

type Client struct {
	base    *url.URL
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *applog.Logger
	metrics *metrics.Metrics
}

var _ source.Source = (*Client)(nil)

// New builds a client for cfg.BaseURL. logger and m may be nil.
func New(cfg Config, logger *applog.Logger, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentRemote)

	c := &Client{
		base:    base,
		http:    newHTTPClient(cfg.Timeout),
		logger:  logger,
		metrics: m,
	}
	threshold := cfg.FailureThreshold
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        backendName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A missing bank is an answer, not a failure of the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, core.ErrBankNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			switch to {
			case gobreaker.StateClosed:
				m.RecordCircuitState(name, metrics.CircuitClosed)
			case gobreaker.StateHalfOpen:
				m.RecordCircuitState(name, metrics.CircuitHalfOpen)
			case gobreaker.StateOpen:
				m.RecordCircuitState(name, metrics.CircuitOpen)
			}
		},
	})
	m.RecordCircuitState(backendName, metrics.CircuitClosed)
	return c, nil
}

// ListBanks fetches GET {base}/api/banks.
func (c *Client) ListBanks(ctx context.Context) ([]core.Bank, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		body, err := c.get(ctx, "/api/banks")
		if errors.Is(err, core.ErrBankNotFound) {
			return nil, fmt.Errorf("%w 404 from /api/banks", errUpstreamStatus)
		}
		if err != nil {
			return nil, err
		}
		return wire.DecodeBanks(body)
	})
	if err != nil {
		return nil, c.fail(applog.OpList, err)
	}
	return res.([]core.Bank), nil
}

// GetBank fetches GET {base}/api/banks/{id}. A 404 is core.ErrBankNotFound.
func (c *Client) GetBank(ctx context.Context, id string) (core.Bank, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Bank{}, core.ErrBankNotFound
	}
	res, err := c.cb.Execute(func() (interface{}, error) {
		body, err := c.get(ctx, "/api/banks/"+url.PathEscape(id))
		if err != nil {
			return nil, err
		}
		return wire.DecodeBank(body)
	})
	if err != nil {
		if errors.Is(err, core.ErrBankNotFound) {
			return core.Bank{}, core.ErrBankNotFound
		}
		return core.Bank{}, c.fail(applog.OpGet, err)
	}
	return res.(core.Bank), nil
}

// State reports the breaker state, for readiness checks.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.ErrBankNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w %d from %s", errUpstreamStatus, resp.StatusCode, u.Path)
	}
	return body, nil
}

func (c *Client) fail(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("circuit breaker open - request rejected", applog.FieldOperation, op)
	} else {
		c.logger.Error("remote fetch failed", applog.FieldOperation, op, applog.FieldError, err)
	}
	c.metrics.RecordFetchError(backendName)
	return source.Fetch(backendName, op, err)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
