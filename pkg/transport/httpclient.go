package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sui-sandbox/replay/pkg/config"
	"github.com/sui-sandbox/replay/pkg/metrics"
	"github.com/rs/zerolog"
)

// httpClient is the retrying JSON request/response client shared by all
// three adapters. It is not exported: callers construct adapters through
// NewArchivalAdapter/NewRPCAdapter/NewGraphAdapter.
type httpClient struct {
	adapterName string
	endpoint    string
	apiKey      string
	cfg         config.TransportConfig
	client      *http.Client
	logger      zerolog.Logger
}

func newHTTPClient(adapterName, endpoint string, cfg config.TransportConfig, logger zerolog.Logger) *httpClient {
	return &httpClient{
		adapterName: adapterName,
		endpoint:    endpoint,
		apiKey:      cfg.RPCAPIKey,
		cfg:         cfg,
		logger:      logger,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		},
	}
}

// postJSON POSTs body as JSON to path (appended to the adapter's
// endpoint) and decodes the response into out, retrying transient
// failures with exponential backoff up to cfg.MaxRetries retries.
func (c *httpClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return Terminal(c.adapterName+".postJSON", fmt.Errorf("marshal request: %w", err))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	boCtx := backoff.WithContext(bo, ctx)

	attempt := 0
	op := func() error {
		attempt++
		timer := metrics.NewTimer()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(Terminal(c.adapterName, fmt.Errorf("build request: %w", err)))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		timer.ObserveDurationVec(metrics.TransportRequestDuration, c.adapterName)
		if err != nil {
			c.logger.Debug().Str("path", path).Int("attempt", attempt).Err(err).Msg("transport request failed")
			metrics.TransportRequestsTotal.WithLabelValues(c.adapterName, "error").Inc()
			return Retryable(c.adapterName, err)
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			metrics.TransportRequestsTotal.WithLabelValues(c.adapterName, "error").Inc()
			return Retryable(c.adapterName, fmt.Errorf("read body: %w", readErr))
		}

		if resp.StatusCode >= 500 {
			metrics.TransportRequestsTotal.WithLabelValues(c.adapterName, "server_error").Inc()
			return Retryable(c.adapterName, fmt.Errorf("status %d: %s", resp.StatusCode, string(data)))
		}
		if resp.StatusCode >= 400 {
			metrics.TransportRequestsTotal.WithLabelValues(c.adapterName, "client_error").Inc()
			return backoff.Permanent(Terminal(c.adapterName, fmt.Errorf("status %d: %s", resp.StatusCode, string(data))))
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				metrics.TransportRequestsTotal.WithLabelValues(c.adapterName, "decode_error").Inc()
				return backoff.Permanent(Terminal(c.adapterName, fmt.Errorf("decode response: %w", err)))
			}
		}
		metrics.TransportRequestsTotal.WithLabelValues(c.adapterName, "ok").Inc()
		return nil
	}

	var lastErr error
	retryCount := 0
	notify := func(err error, wait time.Duration) {
		retryCount++
		lastErr = err
		c.logger.Debug().Str("path", path).Dur("wait", wait).Err(err).Msg("retrying after transport error")
	}

	err = backoff.RetryNotify(op, backoff.WithMaxRetries(boCtx, uint64(c.cfg.MaxRetries)), notify)
	if err != nil {
		if retryCount >= c.cfg.MaxRetries {
			return Terminal(c.adapterName, fmt.Errorf("exhausted %d retries: %w", c.cfg.MaxRetries, err))
		}
		_ = lastErr
		return err
	}
	return nil
}
