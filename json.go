// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"
)

const (
	maxRetries       = 3
	retryBaseWait    = 500 * time.Millisecond
	retryMaxWait     = 2 * time.Second
	httpClientWait   = 30 * time.Second
	jsonPath         = "/rpc"
	jsonCallMethod   = "Channel.Call"
	jsonContentType  = "application/json"
	jsonHeaderWait   = 10 * time.Second
	jsonRandomFactor = 0.5
)

// Options holds per-request settings for SendJSONRequest
type Options struct {
	headers     http.Header
	queryParams url.Values
	logger      zerolog.Logger
}

// Option configures a JSON request
type Option func(*Options)

// NewOptions applies ops over empty headers and query parameters.
func NewOptions(ops []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
		logger:      zerolog.Nop(),
	}
	for _, op := range ops {
		op(o)
	}
	return o
}

// WithHeader adds a request header
func WithHeader(key, value string) Option {
	return func(o *Options) { o.headers.Add(key, value) }
}

// WithQueryParam adds a query parameter to the endpoint
func WithQueryParam(key, value string) Option {
	return func(o *Options) { o.queryParams.Add(key, value) }
}

// WithRequestLogger logs retries of the request
func WithRequestLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// This avoids EOF errors that can occur with connection pooling in complex
// process hierarchies.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: httpClientWait,
		Transport: &http.Transport{
			DisableKeepAlives: true, // Disable connection reuse to avoid EOF issues
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	// Drain any remaining data to allow connection reuse
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// EOF errors are often transient connection issues
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	// Connection reset/refused are also transient
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseWait
	b.MaxInterval = retryMaxWait
	b.RandomizationFactor = jsonRandomFactor
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries-1), ctx)
}

// SendJSONRequest issues a JSON-RPC 2.0 request and decodes the result
// into reply. Transient connection failures are retried with backoff.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params any,
	reply any,
	options ...Option,
) error {
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	if len(ops.queryParams) > 0 {
		target.RawQuery = ops.queryParams.Encode()
	}
	log := ops.logger.With().Str("method", method).Str("uri", target.String()).Logger()

	attempt := 0
	operation := func() error {
		attempt++
		// Create fresh request for each attempt (body buffer is consumed)
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewReader(requestBodyBytes),
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", jsonContentType)

		// Use a fresh HTTP client to avoid connection pooling issues
		resp, err := newHTTPClient().Do(request)
		if err != nil {
			retryable := isRetryableError(err)
			log.Debug().Err(err).Int("attempt", attempt).Bool("retryable", retryable).Msg("request failed")
			if retryable {
				return err
			}
			return backoff.Permanent(fmt.Errorf("failed to issue request: %w", err))
		}
		defer CleanlyCloseBody(resp.Body)
		if attempt > 1 {
			log.Debug().Int("attempt", attempt).Msg("request succeeded")
		}

		// Failed calls are answered with 400 and a JSON-RPC error body
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("received status code: %d", resp.StatusCode))
		}

		if err := rpc.DecodeClientResponse(resp.Body, reply); err != nil {
			var rpcErr *rpc.Error
			if errors.As(err, &rpcErr) {
				return backoff.Permanent(jsonRemoteError(rpcErr))
			}
			return backoff.Permanent(fmt.Errorf("failed to decode client response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, newRetryBackoff(ctx)); err != nil {
		if attempt >= maxRetries && isRetryableError(err) {
			return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, err)
		}
		return err
	}
	return nil
}

// jsonRemoteError recovers the typed error carried in the data member of a
// JSON-RPC error.
func jsonRemoteError(e *rpc.Error) error {
	if e.Data == nil {
		return &RemoteError{Message: e.Message}
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return &RemoteError{Message: e.Message}
	}
	return decodeError(data)
}

// JSONCallArgs are the params of a Channel.Call request
type JSONCallArgs struct {
	Channel string          `json:"channel"`
	Command string          `json:"command"`
	Arg     json.RawMessage `json:"arg,omitempty"`
}

// JSONCallReply is the result of a Channel.Call request
type JSONCallReply struct {
	Result json.RawMessage `json:"result"`
}

// jsonEndpoint accepts "host:port" or a full http:// or https:// URL.
func jsonEndpoint(addr string) (*url.URL, error) {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr + jsonPath
	}
	return url.Parse(addr)
}

// jsonClient implements Client over JSON-RPC. It carries calls only.
type jsonClient struct {
	endpoint *url.URL
	options  []Option
	timeout  time.Duration
}

func dialJSON(_ context.Context, addr string, o *dialOptions) (Client, error) {
	endpoint, err := jsonEndpoint(addr)
	if err != nil {
		return nil, fmt.Errorf("json dial: %w", err)
	}
	options := append([]Option{WithRequestLogger(o.logger)}, o.httpOptions...)
	return &jsonClient{endpoint: endpoint, options: options, timeout: o.callTimeout}, nil
}

func (c *jsonClient) Call(ctx context.Context, channel, command string, args, reply any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	callArgs := &JSONCallArgs{Channel: channel, Command: command}
	if args != nil {
		arg, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
		callArgs.Arg = arg
	}

	var out JSONCallReply
	if err := SendJSONRequest(ctx, c.endpoint, jsonCallMethod, callArgs, &out, c.options...); err != nil {
		return err
	}
	if reply != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, reply); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
	}
	return nil
}

func (c *jsonClient) Listen(context.Context, string, string) (*Subscription, error) {
	return nil, ErrEventsUnsupported
}

func (c *jsonClient) Close() error {
	return nil
}
