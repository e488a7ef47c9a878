package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agentrt/agentrt/pkg/models"
)

// maxErrorBodyBytes caps how much of a failed response body is kept on the
// error (and therefore logged).
const maxErrorBodyBytes = 8 << 10

// Generate issues a non-streaming generateContent call and reads the full
// response.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	resp, err := c.do(ctx, req, false)
	if err != nil {
		c.observe(req.Model, "generate", started, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		wrapped := &Error{Err: fmt.Errorf("read response: %w", err)}
		c.observe(req.Model, "generate", started, wrapped)
		return nil, wrapped
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		wrapped := &Error{Err: fmt.Errorf("%w: %v", ErrUnexpectedShape, err)}
		c.observe(req.Model, "generate", started, wrapped)
		return nil, wrapped
	}
	if wire.Candidates == nil {
		wrapped := &Error{Err: ErrUnexpectedShape}
		c.observe(req.Model, "generate", started, wrapped)
		return nil, wrapped
	}

	out := &Response{Usage: wire.UsageMetadata}
	for _, event := range projectParts(wire) {
		switch event.Kind {
		case GenTextDelta:
			out.Text += event.TextDelta
		case GenFunctionCall:
			out.Calls = append(out.Calls, *event.Call)
		}
	}

	c.observe(req.Model, "generate", started, nil)
	c.countUsage(req.Model, out.Usage)
	return out, nil
}

// Stream issues a streaming streamGenerateContent call and invokes emit for
// every decoded GenEvent in arrival order, finishing with a GenDone event.
// Malformed SSE payloads and bodies without the candidates shape are
// silently skipped, per the framing contract. A non-nil error from emit
// stops the read loop and is returned as-is.
func (c *Client) Stream(ctx context.Context, req Request, emit func(GenEvent) error) error {
	started := time.Now()
	resp, err := c.do(ctx, req, true)
	if err != nil {
		c.observe(req.Model, "stream", started, err)
		return err
	}
	defer resp.Body.Close()

	var usage *models.Usage
	scanner := NewSSEScanner(resp.Body)
	for {
		payload, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Read failures mid-stream include context cancellation; keep
			// the underlying kind visible to the classifier.
			wrapped := &Error{Err: fmt.Errorf("read stream: %w", err)}
			c.observe(req.Model, "stream", started, wrapped)
			return wrapped
		}

		var wire wireResponse
		if err := json.Unmarshal(payload, &wire); err != nil {
			continue
		}
		if wire.Candidates == nil {
			continue
		}
		if wire.UsageMetadata != nil {
			usage = wire.UsageMetadata
		}
		for _, event := range projectParts(wire) {
			if err := emit(event); err != nil {
				c.observe(req.Model, "stream", started, nil)
				return err
			}
		}
	}

	c.observe(req.Model, "stream", started, nil)
	c.countUsage(req.Model, usage)
	return emit(GenEvent{Kind: GenDone, Usage: usage})
}

// do POSTs the request to the right endpoint and returns the raw HTTP
// response, already checked for 2xx.
func (c *Client) do(ctx context.Context, req Request, streaming bool) (*http.Response, error) {
	wire := buildWireRequest(req)
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := c.endpoint(req.Model, req.APIKey, streaming)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &Error{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, &Error{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &Error{Status: resp.StatusCode, Body: string(errBody)}
	}

	// The cancel func must outlive this call for streaming reads; tie it to
	// body close so the timeout still bounds the whole request.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) endpoint(model, apiKey string, streaming bool) string {
	if streaming {
		return fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
			c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
	}
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
}

func (c *Client) observe(model, mode string, started time.Time, err error) {
	if err != nil {
		c.logger.Warn(context.Background(), "provider request failed",
			"model", model, "mode", mode, "error", err)
		if c.metrics != nil {
			c.metrics.ProviderErrors.WithLabelValues(string(ClassifyErr(err).Reason)).Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.ProviderRequestDuration.WithLabelValues(model, mode).
			Observe(time.Since(started).Seconds())
	}
}

func (c *Client) countUsage(model string, usage *models.Usage) {
	if usage == nil || c.metrics == nil {
		return
	}
	c.metrics.ProviderTokensUsed.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
	c.metrics.ProviderTokensUsed.WithLabelValues(model, "candidates").Add(float64(usage.CandidatesTokens))
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
