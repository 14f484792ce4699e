// Package upstream talks to the OpenAI-compatible completion API that
// backs the chat pipeline.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// ErrUnavailable covers connection failures, non-2xx responses and
	// idle timeouts; callers map it to a 502.
	ErrUnavailable = errors.New("upstream unavailable")
)

// ChatMessage is one turn of model context on the wire
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request
type Request struct {
	Model    string
	Messages []ChatMessage
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type wireResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls the completion API. The zero value is unusable; construct
// with New.
type Client struct {
	baseURL      string
	apiKey       string
	defaultModel string
	idleTimeout  time.Duration
	http         *http.Client
}

func New(baseURL, apiKey, defaultModel string, idleTimeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		idleTimeout:  idleTimeout,
		http:         &http.Client{},
	}
}

// DefaultModel returns the configured fallback model id
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

func (c *Client) newRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	body, err := json.Marshal(wireRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   stream,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return httpReq, nil
}

// Stream runs a streaming completion and calls onDelta for every content
// fragment in arrival order. It returns once the stream ends, the context
// is cancelled, or no data arrives within the idle timeout. Malformed
// event payloads are skipped, never fatal.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := c.newRequest(ctx, req, true)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	// The idle watchdog cancels the request context when no event has
	// arrived for a full idleTimeout window.
	activity := make(chan struct{}, 1)
	var timedOut atomic.Bool
	if c.idleTimeout > 0 {
		done := make(chan struct{})
		defer close(done)
		go func() {
			timer := time.NewTimer(c.idleTimeout)
			defer timer.Stop()
			for {
				select {
				case <-activity:
					if !timer.Stop() {
						<-timer.C
					}
					timer.Reset(c.idleTimeout)
				case <-timer.C:
					timedOut.Store(true)
					cancel()
					return
				case <-done:
					return
				}
			}
		}()
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case activity <- struct{}{}:
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}

		var chunk wireResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Debug("skipping malformed stream chunk", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if timedOut.Load() {
			return fmt.Errorf("%w: idle timeout", ErrUnavailable)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Complete runs a non-streaming completion and returns the full content.
// The chat pipeline uses it as the fallback when a stream yields nothing.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.idleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.idleTimeout)
		defer cancel()
	}

	httpReq, err := c.newRequest(ctx, req, false)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
