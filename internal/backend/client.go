// Package backend holds the HTTP client adapters for the tutor service:
// the streaming chat endpoint and the per-variant quiz generate/validate
// endpoints. Transport only; payload interpretation lives in the quiz
// package.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingua/internal/quiz"
)

// DefaultTimeout bounds quiz generate/validate calls so a stalled
// collaborator fails the instance instead of wedging it in loading or
// submitted forever. The chat stream itself is not subject to it.
const DefaultTimeout = 60 * time.Second

// Client talks to the tutor backend.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	log     *logrus.Entry
}

// NewClient creates a backend client. timeout bounds quiz calls; zero means
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, log *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		// The chat stream stays open for the whole turn; only dialing is
		// bounded, via the request context.
		stream: &http.Client{},
		log:    log,
	}
}

// Chat opens the streaming chat endpoint and returns the raw event-stream
// body. The caller owns the body and must close it.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]string{
		"sessionId": sessionID,
		"message":   message,
	})
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &ErrTransport{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &ErrTransport{Err: fmt.Errorf("chat returned %s", resp.Status)}
	}
	return resp.Body, nil
}

// Generate calls the variant's generate endpoint and returns the raw
// response envelope for the registry to decode.
func (c *Client) Generate(ctx context.Context, v quiz.Variant, sessionID string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/api/quiz/%s/generate", c.baseURL, quiz.SpecFor(v).Slug)
	raw, err := c.postJSON(ctx, url, map[string]string{"sessionId": sessionID})
	if err != nil {
		return nil, &ErrGenerate{Variant: v.String(), Err: err}
	}
	return raw, nil
}

// Validate calls the variant's validate endpoint with the prepared request
// body and returns the raw result envelope.
func (c *Client) Validate(ctx context.Context, v quiz.Variant, reqBody any) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/api/quiz/%s/validate", c.baseURL, quiz.SpecFor(v).Slug)
	raw, err := c.postJSON(ctx, url, reqBody)
	if err != nil {
		return nil, &ErrValidate{Variant: v.String(), Err: err}
	}
	return raw, nil
}

// ValidatePronunciation uploads a recorded clip as multipart form data, the
// shape the scoring service expects for audio.
func (c *Client) ValidatePronunciation(ctx context.Context, sessionID, referenceText string, clip []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("sessionId", sessionID); err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}
	if err := w.WriteField("referenceText", referenceText); err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}
	part, err := w.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}
	if _, err := part.Write(clip); err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}

	url := fmt.Sprintf("%s/api/quiz/%s/validate", c.baseURL, quiz.SpecFor(quiz.VariantPronunciation).Slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	raw, err := c.do(req)
	if err != nil {
		return nil, &ErrValidate{Variant: quiz.VariantPronunciation.String(), Err: err}
	}
	return raw, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"url":     req.URL.Path,
		"status":  resp.StatusCode,
		"latency": time.Since(start).Round(time.Millisecond).String(),
	}).Debug("backend call")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %s: %s", resp.Status, truncateBody(raw))
	}
	return raw, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "…"
}
