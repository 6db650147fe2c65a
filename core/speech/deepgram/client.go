// Package deepgram implements a speech provider backed by the Deepgram Aura
// text-to-speech REST API. It is typically configured as a fallback behind
// the primary provider.
package deepgram

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/koscakluka/tutor-core/core/speech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.deepgram.com"
	defaultVoice   = "aura-asteria-en"

	apiKeyEnv = "DEEPGRAM_API_KEY"
)

type Client struct {
	apiKey   string
	baseURL  string
	voice    string
	mediaDir string

	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithVoice(voice string) Option {
	return func(c *Client) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// New creates a Deepgram speech provider that stores audio files in mediaDir.
// The API key is read from DEEPGRAM_API_KEY.
func New(mediaDir string, opts ...Option) (*Client, error) {
	apiKey, ok := os.LookupEnv(apiKeyEnv)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("%s is not set", apiKeyEnv)
	}

	client := &Client{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		voice:    defaultVoice,
		mediaDir: mediaDir,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) Name() string { return "deepgram" }

func (c *Client) Synthesize(ctx context.Context, req speech.Request) (*speech.Result, error) {
	ctx, span := tracer.Start(ctx, "deepgram synthesize")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.voice", c.voice),
		attribute.Int("request.text_length", len(req.Text)),
	)

	requestBodyBytes, err := json.Marshal(map[string]string{"text": req.Text})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/speak?model=%s", c.baseURL, c.voice)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "token "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading audio body: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	filename, err := c.store(audio)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.DebugContext(ctx, "synthesized narration", "file", filename, "bytes", len(audio))
	return &speech.Result{
		AudioURL: "/media/" + filename,
		Duration: speech.EstimateDuration(req.Text),
	}, nil
}

func (c *Client) store(audio []byte) (string, error) {
	if err := os.MkdirAll(c.mediaDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating media directory: %w", err)
	}

	hash := sha256.Sum256(audio)
	filename := "audio_" + hex.EncodeToString(hash[:8]) + ".mp3"
	if err := os.WriteFile(filepath.Join(c.mediaDir, filename), audio, 0o644); err != nil {
		return "", fmt.Errorf("error writing audio file: %w", err)
	}
	return filename, nil
}
