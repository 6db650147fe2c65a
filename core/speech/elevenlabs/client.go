// Package elevenlabs implements a speech provider backed by the ElevenLabs
// text-to-speech REST API. Synthesized audio is written to a local media
// directory and exposed as a /media/ URL for the client to fetch.
package elevenlabs

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
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModel   = "eleven_monolingual_v1"

	apiKeyEnv = "ELEVENLABS_API_KEY"
)

type Client struct {
	apiKey   string
	baseURL  string
	voiceID  string
	model    string
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

func WithVoiceID(voiceID string) Option {
	return func(c *Client) {
		if voiceID != "" {
			c.voiceID = voiceID
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New creates an ElevenLabs speech provider that stores audio files in
// mediaDir. The API key is read from ELEVENLABS_API_KEY.
func New(mediaDir string, opts ...Option) (*Client, error) {
	apiKey, ok := os.LookupEnv(apiKeyEnv)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("%s is not set", apiKeyEnv)
	}

	client := &Client{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		voiceID:  defaultVoiceID,
		model:    defaultModel,
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

func (c *Client) Name() string { return "elevenlabs" }

// Synthesize narrates the request text and returns a local media URL for the
// resulting audio file. Duration is estimated from the text since the API
// does not report it.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) (*speech.Result, error) {
	ctx, span := tracer.Start(ctx, "elevenlabs synthesize")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.voice_id", c.voiceID),
		attribute.Int("request.text_length", len(req.Text)),
	)

	requestBodyBytes, err := json.Marshal(speakRequestBody{
		Text:          req.Text,
		ModelID:       c.model,
		VoiceSettings: settingsForStyle(req.VoiceStyle),
	})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

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

type speakRequestBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func settingsForStyle(style string) voiceSettings {
	switch style {
	case "calm":
		return voiceSettings{Stability: 0.8, SimilarityBoost: 0.75}
	case "energetic":
		return voiceSettings{Stability: 0.3, SimilarityBoost: 0.85}
	default:
		return voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	}
}
