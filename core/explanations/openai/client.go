// Package openai implements an explanation producer backed by the OpenAI
// chat completions API. Explanations stream token by token; once the stream
// completes, a second structured-output request produces the metadata
// attached to the final chunk.
package openai

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/koscakluka/tutor-core/core/explanations"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultModel = "gpt-4o-mini"

	apiKeyEnv = "OPENAI_API_KEY"
)

type Client struct {
	client openai.Client
	model  string
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint. Used for tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.client = openai.NewClient(
			option.WithAPIKey(os.Getenv(apiKeyEnv)),
			option.WithBaseURL(baseURL),
		)
	}
}

// New creates an OpenAI explanation producer. The API key is read from
// OPENAI_API_KEY.
func New(opts ...Option) (*Client, error) {
	apiKey, ok := os.LookupEnv(apiKeyEnv)
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("%s is not set", apiKeyEnv)
	}

	client := &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Explain issues a streaming chat completion for the question. The request
// itself is lazy; upstream errors surface through the stream iterator.
func (c *Client) Explain(_ context.Context, req explanations.Request) (explanations.Stream, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("empty question")
	}
	return &stream{client: c, req: req}, nil
}

type stream struct {
	client *Client
	req    explanations.Request
}

// Chunks yields text deltas as they arrive, then a final chunk carrying the
// metadata. A metadata failure is not fatal: the final chunk degrades to
// empty metadata.
func (s *stream) Chunks(ctx context.Context) func(func(explanations.Chunk, error) bool) {
	return func(yield func(explanations.Chunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream explanation")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

		params := openai.ChatCompletionNewParams{
			Model: s.client.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(buildSystemPrompt(s.req)),
				openai.UserMessage(buildUserPrompt(s.req)),
			},
		}

		upstream := s.client.client.Chat.Completions.NewStreaming(ctx, params)
		var sb strings.Builder
		for upstream.Next() {
			chunk := upstream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			sb.WriteString(delta)
			if !yield(explanations.Delta{Text: delta}, nil) {
				return
			}
		}
		if err := upstream.Err(); err != nil && err != io.EOF {
			err = fmt.Errorf("error streaming explanation: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return
		}

		fullText := sb.String()
		meta, err := s.client.fetchMetadata(ctx, s.req.Question, fullText)
		if err != nil {
			logger.WarnContext(ctx, "metadata generation failed, continuing without it", "error", err)
			span.RecordError(err)
			meta = explanations.Metadata{}
		}

		yield(explanations.Result{Text: fullText, Meta: meta}, nil)
	}
}
