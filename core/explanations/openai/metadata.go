package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/tutor-core/core/explanations"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const metadataSystemPrompt = `You extract structured teaching metadata from an explanation.
Given a question and its explanation, produce keywords worth emphasizing,
related concepts, follow-up questions a curious student might ask, and, if a
visual would help, a suggestion for one.`

type explanationMetadata struct {
	Keywords          []string          `json:"keywords"`
	RelatedConcepts   []string          `json:"related_concepts"`
	FollowUpQuestions []string          `json:"follow_up_questions"`
	VisualSuggestion  *visualSuggestion `json:"visual_suggestion,omitempty"`
}

type visualSuggestion struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Elements    []string `json:"elements"`
}

func (c *Client) fetchMetadata(ctx context.Context, question, fullText string) (explanations.Metadata, error) {
	ctx, span := tracer.Start(ctx, "fetch explanation metadata")
	defer span.End()

	if fullText == "" {
		return explanations.Metadata{}, nil
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(explanationMetadata{})
	span.SetAttributes(attribute.String("request.model", c.model))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(metadataSystemPrompt),
			openai.UserMessage(fmt.Sprintf("Question: %s\n\nExplanation: %s", question, fullText)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "explanation_metadata",
					Schema: schema,
					Strict: param.NewOpt(true),
				},
			},
		},
	})
	if err != nil {
		err = fmt.Errorf("error requesting metadata: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return explanations.Metadata{}, err
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("metadata response has no choices")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return explanations.Metadata{}, err
	}

	var parsed explanationMetadata
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		err = fmt.Errorf("error unmarshalling metadata: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return explanations.Metadata{}, err
	}

	var meta explanations.Metadata
	if err := copier.Copy(&meta, &parsed); err != nil {
		return explanations.Metadata{}, fmt.Errorf("error copying metadata: %w", err)
	}
	return meta, nil
}
