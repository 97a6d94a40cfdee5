package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"
)

// Message is one entry in the conversation handed to the model.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  any // JSON Schema for the arguments
}

// ToolCall is a tool invocation the model requested.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// Request is one model turn.
type Request struct {
	Messages []Message
	Tools    []Tool
}

// Response is the model's decision for a turn.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Client performs tool-calling chat completions.
type Client interface {
	ChatWithTools(ctx context.Context, req Request) (*Response, error)
	Model() string
}

type openaiClient struct {
	client openai.Client
	model  string
}

// NewClient creates a Client backed by the OpenAI chat completions API.
func NewClient(apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		model = "gpt-4o"
	}

	return &openaiClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) ChatWithTools(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat with tools: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	choice := resp.Choices[0]

	log.Debug().
		Str("model", c.model).
		Int64("durationMs", time.Since(start).Milliseconds()).
		Int64("promptTokens", resp.Usage.PromptTokens).
		Int64("completionTokens", resp.Usage.CompletionTokens).
		Str("finishReason", string(choice.FinishReason)).
		Msg("model turn completed")

	result := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			result = append(result, openai.SystemMessage(msg.Content))
		case "assistant":
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func convertTools(tools []Tool) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		var params shared.FunctionParameters
		if t.Parameters != nil {
			data, _ := json.Marshal(t.Parameters)
			_ = json.Unmarshal(data, &params)
		}
		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		}
	}
	return result
}

// ParseArguments unmarshals tool-call arguments into the target struct.
func ParseArguments[T any](arguments string) (T, error) {
	var result T
	if err := json.Unmarshal([]byte(arguments), &result); err != nil {
		return result, fmt.Errorf("parse tool arguments: %w", err)
	}
	return result, nil
}
