package agent

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/solstudio/ig-agent-go/internal/errors"
	"github.com/solstudio/ig-agent-go/internal/transcript"
)

// ToolExecutor runs tool calls requested by the model.
type ToolExecutor interface {
	Definitions() []Tool
	Execute(ctx context.Context, conversationKey string, call ToolCall) error
}

// Invoker hands one assembled transcript to the model and executes
// whatever tool calls it decides on. The model is invoked exactly once
// per processing pass; it is trusted to call no_action when nothing is
// warranted.
type Invoker struct {
	client   Client
	executor ToolExecutor
}

func NewInvoker(client Client, executor ToolExecutor) *Invoker {
	return &Invoker{client: client, executor: executor}
}

// Invoke runs a single model turn for the conversation and returns the
// names of the tools that were invoked.
func (inv *Invoker) Invoke(ctx context.Context, conversationKey string, entries []transcript.Entry) ([]string, error) {
	messages := make([]Message, 0, len(entries)+1)
	messages = append(messages, Message{Role: "system", Content: SystemPrompt()})
	for _, e := range entries {
		messages = append(messages, Message{Role: string(e.Role), Content: e.Text})
	}

	resp, err := inv.client.ChatWithTools(ctx, Request{
		Messages: messages,
		Tools:    inv.executor.Definitions(),
	})
	if err != nil {
		return nil, apperrors.AgentFailed(err)
	}

	if len(resp.ToolCalls) == 0 {
		// Free text with no tool call has nowhere to go; the model is
		// expected to reply through send_message.
		if resp.Content != "" {
			log.Warn().
				Str("conversationKey", conversationKey).
				Msg("model returned free text without a tool call, dropping")
		}
		return nil, nil
	}

	invoked := make([]string, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		if err := inv.executor.Execute(ctx, conversationKey, call); err != nil {
			log.Error().Err(err).
				Str("conversationKey", conversationKey).
				Str("tool", call.Name).
				Msg("tool execution failed")
			return invoked, err
		}
		invoked = append(invoked, call.Name)
	}
	return invoked, nil
}
