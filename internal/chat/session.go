package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"simdb/internal/errors"
	"simdb/internal/logging"
	"simdb/internal/query"
)

// systemPrompt frames the model as an assistant over the local database. It
// is the first message of every session and survives Reset.
const systemPrompt = `You are an assistant for analyzing analog circuit simulation results stored in a local database. Use the provided tools to search simulations, inspect data series, filter by metrics and compute statistics. Metric values are stored per data series; a missing metric means it was undefined for that series, not zero. Answer concisely and cite simulation and series ids so the user can drill down.`

// maxToolRounds caps tool-call round trips per user turn so a model stuck in
// a loop cannot spin forever.
const maxToolRounds = 8

// Transport sends one completion request. *Client satisfies it; tests
// substitute a scripted fake.
type Transport interface {
	CreateChatCompletion(ctx context.Context, messages []Message, tools []Tool) (*Message, error)
}

// Session is one conversation with in-memory history.
type Session struct {
	ID string

	transport Transport
	service   *query.Service
	logger    *logging.Logger
	messages  []Message
}

// NewSession starts a conversation bound to one query service.
func NewSession(transport Transport, service *query.Service, logger *logging.Logger) *Session {
	return &Session{
		ID:        uuid.New().String(),
		transport: transport,
		service:   service,
		logger:    logger,
		messages:  []Message{{Role: "system", Content: systemPrompt}},
	}
}

// Send appends the user input, runs the completion loop until the model
// answers without tool calls, and returns the final assistant content. Tool
// calls execute in the order the model requested them; a failed call is fed
// back to the model as an error payload rather than aborting the turn.
func (s *Session) Send(ctx context.Context, input string) (string, error) {
	s.messages = append(s.messages, Message{Role: "user", Content: input})

	for round := 0; round < maxToolRounds; round++ {
		reply, err := s.transport.CreateChatCompletion(ctx, s.messages, ToolDefinitions())
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		s.messages = append(s.messages, *reply)

		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		for _, call := range reply.ToolCalls {
			s.messages = append(s.messages, Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    s.runTool(call),
			})
		}
	}

	return "", fmt.Errorf("model did not produce a final answer within %d tool rounds", maxToolRounds)
}

// runTool executes one tool call and encodes the outcome as the tool message
// content. Errors become a JSON error payload the model can react to.
func (s *Session) runTool(call ToolCall) string {
	s.logger.Debug("Executing tool call", map[string]interface{}{
		"session_id": s.ID,
		"tool":       call.Function.Name,
		"arguments":  call.Function.Arguments,
	})

	result, err := executeTool(s.service, call.Function.Name, call.Function.Arguments)
	if err != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"error": err.Error(),
			"code":  string(errors.CodeOf(err)),
		})
		return string(payload)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(payload)
}

// Reset drops the conversation history, keeping only the system prompt. The
// session id is retained.
func (s *Session) Reset() {
	s.messages = s.messages[:1]
}

// History returns a copy of the message history.
func (s *Session) History() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
