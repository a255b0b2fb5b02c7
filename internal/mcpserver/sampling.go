package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/executor"
)

// sessionTracker records the single active client session so the
// executor's reverse sampling call has somewhere to send
// sampling/createMessage. Stdio carries exactly one peer per §1, so the
// most recently registered session is always the right one.
type sessionTracker struct {
	mu      sync.Mutex
	session server.ClientSession
}

func (t *sessionTracker) set(session server.ClientSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = session
}

func (t *sessionTracker) clear(session server.ClientSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == session {
		t.session = nil
	}
}

func (t *sessionTracker) get() server.ClientSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// hooks wires session tracking onto the MCPServer; invoked once from New.
func (t *sessionTracker) hooks() *server.Hooks {
	h := &server.Hooks{}
	h.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		t.set(session)
	})
	h.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		t.clear(session)
	})
	return h
}

// RequestSampling implements executor.SamplingClient: it builds the exact
// sampling/createMessage request shape from §6 and extracts content.text
// from the response, mapping a deadline exceeded into
// executor.ErrSamplingTimeout per the driver's contract.
func (s *Server) RequestSampling(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	session := s.sessions.get()
	if session == nil {
		return "", executor.ErrSamplingUnavailable
	}

	samplingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := mcpgo.CreateMessageRequest{
		CreateMessageParams: mcpgo.CreateMessageParams{
			Messages: []mcpgo.SamplingMessage{
				{
					Role: mcpgo.RoleUser,
					Content: mcpgo.TextContent{
						Type: "text",
						Text: prompt,
					},
				},
			},
			IncludeContext: "allServers",
			MaxTokens:      2000,
		},
	}

	result, err := session.RequestSampling(samplingCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", executor.ErrSamplingTimeout
		}
		return "", err
	}

	text, ok := result.Content.(mcpgo.TextContent)
	if !ok {
		return "", fmt.Errorf("sampling response content was %T, want text", result.Content)
	}
	return text.Text, nil
}
