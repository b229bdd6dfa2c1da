package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vodarr/vodarr/internal/transcode"
)

// SessionHandler exposes keep-alive and forced teardown for transcode
// sessions.
type SessionHandler struct {
	engine *transcode.Engine
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(engine *transcode.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

// SessionInput carries the session id path parameter.
type SessionInput struct {
	Session string `path:"session" doc:"Transcode session id"`
}

// SessionOutput is an empty acknowledgement body.
type SessionOutput struct{}

// Register registers the session routes with the API.
func (h *SessionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "keepAlive",
		Method:      "POST",
		Path:        "/keep-alive/{session}",
		Summary:     "Keep a session alive",
		Description: "Defers the idle timeout of a transcode session",
		Tags:        []string{"Sessions"},
	}, h.KeepAlive)

	huma.Register(api, huma.Operation{
		OperationID: "closeSession",
		Method:      "POST",
		Path:        "/close-session/{session}",
		Summary:     "Close a session",
		Description: "Stops the encoder and removes the session's scratch directory",
		Tags:        []string{"Sessions"},
	}, h.Close)
}

// KeepAlive defers the session's idle timeout.
func (h *SessionHandler) KeepAlive(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	if err := h.engine.KeepAlive(input.Session); err != nil {
		if errors.Is(err, transcode.ErrUnknownSession) {
			return nil, huma.Error404NotFound("unknown session")
		}
		return nil, err
	}
	return &SessionOutput{}, nil
}

// Close tears the session down. Closing an unknown session is a no-op.
func (h *SessionHandler) Close(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	h.engine.CloseSession(input.Session)
	return &SessionOutput{}, nil
}
