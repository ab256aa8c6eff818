package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streambus/internal/bus"
	apperrors "github.com/pscheid92/streambus/internal/platform/errors"
)

type sendMessageResponse struct {
	Status string `json:"status"`
	Type   string `json:"type"`
}

// handleLatest returns the cached message per cache key, each in wire format.
func (s *Server) handleLatest(c echo.Context) error {
	latest := s.app.Latest()

	response := make(map[string]json.RawMessage, len(latest))
	for key, m := range latest {
		data, err := bus.Encode(m)
		if err != nil {
			return apperrors.InternalError("failed to encode cached message", err).WithField("key", key)
		}
		response[key] = data
	}

	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write latest response: %w", err)
	}
	return nil
}

// handleSendMessage accepts one wire-format message and sends it on the bus.
func (s *Server) handleSendMessage(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperrors.ValidationError("failed to read request body", err)
	}

	m, err := bus.Decode(body)
	if errors.Is(err, bus.ErrUnknownType) {
		return apperrors.ValidationError("unknown message type", err)
	}
	if err != nil {
		return apperrors.ValidationError("invalid message", err)
	}

	s.app.Publish(c.Request().Context(), m)

	if err := c.JSON(http.StatusAccepted, sendMessageResponse{Status: "accepted", Type: m.Type()}); err != nil {
		return fmt.Errorf("failed to write send response: %w", err)
	}
	return nil
}
