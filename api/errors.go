package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cometx/pkg/azure"
	"github.com/papercomputeco/cometx/pkg/history"
	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/settings"
)

// statusFor maps an error to the HTTP status reported to clients. Remote
// failures keep the status the model endpoint returned.
func statusFor(err error) int {
	if remote, ok := azure.AsRemoteError(err); ok {
		if remote.StatusCode >= 400 {
			return remote.StatusCode
		}
		return fiber.StatusBadGateway
	}

	switch {
	case azure.IsTransportError(err):
		return fiber.StatusBadGateway
	case errors.Is(err, router.ErrNotConfigured):
		return fiber.StatusServiceUnavailable
	case azure.IsConfigurationError(err),
		router.IsClientError(err),
		settings.IsValidationError(err),
		errors.Is(err, azure.ErrNoMessages),
		errors.Is(err, page.ErrUnsupportedURL):
		return fiber.StatusBadRequest
	case history.IsNotFound(err):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error()})
}
