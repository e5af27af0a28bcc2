package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/settings"
)

// ModelsResponse lists the deployments offered in settings.
type ModelsResponse struct {
	Models []llm.Deployment `json:"models"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleMessage runs one router envelope. The envelope is returned for
// failures too, with the status code of the underlying error.
func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req router.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(router.Response{Error: "invalid request body"})
	}
	if req.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(router.Response{Error: "type is required"})
	}

	data, err := s.router.Dispatch(c.Context(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(router.Response{Error: err.Error()})
	}
	return c.JSON(router.Response{Success: true, Data: data})
}

// handleGetSettings returns the settings without the API key. HasKey tells
// the client whether one is stored.
func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	current, err := s.router.Settings().Get(c.Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"settings": current.Redacted(),
		"hasKey":   current.HasKey(),
	})
}

// handlePutSettings saves the settings. An empty apiKey keeps the stored one
// as long as apiEndpoint is unchanged.
func (s *Server) handlePutSettings(c *fiber.Ctx) error {
	var body settings.Settings
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if _, err := s.router.Dispatch(c.Context(), router.Request{
		Type:    router.TypeSaveSettings,
		Payload: c.Body(),
	}); err != nil {
		return s.fail(c, err)
	}

	s.logger.Info("settings saved", "deployment", body.DefaultModel, "endpoint", body.APIEndpoint)
	return s.handleGetSettings(c)
}

// handleModels returns the deployment catalog.
func (s *Server) handleModels(c *fiber.Ctx) error {
	return c.JSON(ModelsResponse{Models: llm.Deployments})
}

// handleListConversations returns every stored conversation, most recent
// first, without messages.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.router.History().List(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"count":         len(convs),
		"conversations": convs,
	})
}

// handleGetConversation returns one conversation with its messages.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conv, err := s.router.History().Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(conv)
}

// handleDeleteConversation removes a conversation.
func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	if err := s.router.History().Delete(c.Context(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
