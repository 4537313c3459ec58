package server

import (
	"timeout/internal/middleware"
	"timeout/internal/models"
	"timeout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversationRequest names the other participant of a direct conversation.
type CreateConversationRequest struct {
	UserID uint `json:"user_id"`
}

// GetConversations handles GET /api/conversations
// @Summary Inbox
// @Description The caller's conversations, most recent activity first, with unread counts
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Conversation
// @Router /conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.messages.Inbox(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(convs)
}

// CreateConversation handles POST /api/conversations
// @Summary Start or reopen a conversation
// @Description Returns the existing conversation with the user when there is one
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body server.CreateConversationRequest true "Other participant"
// @Success 200 {object} models.Conversation
// @Success 201 {object} models.Conversation
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	var req CreateConversationRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 {
		return models.RespondWithAppError(c, models.NewValidationError("user_id is required"))
	}

	conv, created, err := s.messages.StartConversation(c.UserContext(), middleware.UserID(c), req.UserID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(conv)
}

// GetConversation handles GET /api/conversations/:id
// @Summary Open a conversation
// @Description Returns the messages oldest first and marks the caller's unread ones read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} service.ConversationView
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.messages.Conversation(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// SendMessage handles POST /api/conversations/:id/messages
// @Summary Send message
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param request body service.MessageInput true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.MessageInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	msg, err := s.messages.SendMessage(c.UserContext(), middleware.UserID(c), id, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// PollMessages handles GET /api/conversations/:id/poll
// @Summary Poll for new messages
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param after query int false "Last message ID the client has"
// @Success 200 {array} models.Message
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/poll [get]
func (s *Server) PollMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	after := c.QueryInt("after", 0)
	if after < 0 {
		after = 0
	}

	msgs, err := s.messages.Poll(c.UserContext(), middleware.UserID(c), id, uint(after))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(msgs)
}
