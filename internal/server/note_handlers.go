package server

import (
	"timeout/internal/middleware"
	"timeout/internal/models"
	"timeout/internal/repository"
	"timeout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListNotes handles GET /api/notes
// @Summary List notes
// @Description The caller's notes, pinned first then most recently updated
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category filter"
// @Param event_id query int false "Linked event filter"
// @Param q query string false "Search title and content"
// @Success 200 {array} models.Note
// @Failure 400 {object} models.ErrorResponse
// @Router /notes [get]
func (s *Server) ListNotes(c *fiber.Ctx) error {
	eventID := c.QueryInt("event_id", 0)
	if eventID < 0 {
		eventID = 0
	}
	filter := repository.NoteFilter{
		Category: models.NoteCategory(c.Query("category")),
		EventID:  uint(eventID),
		Query:    c.Query("q"),
	}

	notes, err := s.notes.List(c.UserContext(), middleware.UserID(c), filter)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(notes)
}

// CreateNote handles POST /api/notes
// @Summary Create note
// @Tags notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.NoteInput true "Note"
// @Success 201 {object} models.Note
// @Failure 400 {object} models.ErrorResponse
// @Router /notes [post]
func (s *Server) CreateNote(c *fiber.Ctx) error {
	var req service.NoteInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	note, err := s.notes.Create(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

// UpdateNote handles PUT /api/notes/:id
// @Summary Update note
// @Tags notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Param request body service.NoteInput true "Note"
// @Success 200 {object} models.Note
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notes/{id} [put]
func (s *Server) UpdateNote(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.NoteInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	note, err := s.notes.Update(c.UserContext(), middleware.UserID(c), id, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(note)
}

// DeleteNote handles DELETE /api/notes/:id
// @Summary Delete note
// @Tags notes
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notes/{id} [delete]
func (s *Server) DeleteNote(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notes.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TogglePin handles POST /api/notes/:id/pin
// @Summary Pin or unpin a note
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 200 {object} object{pinned=bool}
// @Failure 404 {object} models.ErrorResponse
// @Router /notes/{id}/pin [post]
func (s *Server) TogglePin(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	pinned, err := s.notes.TogglePin(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"pinned": pinned})
}

// ShareNote handles POST /api/notes/:id/share
// @Summary Share a note as a public post
// @Tags notes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Note ID"
// @Success 201 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /notes/{id}/share [post]
func (s *Server) ShareNote(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.notes.Share(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}
