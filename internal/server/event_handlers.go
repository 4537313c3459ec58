package server

import (
	"time"

	"timeout/internal/middleware"
	"timeout/internal/models"
	"timeout/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListEvents handles GET /api/events
// @Summary List events
// @Description The caller's events overlapping [from, to). Bounds accept RFC 3339 or YYYY-MM-DD.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {array} models.Event
// @Failure 400 {object} models.ErrorResponse
// @Router /events [get]
func (s *Server) ListEvents(c *fiber.Ctx) error {
	loc := s.events.Location()
	from, err := parseTimeQuery(c, "from", loc)
	if err != nil {
		return nil
	}
	to, err := parseTimeQuery(c, "to", loc)
	if err != nil {
		return nil
	}

	events, err := s.events.List(c.UserContext(), middleware.UserID(c), from, to)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(events)
}

// CreateEvent handles POST /api/events
// @Summary Create event
// @Description Overlapping events are rejected with 409 unless allow_conflict is set
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.EventInput true "Event"
// @Success 201 {object} models.Event
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /events [post]
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var req service.EventInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	ev, err := s.events.Create(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ev)
}

// GetEvent handles GET /api/events/:id
// @Summary Get event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} models.Event
// @Failure 404 {object} models.ErrorResponse
// @Router /events/{id} [get]
func (s *Server) GetEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ev, err := s.events.Get(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(ev)
}

// UpdateEvent handles PUT /api/events/:id
// @Summary Update event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body service.EventInput true "Event"
// @Success 200 {object} models.Event
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /events/{id} [put]
func (s *Server) UpdateEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.EventInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	ev, err := s.events.Update(c.UserContext(), middleware.UserID(c), id, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(ev)
}

// DeleteEvent handles DELETE /api/events/:id
// @Summary Delete event
// @Description Removes the mirror post and detaches linked posts and notes
// @Tags events
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /events/{id} [delete]
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.events.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCalendar handles GET /api/calendar
// @Summary Month grid
// @Description Monday-first grid with recurring events expanded. Defaults to the current month.
// @Tags calendar
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year"
// @Param month query int false "Month (out-of-range values roll over)"
// @Success 200 {object} scheduler.MonthGrid
// @Router /calendar [get]
func (s *Server) GetCalendar(c *fiber.Ctx) error {
	now := time.Now().In(s.events.Location())
	year := c.QueryInt("year", now.Year())
	month := c.QueryInt("month", int(now.Month()))

	grid, err := s.events.MonthGrid(c.UserContext(), middleware.UserID(c), year, month)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(grid)
}

// ExportCalendar handles GET /api/calendar.ics
// @Summary Export calendar
// @Tags calendar
// @Produce text/calendar
// @Security BearerAuth
// @Success 200 {string} string "iCalendar document"
// @Router /calendar.ics [get]
func (s *Server) ExportCalendar(c *fiber.Ctx) error {
	doc, err := s.events.ExportICS(c.UserContext(), middleware.UserID(c), c.Hostname())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="timeout.ics"`)
	return c.SendString(doc)
}

// ListDeadlines handles GET /api/deadlines
// @Summary Active deadlines
// @Tags deadlines
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.DeadlineList
// @Router /deadlines [get]
func (s *Server) ListDeadlines(c *fiber.Ctx) error {
	list, err := s.deadlines.Active(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(list)
}

// CompleteDeadline handles POST /api/deadlines/:id/complete
// @Summary Mark a deadline complete
// @Tags deadlines
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} object{completed=bool,event=models.Event}
// @Router /deadlines/{id}/complete [post]
func (s *Server) CompleteDeadline(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ev, err := s.deadlines.MarkComplete(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	// Repeats and foreign ids answer 200 with completed=false.
	return c.JSON(fiber.Map{"completed": ev != nil, "event": ev})
}

// GetStatistics handles GET /api/statistics
// @Summary Calendar statistics
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Statistics
// @Router /statistics [get]
func (s *Server) GetStatistics(c *fiber.Ctx) error {
	stats, err := s.stats.Summary(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}
