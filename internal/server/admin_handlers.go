package server

import (
	"log/slog"

	"devshelf/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// BanUser handles POST /api/admin/users/:id/ban
func (s *Server) BanUser(c *fiber.Ctx) error {
	return s.setBanned(c, true)
}

// UnbanUser handles POST /api/admin/users/:id/unban
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	return s.setBanned(c, false)
}

func (s *Server) setBanned(c *fiber.Ctx, banned bool) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.SetBanned(c.UserContext(), targetID, banned)
	if err != nil {
		return s.respondError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user ban state changed",
		slog.Uint64("target_user_id", uint64(targetID)),
		slog.Bool("banned", banned),
	)
	return c.JSON(user)
}

// GetContactMessages handles GET /api/admin/contact-messages
func (s *Server) GetContactMessages(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	messages, err := s.contactService.List(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(messages)
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
