package server

import (
	"devshelf/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitContact handles POST /api/contact. Signed-in senders are linked to the message.
func (s *Server) SubmitContact(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.contactService.Submit(c.UserContext(), service.ContactInput{
		UserID:  s.optionalUserID(c),
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      msg.ID,
		"message": "Thanks, we'll get back to you soon.",
	})
}
