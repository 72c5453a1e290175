package server

import (
	"devshelf/internal/repository"
	"devshelf/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetResources handles GET /api/resources?q=&category=&tag=&sort=&limit=&offset=
func (s *Server) GetResources(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	resources, err := s.resourceService.ListResources(c.UserContext(), service.ListResourcesInput{
		Filter: repository.ResourceFilter{
			Query:    c.Query("q"),
			Category: c.Query("category"),
			Tag:      c.Query("tag"),
			Sort:     c.Query("sort"),
		},
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(resources)
}

// GetResourceCategories handles GET /api/resources/categories
func (s *Server) GetResourceCategories(c *fiber.Ctx) error {
	counts, err := s.resourceService.Categories(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(counts)
}

// GetResource handles GET /api/resources/:id
func (s *Server) GetResource(c *fiber.Ctx) error {
	resourceID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	resource, err := s.resourceService.GetResource(c.UserContext(), resourceID, s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(resource)
}

type resourceRequest struct {
	Title       *string   `json:"title"`
	URL         *string   `json:"url"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
	Category    *string   `json:"category"`
	Image       *string   `json:"image"`
}

// CreateResource handles POST /api/resources
func (s *Server) CreateResource(c *fiber.Ctx) error {
	var req resourceRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	resource, err := s.resourceService.CreateResource(c.UserContext(), service.CreateResourceInput{
		UserID:      currentUserID(c),
		Title:       deref(req.Title),
		URL:         deref(req.URL),
		Description: deref(req.Description),
		Tags:        deref(req.Tags),
		Category:    deref(req.Category),
		Image:       deref(req.Image),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resource)
}

// UpdateResource handles PUT /api/resources/:id
func (s *Server) UpdateResource(c *fiber.Ctx) error {
	resourceID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req resourceRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	resource, err := s.resourceService.UpdateResource(c.UserContext(), service.UpdateResourceInput{
		UserID:      currentUserID(c),
		ResourceID:  resourceID,
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		Tags:        req.Tags,
		Category:    req.Category,
		Image:       req.Image,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(resource)
}

// DeleteResource handles DELETE /api/resources/:id
func (s *Server) DeleteResource(c *fiber.Ctx) error {
	resourceID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.resourceService.DeleteResource(c.UserContext(), currentUserID(c), resourceID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Resource deleted"})
}

// LikeResource handles POST (toggle), PUT (like) and DELETE (unlike) on /api/resources/:id/like.
func (s *Server) LikeResource(c *fiber.Ctx) error {
	resourceID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.resourceService.SetLiked(c.UserContext(), currentUserID(c), resourceID, toggleIntent(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// BookmarkResource handles POST (toggle), PUT (bookmark) and DELETE (remove) on /api/resources/:id/bookmark.
func (s *Server) BookmarkResource(c *fiber.Ctx) error {
	resourceID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.resourceService.SetBookmarked(c.UserContext(), currentUserID(c), resourceID, toggleIntent(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// PreviewResource handles POST /api/resources/preview with {"url": ...}.
func (s *Server) PreviewResource(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	preview, err := s.resourceService.Preview(c.UserContext(), req.URL)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(preview)
}

// Categorize handles POST /api/categorize and previews the category of a draft.
func (s *Server) Categorize(c *fiber.Ctx) error {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	return c.JSON(s.resourceService.Classify(service.CategorizeInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}))
}
