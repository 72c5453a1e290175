package server

import (
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetBlogs handles GET /api/blogs?q=&tag=&topic=&author=&sort=&limit=&offset=
func (s *Server) GetBlogs(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	authorID := c.QueryInt("author", 0)
	if authorID < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid author"))
	}

	blogs, err := s.blogService.ListBlogs(c.UserContext(), service.ListBlogsInput{
		Filter: repository.BlogFilter{
			Query:    c.Query("q"),
			Tag:      c.Query("tag"),
			Topic:    c.Query("topic"),
			AuthorID: uint(authorID),
			Sort:     c.Query("sort"),
		},
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(blogs)
}

// GetBlog handles GET /api/blogs/:id
func (s *Server) GetBlog(c *fiber.Ctx) error {
	blogID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	blog, err := s.blogService.GetBlog(c.UserContext(), blogID, s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(blog)
}

// GetBlogByShareCode handles GET /api/blogs/s/:code
func (s *Server) GetBlogByShareCode(c *fiber.Ctx) error {
	blog, err := s.blogService.GetByShareCode(c.UserContext(), c.Params("code"), s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(blog)
}

type blogRequest struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags"`
	CoverImage *string   `json:"cover_image"`
	Topic      *string   `json:"topic"`
	Published  *bool     `json:"published"`
	SourceURL  string    `json:"source_url"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// CreateBlog handles POST /api/blogs. Blogs are published unless the body says otherwise.
func (s *Server) CreateBlog(c *fiber.Ctx) error {
	var req blogRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	published := true
	if req.Published != nil {
		published = *req.Published
	}

	blog, err := s.blogService.CreateBlog(c.UserContext(), service.CreateBlogInput{
		UserID:     currentUserID(c),
		Title:      deref(req.Title),
		Content:    deref(req.Content),
		Tags:       deref(req.Tags),
		CoverImage: deref(req.CoverImage),
		Topic:      deref(req.Topic),
		Published:  published,
		SourceURL:  req.SourceURL,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(blog)
}

// UpdateBlog handles PUT /api/blogs/:id
func (s *Server) UpdateBlog(c *fiber.Ctx) error {
	blogID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req blogRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	blog, err := s.blogService.UpdateBlog(c.UserContext(), service.UpdateBlogInput{
		UserID:     currentUserID(c),
		BlogID:     blogID,
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		CoverImage: req.CoverImage,
		Topic:      req.Topic,
		Published:  req.Published,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(blog)
}

// DeleteBlog handles DELETE /api/blogs/:id
func (s *Server) DeleteBlog(c *fiber.Ctx) error {
	blogID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.blogService.DeleteBlog(c.UserContext(), currentUserID(c), blogID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Blog deleted"})
}

// VoteBlog handles POST /api/blogs/:id/vote with {"type": "up"|"down"}.
func (s *Server) VoteBlog(c *fiber.Ctx) error {
	blogID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Type models.VoteType `json:"type"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	tally, err := s.blogService.Vote(c.UserContext(), currentUserID(c), blogID, req.Type)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(tally)
}

// SaveBlog handles POST (toggle), PUT (save) and DELETE (unsave) on /api/blogs/:id/save.
func (s *Server) SaveBlog(c *fiber.Ctx) error {
	blogID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.blogService.SetSaved(c.UserContext(), currentUserID(c), blogID, toggleIntent(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// ImportBlog handles POST /api/blogs/import and returns an unsaved draft.
func (s *Server) ImportBlog(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}
	draft, err := s.blogService.ImportDraft(c.UserContext(), req.URL)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(draft)
}
