package server

import (
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me. Unlike the public profile it carries the email.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user, err := s.userService.GetUserByID(ctx, currentUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	profile, err := s.userService.GetProfile(ctx, user.Username, 0)
	if err != nil {
		return s.respondError(c, err)
	}
	profile.User = *user
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me. Absent fields are left unchanged.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Name      *string   `json:"name"`
		Bio       *string   `json:"bio"`
		Avatar    *string   `json:"avatar"`
		Website   *string   `json:"website"`
		GithubURL *string   `json:"github_url"`
		Location  *string   `json:"location"`
		Skills    *[]string `json:"skills"`
	}
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:    currentUserID(c),
		Name:      req.Name,
		Bio:       req.Bio,
		Avatar:    req.Avatar,
		Website:   req.Website,
		GithubURL: req.GithubURL,
		Location:  req.Location,
		Skills:    req.Skills,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:username
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), c.Params("username"), s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

// GetUserBlogs handles GET /api/users/:id/blogs. Authors also see their drafts.
func (s *Server) GetUserBlogs(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	blogs, err := s.blogService.ListBlogs(c.UserContext(), service.ListBlogsInput{
		Filter:   repository.BlogFilter{AuthorID: userID, Sort: repository.BlogSortLatest},
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(blogs)
}

// GetUserResources handles GET /api/users/:id/resources
func (s *Server) GetUserResources(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	resources, err := s.resourceService.ListResources(c.UserContext(), service.ListResourcesInput{
		Filter:   repository.ResourceFilter{UserID: userID},
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(resources)
}

// GetMySavedBlogs handles GET /api/users/me/saved-blogs
func (s *Server) GetMySavedBlogs(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	blogs, err := s.blogService.ListSaved(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(blogs)
}

// GetMyBookmarks handles GET /api/users/me/bookmarks
func (s *Server) GetMyBookmarks(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	resources, err := s.resourceService.ListBookmarked(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(resources)
}

// GenerateBio handles POST /api/users/me/bio/generate. The bio is returned, not saved.
func (s *Server) GenerateBio(c *fiber.Ctx) error {
	var req struct {
		Tone       string `json:"tone"`
		Highlights string `json:"highlights"`
	}
	if len(c.Body()) > 0 {
		if err := s.parseBody(c, &req); err != nil {
			return nil
		}
	}

	bio, err := s.profileAIService.GenerateBio(c.UserContext(), service.GenerateBioInput{
		UserID:     currentUserID(c),
		Tone:       req.Tone,
		Highlights: req.Highlights,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"bio": bio})
}

// FollowUser handles POST /api/users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Follow(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// UnfollowUser handles DELETE /api/users/:id/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.followService.Unfollow(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res)
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	users, err := s.followService.Followers(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(publicUsers(users))
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)
	users, err := s.followService.Following(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(publicUsers(users))
}

func publicUsers(users []models.User) []models.User {
	out := make([]models.User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return out
}
