package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devshelf/internal/llm"
	"devshelf/internal/middleware"
	"devshelf/internal/models"
	"devshelf/internal/repository"
	"devshelf/internal/validation"
)

const (
	recentTitlesInPrompt = 5
	maxHighlightsRunes   = 1000
)

var bioTones = map[string]string{
	"":             "friendly and professional",
	"professional": "concise and professional",
	"friendly":     "warm and approachable",
	"playful":      "light-hearted with a touch of humour",
}

const bioSystemPrompt = "You write short first-person bios for software developers' public profiles. " +
	"Reply with the bio text only: no quotes, no headings, no emoji, at most three sentences."

// GenerateBioInput carries the optional knobs for bio generation.
type GenerateBioInput struct {
	UserID     uint
	Tone       string
	Highlights string
}

type ProfileAIService struct {
	userRepo  repository.UserRepository
	blogRepo  repository.BlogRepository
	completer llm.Completer
}

func NewProfileAIService(userRepo repository.UserRepository, blogRepo repository.BlogRepository, completer llm.Completer) *ProfileAIService {
	return &ProfileAIService{userRepo: userRepo, blogRepo: blogRepo, completer: completer}
}

// GenerateBio drafts a bio from the caller's profile and recent writing. The result
// is not saved.
func (s *ProfileAIService) GenerateBio(ctx context.Context, in GenerateBioInput) (string, error) {
	tone, ok := bioTones[strings.ToLower(strings.TrimSpace(in.Tone))]
	if !ok {
		return "", models.NewValidationError("Tone must be one of professional, friendly or playful")
	}
	highlights := strings.TrimSpace(in.Highlights)
	if len([]rune(highlights)) > maxHighlightsRunes {
		return "", models.NewValidationError("Highlights are too long (max 1000 characters)")
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return "", err
	}
	titles, err := s.blogRepo.RecentTitles(ctx, user.ID, recentTitlesInPrompt)
	if err != nil {
		return "", err
	}

	bio, err := s.completer.Complete(ctx, bioSystemPrompt, bioPrompt(user, titles, highlights, tone))
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			middleware.Logger.ErrorContext(ctx, "bio generation requested but llm provider is not configured")
		} else {
			middleware.Logger.ErrorContext(ctx, "bio generation failed", slog.String("error", err.Error()))
		}
		return "", models.NewInternalError(err)
	}

	bio = strings.Trim(strings.TrimSpace(bio), `"`)
	if bio == "" {
		return "", models.NewInternalError(errors.New("llm returned an empty bio"))
	}
	return truncateRunes(bio, validation.MaxBioLength), nil
}

func bioPrompt(user *models.User, titles []string, highlights, tone string) string {
	var b strings.Builder
	name := user.Name
	if name == "" {
		name = user.Username
	}
	fmt.Fprintf(&b, "Write a %s bio for %s (username @%s).\n", tone, name, user.Username)
	if user.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", user.Location)
	}
	if len(user.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(user.Skills, ", "))
	}
	if len(titles) > 0 {
		b.WriteString("Recent blog posts:\n")
		for _, t := range titles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	if highlights != "" {
		fmt.Fprintf(&b, "Things they want mentioned: %s\n", highlights)
	}
	fmt.Fprintf(&b, "Keep it under %d characters.", validation.MaxBioLength)
	return b.String()
}
