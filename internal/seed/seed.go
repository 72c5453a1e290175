package seed

import (
	"context"
	"fmt"
	"log"

	"devshelf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options configures the seeder.
type Options struct {
	NumUsers     int
	NumBlogs     int
	NumResources int
	// Fraction of blogs left as drafts, 0 to 1.
	DraftRatio float32
	MaxDays    int
	BatchSize  int
	RandomSeed int64
	SkipBcrypt bool
	DryRun     bool
	Clean      bool
}

// DefaultOptions is a small but fully connected demo dataset.
func DefaultOptions() Options {
	return Options{
		NumUsers:     25,
		NumBlogs:     80,
		NumResources: 60,
		DraftRatio:   0.1,
		MaxDays:      90,
		BatchSize:    100,
	}
}

// Summary counts what a seeding run created.
type Summary struct {
	Users     int
	Follows   int
	Blogs     int
	Comments  int
	Votes     int
	Saves     int
	Resources int
	Likes     int
	Bookmarks int
}

// Seeder populates a database with demo users, blogs, resources and the
// interactions between them.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Seed creates the configured number of users, blogs and resources.
func (s *Seeder) Seed(ctx context.Context) (*Summary, error) {
	log.Printf("seeding %d users, %d blogs, %d resources", s.opts.NumUsers, s.opts.NumBlogs, s.opts.NumResources)

	if s.opts.Clean && !s.opts.DryRun {
		if err := Clean(s.db.WithContext(ctx)); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}

	sum := &Summary{}
	users, err := s.seedUsers(sum)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	if len(users) == 0 {
		return sum, nil
	}
	if err := s.seedFollows(users, sum); err != nil {
		return nil, fmt.Errorf("seed follows: %w", err)
	}
	blogs, err := s.seedBlogs(users, sum)
	if err != nil {
		return nil, fmt.Errorf("seed blogs: %w", err)
	}
	if err := s.seedBlogActivity(users, blogs, sum); err != nil {
		return nil, fmt.Errorf("seed blog activity: %w", err)
	}
	resources, err := s.seedResources(users, sum)
	if err != nil {
		return nil, fmt.Errorf("seed resources: %w", err)
	}
	if err := s.seedResourceActivity(users, resources, sum); err != nil {
		return nil, fmt.Errorf("seed resource activity: %w", err)
	}

	log.Printf("seeding complete: %+v", *sum)
	return sum, nil
}

func (s *Seeder) seedUsers(sum *Summary) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers)
	taken := make(map[string]bool, s.opts.NumUsers)
	for len(users) < s.opts.NumUsers {
		u := s.factory.BuildUser()
		if taken[u.Username] {
			continue
		}
		taken[u.Username] = true
		users = append(users, u)
	}
	if err := s.insert(users); err != nil {
		return nil, err
	}
	sum.Users = len(users)
	return users, nil
}

// seedFollows gives every user a handful of followees.
func (s *Seeder) seedFollows(users []*models.User, sum *Summary) error {
	var follows []*models.Follow
	for i, u := range users {
		for _, j := range s.factory.rnd.Perm(len(users))[:min(len(users), 5)] {
			if j == i {
				continue
			}
			follows = append(follows, &models.Follow{FollowerID: u.ID, FollowingID: users[j].ID})
		}
	}
	if err := s.insert(follows); err != nil {
		return err
	}
	sum.Follows = len(follows)
	return nil
}

func (s *Seeder) seedBlogs(users []*models.User, sum *Summary) ([]*models.Blog, error) {
	blogs := make([]*models.Blog, 0, s.opts.NumBlogs)
	for i := 0; i < s.opts.NumBlogs; i++ {
		author := users[s.factory.rnd.Intn(len(users))]
		blogs = append(blogs, s.factory.BuildBlog(author))
	}
	if err := s.insert(blogs); err != nil {
		return nil, err
	}
	sum.Blogs = len(blogs)
	return blogs, nil
}

// seedBlogActivity adds comment threads, votes and saves to published blogs.
func (s *Seeder) seedBlogActivity(users []*models.User, blogs []*models.Blog, sum *Summary) error {
	rnd := s.factory.rnd
	var votes []*models.BlogVote
	var saves []*models.BlogSave
	for _, b := range blogs {
		if !b.Published {
			continue
		}
		for n := rnd.Intn(4); n > 0; n-- {
			root, err := s.factory.CreateComment(users[rnd.Intn(len(users))], b, nil)
			if err != nil {
				return err
			}
			sum.Comments++
			if rnd.Intn(2) == 0 {
				if _, err := s.factory.CreateComment(users[rnd.Intn(len(users))], b, root); err != nil {
					return err
				}
				sum.Comments++
			}
		}
		for _, i := range rnd.Perm(len(users))[:rnd.Intn(len(users)+1)] {
			voter := users[i]
			if voter.ID == b.UserID {
				continue
			}
			vote := models.VoteUp
			if rnd.Intn(5) == 0 {
				vote = models.VoteDown
			}
			votes = append(votes, &models.BlogVote{UserID: voter.ID, BlogID: b.ID, Type: vote})
			if rnd.Intn(3) == 0 {
				saves = append(saves, &models.BlogSave{UserID: voter.ID, BlogID: b.ID})
			}
		}
	}
	if err := s.insert(votes); err != nil {
		return err
	}
	if err := s.insert(saves); err != nil {
		return err
	}
	sum.Votes, sum.Saves = len(votes), len(saves)
	return nil
}

func (s *Seeder) seedResources(users []*models.User, sum *Summary) ([]*models.Resource, error) {
	resources := make([]*models.Resource, 0, s.opts.NumResources)
	seen := make(map[string]bool, s.opts.NumResources)
	for len(resources) < s.opts.NumResources {
		r := s.factory.BuildResource(users[s.factory.rnd.Intn(len(users))])
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		resources = append(resources, r)
	}
	if err := s.insert(resources); err != nil {
		return nil, err
	}
	sum.Resources = len(resources)
	return resources, nil
}

func (s *Seeder) seedResourceActivity(users []*models.User, resources []*models.Resource, sum *Summary) error {
	rnd := s.factory.rnd
	var likes []*models.ResourceLike
	var bookmarks []*models.ResourceBookmark
	for _, r := range resources {
		for _, i := range rnd.Perm(len(users))[:rnd.Intn(len(users)+1)] {
			likes = append(likes, &models.ResourceLike{UserID: users[i].ID, ResourceID: r.ID})
			if rnd.Intn(2) == 0 {
				bookmarks = append(bookmarks, &models.ResourceBookmark{UserID: users[i].ID, ResourceID: r.ID})
			}
		}
	}
	if err := s.insert(likes); err != nil {
		return err
	}
	if err := s.insert(bookmarks); err != nil {
		return err
	}
	sum.Likes, sum.Bookmarks = len(likes), len(bookmarks)
	return nil
}

// insertRows batch-creates rows, skipping duplicates. In dry-run mode it only
// assigns synthetic ids.
func insertRows[T any](s *Seeder, rows []*T, setID func(*T, uint)) error {
	if len(rows) == 0 {
		return nil
	}
	if s.opts.DryRun {
		for _, r := range rows {
			s.factory.nextID++
			setID(r, s.factory.nextID)
		}
		log.Printf("[dry-run] insert %d %T rows", len(rows), rows[0])
		return nil
	}
	return s.db.Omit("User").Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, s.opts.BatchSize).Error
}

func (s *Seeder) insert(rows any) error {
	switch v := rows.(type) {
	case []*models.User:
		return insertRows(s, v, func(u *models.User, id uint) { u.ID = id })
	case []*models.Follow:
		return insertRows(s, v, func(f *models.Follow, id uint) { f.ID = id })
	case []*models.Blog:
		return insertRows(s, v, func(b *models.Blog, id uint) { b.ID = id })
	case []*models.BlogVote:
		return insertRows(s, v, func(b *models.BlogVote, id uint) { b.ID = id })
	case []*models.BlogSave:
		return insertRows(s, v, func(b *models.BlogSave, id uint) { b.ID = id })
	case []*models.Resource:
		return insertRows(s, v, func(r *models.Resource, id uint) { r.ID = id })
	case []*models.ResourceLike:
		return insertRows(s, v, func(r *models.ResourceLike, id uint) { r.ID = id })
	case []*models.ResourceBookmark:
		return insertRows(s, v, func(r *models.ResourceBookmark, id uint) { r.ID = id })
	default:
		return fmt.Errorf("seed: unsupported row type %T", rows)
	}
}

// Clean removes all seeded content, leaving the schema in place.
func Clean(db *gorm.DB) error {
	log.Println("clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE notifications, comment_likes, comments, blog_votes, blog_saves, blogs,
			resource_likes, resource_bookmarks, resources, follows, password_reset_tokens, contact_messages, users
			RESTART IDENTITY CASCADE`).Error
	}
	for _, m := range []any{
		&models.Notification{}, &models.CommentLike{}, &models.Comment{}, &models.BlogVote{}, &models.BlogSave{},
		&models.Blog{}, &models.ResourceLike{}, &models.ResourceBookmark{}, &models.Resource{},
		&models.Follow{}, &models.PasswordResetToken{}, &models.ContactMessage{}, &models.User{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}
