// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"devshelf/internal/categorize"
	"devshelf/internal/models"
	"devshelf/internal/webimport"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "DevShelfDemo123!"

var blogTopics = []string{"frontend", "backend", "devops", "ai-ml", "mobile", "database", "security", "design", "career"}

var topicTags = map[string][]string{
	"frontend": {"react", "css", "typescript", "vue", "accessibility"},
	"backend":  {"go", "api", "grpc", "python", "microservices"},
	"devops":   {"kubernetes", "docker", "terraform", "ci", "observability"},
	"ai-ml":    {"llm", "pytorch", "embeddings", "rag", "mlops"},
	"mobile":   {"swift", "kotlin", "flutter", "react-native"},
	"database": {"postgres", "redis", "indexing", "sql", "migrations"},
	"security": {"oauth", "jwt", "owasp", "tls"},
	"design":   {"figma", "ux", "design-systems"},
	"career":   {"interviews", "remote", "mentoring", "leadership"},
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the Seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	hash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rnd:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			panic(err)
		}
		f.hash = string(h)
	}
	return f.hash
}

// pastTime spreads created_at values over the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().UTC().Add(-back)
}

func (f *Factory) pick(values []string, n int) []string {
	if n > len(values) {
		n = len(values)
	}
	out := make([]string, 0, n)
	for _, i := range f.rnd.Perm(len(values))[:n] {
		out = append(out, values[i])
	}
	return out
}

func (f *Factory) persist(kind string, v any, id *uint) error {
	if f.opts.DryRun {
		f.nextID++
		*id = f.nextID
		log.Printf("[dry-run] create %s id=%d", kind, *id)
		return nil
	}
	return f.db.Omit("User").Create(v).Error
}

// BuildUser returns an unsaved user with a unique-looking username.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, gofakeit.Number(10, 999)))
	if len(username) > 30 {
		username = username[:30]
	}
	topic := blogTopics[f.rnd.Intn(len(blogTopics))]
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  f.passwordHash(),
		Name:      first + " " + last,
		Bio:       fmt.Sprintf("%s who writes about %s.", gofakeit.JobTitle(), topic),
		Avatar:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		GithubURL: "https://github.com/" + username,
		Location:  gofakeit.City(),
		Skills:    f.pick(topicTags[topic], 3),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.persist("user", user, &user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildBlog returns an unsaved published blog by author on a random topic.
func (f *Factory) BuildBlog(author *models.User, overrides ...func(*models.Blog)) *models.Blog {
	topic := blogTopics[f.rnd.Intn(len(blogTopics))]
	lead := gofakeit.Paragraph(1, 4, 12, " ")
	var content strings.Builder
	fmt.Fprintf(&content, "## %s\n\n%s\n\n", gofakeit.HipsterSentence(4), lead)
	for i := 0; i < 1+f.rnd.Intn(3); i++ {
		content.WriteString(gofakeit.Paragraph(1, 4, 12, " "))
		content.WriteString("\n\n")
	}
	fmt.Fprintf(&content, "```\n%s\n```\n", gofakeit.HackerPhrase())

	created := f.pastTime()
	blog := &models.Blog{
		UserID:     author.ID,
		Title:      strings.TrimSuffix(gofakeit.Sentence(6), "."),
		Content:    content.String(),
		Excerpt:    webimport.Excerpt(lead),
		CoverImage: fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", gofakeit.UUID()),
		Tags:       f.pick(topicTags[topic], 1+f.rnd.Intn(3)),
		Topic:      topic,
		Published:  f.rnd.Float32() >= f.opts.DraftRatio,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	if blog.Published {
		blog.PublishedAt = &created
	}
	for _, override := range overrides {
		override(blog)
	}
	return blog
}

// CreateBlog constructs and persists a sample blog.
func (f *Factory) CreateBlog(author *models.User, overrides ...func(*models.Blog)) (*models.Blog, error) {
	blog := f.BuildBlog(author, overrides...)
	if err := f.persist("blog", blog, &blog.ID); err != nil {
		return nil, err
	}
	return blog, nil
}

// BuildResource returns an unsaved resource whose category is derived from
// its text the same way user submissions are categorized.
func (f *Factory) BuildResource(submitter *models.User, overrides ...func(*models.Resource)) *models.Resource {
	topic := blogTopics[f.rnd.Intn(len(blogTopics))]
	tags := f.pick(topicTags[topic], 2)
	title := fmt.Sprintf("%s%s %s guide", strings.ToUpper(tags[0][:1]), tags[0][1:], gofakeit.BuzzWord())
	description := fmt.Sprintf("A practical %s resource covering %s.", topic, strings.Join(tags, " and "))

	res := &models.Resource{
		UserID:      submitter.ID,
		Title:       title,
		URL:         fmt.Sprintf("https://%s/%s", gofakeit.DomainName(), gofakeit.UUID()),
		Description: description,
		Tags:        tags,
		Image:       fmt.Sprintf("https://picsum.photos/seed/res-%s/600/400", gofakeit.UUID()),
	}
	res.CreatedAt = f.pastTime()
	res.UpdatedAt = res.CreatedAt
	res.Category = categorize.Categorize(title, description, strings.Join(tags, " ")).Category
	if res.Category == categorize.Other {
		res.Category = topic
	}
	for _, override := range overrides {
		override(res)
	}
	return res
}

// CreateResource constructs and persists a sample resource.
func (f *Factory) CreateResource(submitter *models.User, overrides ...func(*models.Resource)) (*models.Resource, error) {
	res := f.BuildResource(submitter, overrides...)
	if err := f.persist("resource", res, &res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateComment persists a comment on blog, replying to parent when set.
func (f *Factory) CreateComment(author *models.User, blog *models.Blog, parent *models.Comment) (*models.Comment, error) {
	c := &models.Comment{
		BlogID:  blog.ID,
		UserID:  author.ID,
		Content: gofakeit.Sentence(8 + f.rnd.Intn(12)),
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := f.persist("comment", c, &c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateFollow persists follower -> followee.
func (f *Factory) CreateFollow(follower, followee *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: followee.ID}).Error
}
