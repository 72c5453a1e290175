package webimport

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const excerptRunes = 280

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// Article is the readable part of a page converted to markdown.
type Article struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Excerpt   string `json:"excerpt"`
	Image     string `json:"image,omitempty"`
	SiteName  string `json:"site_name,omitempty"`
	SourceURL string `json:"source_url"`
}

// Preview is the link card shown for a resource URL.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// ExtractArticle isolates the main content of page and converts it to markdown.
func ExtractArticle(page *Page) (*Article, error) {
	parsed, err := readability.FromReader(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}

	conv := md.NewConverter(page.URL.Host, true, nil)
	conv.Use(plugin.GitHubFlavored())
	markdown, err := conv.ConvertString(parsed.Content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = cleanMarkdown(markdown)
	if markdown == "" {
		return nil, fmt.Errorf("extract article: no readable content")
	}

	a := &Article{
		Title:     strings.TrimSpace(parsed.Title),
		Content:   markdown,
		Excerpt:   Excerpt(parsed.Excerpt),
		Image:     parsed.Image,
		SiteName:  parsed.SiteName,
		SourceURL: page.URL.String(),
	}
	if a.Excerpt == "" {
		a.Excerpt = Excerpt(parsed.TextContent)
	}
	if a.Title == "" {
		a.Title = page.URL.Host
	}
	return a, nil
}

// ExtractPreview reads title, description and image from the document head,
// preferring Open Graph tags.
func ExtractPreview(page *Page) Preview {
	p := Preview{URL: page.URL.String()}
	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		p.Title = page.URL.Host
		return p
	}

	meta := map[string]string{}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var key, content string
				for _, a := range n.Attr {
					switch strings.ToLower(a.Key) {
					case "property", "name":
						key = strings.ToLower(strings.TrimSpace(a.Val))
					case "content":
						content = strings.TrimSpace(a.Val)
					}
				}
				if key != "" && content != "" {
					if _, seen := meta[key]; !seen {
						meta[key] = content
					}
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Title = firstNonEmpty(meta["og:title"], meta["twitter:title"], title, page.URL.Host)
	p.Description = Excerpt(firstNonEmpty(meta["og:description"], meta["description"], meta["twitter:description"]))
	p.SiteName = meta["og:site_name"]
	if img := firstNonEmpty(meta["og:image"], meta["twitter:image"]); img != "" {
		p.Image = resolve(page.URL, img)
	}
	return p
}

// Excerpt collapses whitespace and cuts text to a short summary on a word boundary.
func Excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)[:excerptRunes]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > excerptRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}

func cleanMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = excessiveLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Importer fetches pages and extracts articles or previews from them.
type Importer struct {
	fetcher *Fetcher
}

// NewImporter wraps a Fetcher.
func NewImporter(f *Fetcher) *Importer {
	return &Importer{fetcher: f}
}

// Article fetches rawURL and returns its readable content as markdown.
func (i *Importer) Article(ctx context.Context, rawURL string) (*Article, error) {
	page, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return ExtractArticle(page)
}

// Preview fetches rawURL and returns its link card.
func (i *Importer) Preview(ctx context.Context, rawURL string) (*Preview, error) {
	page, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	p := ExtractPreview(page)
	return &p, nil
}

// ValidateURL reports whether rawURL may be fetched.
func (i *Importer) ValidateURL(rawURL string) error {
	_, err := i.fetcher.ValidateURL(rawURL)
	return err
}
