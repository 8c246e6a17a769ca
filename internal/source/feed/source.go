// Package feed reads news sites that publish RSS or Atom feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/news"
)

const (
	dateLayout      = "2006/01/02"
	maxTags         = 5
	maxContentChars = 5000
)

// Config describes one feed.
type Config struct {
	Name      string
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Source turns feed items into articles.
type Source struct {
	cfg    Config
	parser *gofeed.Parser
	logger *zap.Logger
}

// New builds a feed Source.
func New(cfg Config, logger *zap.Logger) (*Source, error) {
	if cfg.Name == "" {
		return nil, errors.New("feed source: name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed source %q: url is required", cfg.Name)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	return &Source{cfg: cfg, parser: parser, logger: logger.Named("source").With(zap.String("source", cfg.Name))}, nil
}

// Name implements news.Source.
func (s *Source) Name() string {
	return s.cfg.Name
}

// Scrape reads the feed once; maxPages does not apply to feeds.
func (s *Source) Scrape(ctx context.Context, _ int, maxArticles int) ([]news.Article, error) {
	parsed, err := s.parser.ParseURLWithContext(s.cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.cfg.Name, err)
	}

	articles := make([]news.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if maxArticles > 0 && len(articles) >= maxArticles {
			break
		}
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		articles = append(articles, s.article(item))
	}
	s.logger.Info("feed read", zap.Int("items", len(parsed.Items)), zap.Int("articles", len(articles)))
	return articles, nil
}

func (s *Source) article(item *gofeed.Item) news.Article {
	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	var tags []string
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" && len(tags) < maxTags {
			tags = append(tags, c)
		}
	}
	return news.Article{
		URL:     strings.TrimSpace(item.Link),
		Title:   strings.TrimSpace(item.Title),
		Date:    itemDate(item),
		Tags:    tags,
		Content: truncate(plainText(body), maxContentChars),
		Source:  s.cfg.Name,
	}
}

func itemDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Local().Format(dateLayout)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Local().Format(dateLayout)
	default:
		return strings.TrimSpace(item.Published)
	}
}

// plainText strips markup from an item body.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
