// Package source builds the configured site adapters and collects their
// articles for a run.
package source

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/source/feed"
	"github.com/JakeFAU/newsdesk/internal/source/html"
)

// Source kinds.
const (
	KindHTML = "html"
	KindFeed = "feed"
)

// Config describes one site in the sources file.
type Config struct {
	Name     string `yaml:"name" validate:"required"`
	Kind     string `yaml:"kind" validate:"required,oneof=html feed"`
	Disabled bool   `yaml:"disabled"`

	// html
	ListURLs        []string `yaml:"list_urls" validate:"required_if=Kind html,dive,url"`
	PageURL         string   `yaml:"page_url"`
	LinkPattern     string   `yaml:"link_pattern" validate:"required_if=Kind html"`
	MinTitleLength  int      `yaml:"min_title_length" validate:"gte=0"`
	TitleSelector   string   `yaml:"title_selector"`
	DateSelector    string   `yaml:"date_selector"`
	TagSelector     string   `yaml:"tag_selector"`
	MaxTags         int      `yaml:"max_tags" validate:"gte=0"`
	ContentSelector string   `yaml:"content_selector"`
	MinParagraph    int      `yaml:"min_paragraph" validate:"gte=0"`
	ContentCutoff   string   `yaml:"content_cutoff"`
	RespectRobots   bool     `yaml:"respect_robots"`

	// feed
	FeedURL string `yaml:"feed_url" validate:"required_if=Kind feed,omitempty,url"`
}

// File is the on-disk sources configuration.
type File struct {
	Sources []Config `yaml:"sources" validate:"required,min=1,dive"`
}

// Options are shared by every built source.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Pacer     html.Waiter
	Logger    *zap.Logger
}

// LoadFile reads and validates a YAML sources file.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}
	if err := Validate(f.Sources); err != nil {
		return nil, err
	}
	return f.Sources, nil
}

// Validate checks source configs field by field.
func Validate(cfgs []Config) error {
	if err := validator.New().Struct(File{Sources: cfgs}); err != nil {
		return fmt.Errorf("validate sources: %w", err)
	}
	return nil
}

// Build turns configs into sources, skipping disabled ones.
func Build(cfgs []Config, opts Options) ([]news.Source, error) {
	var out []news.Source
	seen := make(map[string]struct{}, len(cfgs))
	for _, c := range cfgs {
		if c.Disabled {
			continue
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("duplicate source %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		src, err := build(c, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func build(c Config, opts Options) (news.Source, error) {
	switch c.Kind {
	case KindFeed:
		return feed.New(feed.Config{
			Name:      c.Name,
			URL:       c.FeedURL,
			UserAgent: opts.UserAgent,
			Timeout:   opts.Timeout,
		}, opts.Logger)
	case KindHTML:
		link, err := regexp.Compile(c.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("source %q: link pattern: %w", c.Name, err)
		}
		var cutoff *regexp.Regexp
		if c.ContentCutoff != "" {
			if cutoff, err = regexp.Compile(c.ContentCutoff); err != nil {
				return nil, fmt.Errorf("source %q: content cutoff: %w", c.Name, err)
			}
		}
		return html.New(html.Config{
			Name:            c.Name,
			ListURLs:        c.ListURLs,
			PageURL:         c.PageURL,
			LinkPattern:     link,
			MinTitleLength:  c.MinTitleLength,
			TitleSelector:   c.TitleSelector,
			DateSelector:    c.DateSelector,
			TagSelector:     c.TagSelector,
			MaxTags:         c.MaxTags,
			ContentSelector: c.ContentSelector,
			MinParagraph:    c.MinParagraph,
			ContentCutoff:   cutoff,
			UserAgent:       opts.UserAgent,
			Timeout:         opts.Timeout,
			RespectRobots:   c.RespectRobots,
		}, opts.Pacer, opts.Logger)
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", c.Name, c.Kind)
	}
}

// Defaults returns the built-in site list.
func Defaults() []Config {
	return []Config{
		{
			Name: "PR TIMES",
			Kind: KindHTML,
			ListURLs: []string{
				"https://prtimes.jp/topics/keywords/生成AI",
				"https://prtimes.jp/topics/keywords/DX",
				"https://prtimes.jp/topics/keywords/業務効率化",
				"https://prtimes.jp/topics/keywords/AI導入",
			},
			LinkPattern:     `/main/html/rd/p/`,
			MinTitleLength:  15,
			TitleSelector:   "h1",
			DateSelector:    "time",
			TagSelector:     "[class*=company] a, [class*=tag] a",
			MaxTags:         4,
			ContentSelector: "[class*=content] p, [class*=body] p",
			MinParagraph:    20,
			ContentCutoff:   `(お問い合わせ|プレスリリース詳細|関連URL|プロフィール)`,
		},
		{
			Name:            "AINOW",
			Kind:            KindHTML,
			ListURLs:        []string{"https://ainow.ai/"},
			PageURL:         "https://ainow.ai/page/%d/",
			LinkPattern:     `^https://ainow\.ai/\d+/`,
			MinTitleLength:  11,
			TitleSelector:   "h1",
			DateSelector:    "[class*=date], time",
			TagSelector:     "[class*=tag] a",
			ContentSelector: "[class*=entry-content] p, article p",
		},
		{
			Name:            "Ledge.ai",
			Kind:            KindHTML,
			ListURLs:        []string{"https://ledge.ai/categories/business/"},
			PageURL:         "https://ledge.ai/categories/business/page/%d/",
			LinkPattern:     `^https://ledge\.ai/articles/`,
			MinTitleLength:  10,
			TitleSelector:   "h1",
			DateSelector:    "time",
			TagSelector:     "[class*=tag] a",
			ContentSelector: "article p",
		},
		{
			Name:    "ITmedia AI+",
			Kind:    KindFeed,
			FeedURL: "https://rss.itmedia.co.jp/rss/2.0/aiplus.xml",
		},
		{
			Name:            "ZDNet Japan",
			Kind:            KindHTML,
			ListURLs:        []string{"https://japan.zdnet.com/ai/"},
			LinkPattern:     `^https://japan\.zdnet\.com/article/\d+/\d+/`,
			MinTitleLength:  10,
			TitleSelector:   "h1",
			DateSelector:    "[class*=date], time",
			ContentSelector: "[class*=article-body] p, article p",
		},
	}
}
