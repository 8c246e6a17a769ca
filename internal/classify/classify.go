// Package classify decides which articles are on-topic and which category
// sheets they belong to, using curated keyword sets in priority order.
package classify

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/newsdesk/internal/news"
)

// Text prefix lengths, in characters, inspected for each decision.
const (
	filterContentPrefix     = 1000
	categorizeContentPrefix = 500
)

// FallbackCategory receives articles that match no keyword set.
const FallbackCategory = "その他"

// Category is a named keyword set.
type Category struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

// File is the on-disk keyword configuration.
type File struct {
	Fallback   string     `yaml:"fallback"`
	Categories []Category `yaml:"categories" validate:"required,min=1,dive"`
}

// DefaultCategories lists the built-in keyword sets in priority order.
func DefaultCategories() []Category {
	return []Category{
		{Name: "企業効率化", Keywords: []string{
			"業務効率化", "業務改善", "生産性向上", "コスト削減", "働き方改革", "自動化", "効率化", "省力化", "時短",
		}},
		{Name: "DX・デジタル化", Keywords: []string{
			"DX", "デジタルトランスフォーメーション", "デジタル化", "デジタル変革",
		}},
		{Name: "企業導入", Keywords: []string{
			"企業導入", "企業事例", "国内企業", "導入事例", "活用事例", "ビジネス活用",
		}},
		{Name: "AI・テクノロジー", Keywords: []string{
			"AI", "人工知能", "機械学習", "生成AI", "ChatGPT", "GPT", "LLM", "AI導入", "AI活用", "データ分析",
		}},
	}
}

// Classifier matches articles against keyword sets.
type Classifier struct {
	categories []Category
	lowered    [][]string
	fallback   string
}

// New builds a Classifier. Categories are matched in the given order; the
// first match is an article's main category.
func New(categories []Category, fallback string) (*Classifier, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	if fallback == "" {
		fallback = FallbackCategory
	}
	seen := make(map[string]struct{}, len(categories)+1)
	seen[fallback] = struct{}{}
	c := &Classifier{fallback: fallback}
	for _, cat := range categories {
		if _, dup := seen[cat.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = struct{}{}
		kws := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		c.categories = append(c.categories, cat)
		c.lowered = append(c.lowered, kws)
	}
	return c, nil
}

// Default returns a Classifier over DefaultCategories.
func Default() *Classifier {
	c, err := New(DefaultCategories(), FallbackCategory)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a YAML keyword file.
//
//	fallback: その他
//	categories:
//	  - name: 企業効率化
//	    keywords: [業務効率化, 自動化]
func LoadFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode keyword file: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate keyword file: %w", err)
	}
	return New(f.Categories, f.Fallback)
}

// Fallback returns the catch-all category name.
func (c *Classifier) Fallback() string {
	return c.fallback
}

// Names returns every sheet name in priority order, fallback last.
func (c *Classifier) Names() []string {
	names := make([]string, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		names = append(names, cat.Name)
	}
	return append(names, c.fallback)
}

// Matches reports whether any keyword occurs in the title, tags or the
// first part of the content.
func (c *Classifier) Matches(a news.Article) bool {
	text := searchText(a, filterContentPrefix)
	for _, kws := range c.lowered {
		if containsAny(text, kws) {
			return true
		}
	}
	return false
}

// Filter keeps the matching articles, preserving order.
func (c *Classifier) Filter(articles []news.Article) []news.Article {
	out := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if c.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// Categorize returns the matching category names in priority order. The
// result is never empty: an article without matches gets the fallback.
func (c *Classifier) Categorize(a news.Article) []string {
	text := searchText(a, categorizeContentPrefix)
	var out []string
	for i, kws := range c.lowered {
		if containsAny(text, kws) {
			out = append(out, c.categories[i].Name)
		}
	}
	if len(out) == 0 {
		return []string{c.fallback}
	}
	return out
}

func searchText(a news.Article, contentPrefix int) string {
	parts := []string{a.Title, strings.Join(a.Tags, " "), prefix(a.Content, contentPrefix)}
	return strings.ToLower(strings.Join(parts, " "))
}

func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
