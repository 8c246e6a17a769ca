// Package html scrapes news sites whose listing and article pages are plain
// HTML. Each site is described by selectors rather than code.
package html

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/news"
)

// Limits applied to extracted text, in characters.
const (
	maxTitleChars   = 200
	maxTagChars     = 30
	maxContentChars = 5000
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}`),
	regexp.MustCompile(`\d{4}年\d{1,2}月\d{1,2}日`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
}

// Config describes one site.
type Config struct {
	Name string
	// ListURLs are always fetched. PageURL, when set, is a fmt pattern with
	// one %d for listing pages 2..maxPages.
	ListURLs []string
	PageURL  string
	// LinkPattern selects article links among the absolute hrefs of a
	// listing page.
	LinkPattern    *regexp.Regexp
	MinTitleLength int

	TitleSelector   string
	DateSelector    string
	TagSelector     string
	MaxTags         int
	ContentSelector string
	// MinParagraph drops content elements shorter than this many characters.
	MinParagraph int
	// ContentCutoff truncates content at its first match.
	ContentCutoff *regexp.Regexp

	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
}

// Waiter paces requests per host.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Source scrapes one site with a colly collector.
type Source struct {
	cfg       Config
	collector *colly.Collector
	pacer     Waiter
	logger    *zap.Logger
}

type listing struct {
	url   string
	title string
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Source. pacer may be nil.
func New(cfg Config, pacer Waiter, logger *zap.Logger) (*Source, error) {
	if cfg.Name == "" {
		return nil, errors.New("html source: name is required")
	}
	if len(cfg.ListURLs) == 0 {
		return nil, fmt.Errorf("html source %q: at least one list url is required", cfg.Name)
	}
	if cfg.LinkPattern == nil {
		return nil, fmt.Errorf("html source %q: link pattern is required", cfg.Name)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TitleSelector == "" {
		cfg.TitleSelector = "h1"
	}
	if cfg.MaxTags == 0 {
		cfg.MaxTags = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("source").With(zap.String("source", cfg.Name))

	var transport http.RoundTripper = newHTTPTransport()
	if cfg.RespectRobots {
		transport = newRobotsTransport(transport, logger)
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.AllowURLRevisit = true
	c.DetectCharset = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(transport)

	return &Source{
		cfg:       cfg,
		collector: c,
		pacer:     pacer,
		logger:    logger,
	}, nil
}

// Name implements news.Source.
func (s *Source) Name() string {
	return s.cfg.Name
}

// Scrape collects up to maxArticles articles from the listing pages. Pages
// that fail to load are skipped; the call fails only when no listing page
// could be read.
func (s *Source) Scrape(ctx context.Context, maxPages, maxArticles int) ([]news.Article, error) {
	links, err := s.listings(ctx, maxPages)
	if err != nil {
		return nil, err
	}
	if maxArticles > 0 && len(links) > maxArticles {
		links = links[:maxArticles]
	}

	articles := make([]news.Article, 0, len(links))
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return articles, fmt.Errorf("scrape %s: %w", s.cfg.Name, err)
		}
		doc, err := s.fetch(ctx, l.url)
		if err != nil {
			s.logger.Warn("article page skipped", zap.String("url", l.url), zap.Error(err))
			continue
		}
		articles = append(articles, s.extract(doc, l))
	}
	s.logger.Info("source scraped", zap.Int("links", len(links)), zap.Int("articles", len(articles)))
	return articles, nil
}

func (s *Source) listPages(maxPages int) []string {
	pages := append([]string(nil), s.cfg.ListURLs...)
	if s.cfg.PageURL != "" {
		for p := 2; p <= maxPages; p++ {
			pages = append(pages, fmt.Sprintf(s.cfg.PageURL, p))
		}
	}
	return pages
}

func (s *Source) listings(ctx context.Context, maxPages int) ([]listing, error) {
	var (
		out     []listing
		seen    = make(map[string]struct{})
		lastErr error
		loaded  int
	)
	for _, page := range s.listPages(maxPages) {
		doc, err := s.fetch(ctx, page)
		if err != nil {
			lastErr = err
			s.logger.Warn("listing page skipped", zap.String("url", page), zap.Error(err))
			continue
		}
		loaded++
		base := doc.Url
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs := resolve(base, href)
			if abs == "" || !s.cfg.LinkPattern.MatchString(abs) {
				return
			}
			if _, dup := seen[abs]; dup {
				return
			}
			title := text(a.Find("h1, h2, h3").First())
			if title == "" {
				title = text(a)
			}
			if utf8.RuneCountInString(title) < s.cfg.MinTitleLength || title == "" {
				return
			}
			seen[abs] = struct{}{}
			out = append(out, listing{url: abs, title: truncate(title, maxTitleChars)})
		})
	}
	if loaded == 0 && lastErr != nil {
		return nil, fmt.Errorf("scrape %s: no listing page loaded: %w", s.cfg.Name, lastErr)
	}
	return out, nil
}

func (s *Source) extract(doc *goquery.Document, l listing) news.Article {
	a := news.Article{URL: l.url, Source: s.cfg.Name}

	a.Title = text(doc.Find(s.cfg.TitleSelector).First())
	if a.Title == "" {
		a.Title = l.title
	}
	a.Title = truncate(a.Title, maxTitleChars)

	if s.cfg.DateSelector != "" {
		el := doc.Find(s.cfg.DateSelector).First()
		a.Date = text(el)
		if dt, ok := el.Attr("datetime"); ok && a.Date == "" {
			a.Date = dt
		}
	}
	if a.Date == "" {
		a.Date = findDate(doc.Text())
	}

	if s.cfg.TagSelector != "" {
		seen := make(map[string]struct{})
		doc.Find(s.cfg.TagSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			tag := text(el)
			if _, dup := seen[tag]; tag != "" && !dup && utf8.RuneCountInString(tag) < maxTagChars {
				seen[tag] = struct{}{}
				a.Tags = append(a.Tags, tag)
			}
			return len(a.Tags) < s.cfg.MaxTags
		})
	}

	a.Content = s.content(doc)
	return a
}

func (s *Source) content(doc *goquery.Document) string {
	var parts []string
	if s.cfg.ContentSelector != "" {
		doc.Find(s.cfg.ContentSelector).Each(func(_ int, el *goquery.Selection) {
			if t := text(el); t != "" && utf8.RuneCountInString(t) > s.cfg.MinParagraph {
				parts = append(parts, t)
			}
		})
	}
	body := strings.Join(parts, "\n")
	for _, fallback := range []string{"article", "main"} {
		if body != "" {
			break
		}
		body = text(doc.Find(fallback).First())
	}
	if s.cfg.ContentCutoff != nil {
		if loc := s.cfg.ContentCutoff.FindStringIndex(body); loc != nil {
			body = strings.TrimSpace(body[:loc[0]])
		}
	}
	return truncate(body, maxContentChars)
}

// fetch loads one page through a clone of the base collector.
func (s *Source) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}
	var (
		body     []byte
		final    *url.URL
		fetchErr error
	)
	collector := s.collector.Clone()
	configureHooks(collector, &body, &final, &fetchErr)
	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	doc.Url = final
	return doc, nil
}

func configureHooks(hooks collectorHooks, body *[]byte, final **url.URL, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
		*final = r.Request.URL
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusBadRequest {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

func findDate(s string) string {
	for _, p := range datePatterns {
		if m := p.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
