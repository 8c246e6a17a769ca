package html

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type site struct {
	mu   sync.Mutex
	hits map[string]int
}

func (s *site) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch r.URL.Path {
	case "/":
		fmt.Fprint(w, `<html><body>
			<a href="/1001/"><h2>生成AIを活用した業務効率化の最新事例</h2></a>
			<a href="/1001/">duplicate link</a>
			<a href="/1002/">短い</a>
			<a href="/about">About this site and its editors</a>
			<a href="/1003/"><h3>存在しない記事へのリンクテキスト</h3></a>
		</body></html>`)
	case "/page/2/":
		fmt.Fprint(w, `<html><body><a href="/1004/">二ページ目の記事タイトルです長め</a></body></html>`)
	case "/page/3/":
		http.Error(w, "gone", http.StatusNotFound)
	case "/1001/":
		fmt.Fprint(w, `<html><body><article>
			<h1 class="entry-title">生成AIを活用した業務効率化の最新事例</h1>
			<span class="date">公開日 2025年1月15日</span>
			<ul class="tags"><li><a>生成AI</a></li><li><a>DX</a></li><li><a>生成AI</a></li></ul>
			<div class="entry-content">
				<p>短文</p>
				<p>大手企業が生成AIを全社に導入し、業務時間を三割削減した。</p>
				<p>お問い合わせ先はこちらです。以下は不要なテキストです。</p>
			</div>
		</article></body></html>`)
	case "/1004/":
		fmt.Fprint(w, `<html><body><main>本文 2025/02/01 に公開</main></body></html>`)
	default:
		http.NotFound(w, r)
	}
}

func newSite(t *testing.T) (*site, *httptest.Server) {
	t.Helper()
	s := &site{hits: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(srv.Close)
	return s, srv
}

func testConfig(base string) Config {
	return Config{
		Name:            "AINOW",
		ListURLs:        []string{base + "/"},
		PageURL:         base + "/page/%d/",
		LinkPattern:     regexp.MustCompile(regexp.QuoteMeta(base) + `/\d+/$`),
		MinTitleLength:  10,
		TitleSelector:   "h1",
		DateSelector:    ".date",
		TagSelector:     ".tags a",
		ContentSelector: ".entry-content p",
		MinParagraph:    5,
		ContentCutoff:   regexp.MustCompile(`(お問い合わせ|関連URL)`),
	}
}

func TestScrapeExtractsArticles(t *testing.T) {
	t.Parallel()

	s, srv := newSite(t)
	src, err := New(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	articles, err := src.Scrape(context.Background(), 3, 15)
	require.NoError(t, err)
	require.Len(t, articles, 2, "the missing article is skipped")

	first := articles[0]
	assert.Equal(t, srv.URL+"/1001/", first.URL)
	assert.Equal(t, "生成AIを活用した業務効率化の最新事例", first.Title)
	assert.Equal(t, "公開日 2025年1月15日", first.Date)
	assert.Equal(t, []string{"生成AI", "DX"}, first.Tags)
	assert.Equal(t, "大手企業が生成AIを全社に導入し、業務時間を三割削減した。", first.Content)
	assert.Equal(t, "AINOW", first.Source)

	second := articles[1]
	assert.Equal(t, "二ページ目の記事タイトルです長め", second.Title, "listing title is the fallback")
	assert.Equal(t, "2025/02/01", second.Date)
	assert.True(t, strings.HasPrefix(second.Content, "本文"))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, 1, s.hits["/1001/"])
	assert.Zero(t, s.hits["/1002/"], "short titles are not followed")
}

func TestScrapeHonoursMaxArticles(t *testing.T) {
	t.Parallel()

	_, srv := newSite(t)
	src, err := New(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	articles, err := src.Scrape(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)
}

func TestScrapeFailsWithoutListing(t *testing.T) {
	t.Parallel()

	_, srv := newSite(t)
	cfg := testConfig(srv.URL)
	cfg.ListURLs = []string{srv.URL + "/missing"}
	cfg.PageURL = ""
	src, err := New(cfg, nil, nil)
	require.NoError(t, err)

	_, err = src.Scrape(context.Background(), 1, 10)
	require.Error(t, err)
}

func TestScrapeCanceled(t *testing.T) {
	t.Parallel()

	_, srv := newSite(t)
	src, err := New(testConfig(srv.URL), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Scrape(ctx, 1, 10)
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{Name: "x"}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{Name: "x", ListURLs: []string{"https://x"}}, nil, nil)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://prtimes.jp/topics/keywords/AI")
	assert.Equal(t, "https://prtimes.jp/main/html/rd/p/1.html", resolve(base, "/main/html/rd/p/1.html#top"))
	assert.Equal(t, "https://other.jp/x", resolve(base, "https://other.jp/x"))
	assert.Empty(t, resolve(base, "javascript:void(0)"))
	assert.Empty(t, resolve(base, "mailto:pr@example.com"))
	assert.Empty(t, resolve(base, "#"))
}

func TestFindDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2025/1/5", findDate("掲載 2025/1/5 10:00"))
	assert.Equal(t, "2025年1月15日", findDate("2025年1月15日 公開"))
	assert.Equal(t, "2025-01-15", findDate("updated 2025-01-15"))
	assert.Empty(t, findDate("no date"))
}
