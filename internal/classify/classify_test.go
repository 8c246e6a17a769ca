package classify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdesk/internal/news"
)

func TestMatchesTitleTagsAndContentPrefix(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.True(t, c.Matches(news.Article{Title: "新しいchatgptの使い方"}), "keywords are case-insensitive")
	assert.True(t, c.Matches(news.Article{Title: "お知らせ", Tags: []string{"業務改善"}}))
	assert.True(t, c.Matches(news.Article{Title: "お知らせ", Content: "本文で人工知能に触れる"}))
	assert.False(t, c.Matches(news.Article{Title: "新店舗オープン", Content: "グルメ情報"}))

	late := strings.Repeat("あ", filterContentPrefix) + "機械学習"
	assert.False(t, c.Matches(news.Article{Title: "お知らせ", Content: late}), "keywords past the content prefix are ignored")
}

func TestFilterPreservesOrder(t *testing.T) {
	t.Parallel()

	in := []news.Article{
		{Title: "DX推進の鍵"},
		{Title: "天気予報"},
		{Title: "生成AIの導入事例"},
	}
	out := Default().Filter(in)
	require.Len(t, out, 2)
	assert.Equal(t, "DX推進の鍵", out[0].Title)
	assert.Equal(t, "生成AIの導入事例", out[1].Title)
}

func TestCategorizePriorityOrder(t *testing.T) {
	t.Parallel()

	c := Default()
	got := c.Categorize(news.Article{Title: "生成AIで業務効率化、DXの導入事例"})
	assert.Equal(t, []string{"企業効率化", "DX・デジタル化", "企業導入", "AI・テクノロジー"}, got)

	assert.Equal(t, []string{"AI・テクノロジー"}, c.Categorize(news.Article{Title: "LLMの新モデル"}))
	assert.Equal(t, []string{FallbackCategory}, c.Categorize(news.Article{Title: "新店舗オープン"}))

	late := strings.Repeat("あ", categorizeContentPrefix) + "省力化"
	assert.Equal(t, []string{FallbackCategory}, c.Categorize(news.Article{Title: "x", Content: late}))
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"企業効率化", "DX・デジタル化", "企業導入", "AI・テクノロジー", "その他"}, Default().Names())
}

func TestNewRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := New([]Category{{Name: "a", Keywords: []string{"x"}}, {Name: "a", Keywords: []string{"y"}}}, "")
	require.Error(t, err)
	_, err = New([]Category{{Name: "その他", Keywords: []string{"x"}}}, "")
	require.Error(t, err)
	_, err = New(nil, "")
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	body := `
fallback: misc
categories:
  - name: robotics
    keywords: [Robot, drone]
  - name: cloud
    keywords: [kubernetes]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"robotics", "cloud", "misc"}, c.Names())
	assert.Equal(t, []string{"robotics"}, c.Categorize(news.Article{Title: "New ROBOT arm"}))
	assert.Equal(t, "misc", c.Fallback())
}

func TestLoadFileValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: empty\n    keywords: []\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate keyword file")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
