package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/sheets/memory"
)

func TestIsDuplicateUnion(t *testing.T) {
	t.Parallel()

	x := New()
	x.Add("https://x.com/a/?id=5&utm=foo", "生成AI導入、事例")

	tests := []struct {
		name  string
		url   string
		title string
		want  bool
	}{
		{name: "same normalized url", url: "https://x.com/a?id=5", title: "別の記事", want: true},
		{name: "same raw url", url: "https://x.com/a/?id=5&utm=foo", title: "", want: true},
		{name: "same normalized title", url: "https://y.com/b", title: "生成ai導入事例", want: true},
		{name: "same raw title", url: "", title: "生成AI導入、事例", want: true},
		{name: "different", url: "https://x.com/a?id=6", title: "別の記事", want: false},
		{name: "empty", url: "", title: "", want: false},
		{name: "placeholder url never matches", url: "記事を開く", title: "x", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, x.IsDuplicate(tt.url, tt.title))
		})
	}
}

func TestEquivalentURLsDuplicate(t *testing.T) {
	t.Parallel()

	variants := []string{
		"https://x.com/post/",
		"https://x.com/post?utm_source=rss",
		`=HYPERLINK("https://x.com/post","記事を開く")`,
		" https://x.com/post ",
	}
	for _, first := range variants {
		x := New()
		x.Add(first, "")
		for _, second := range variants {
			assert.True(t, x.IsDuplicate(second, ""), "%q then %q", first, second)
		}
	}
}

func TestMatchReturnsOriginal(t *testing.T) {
	t.Parallel()

	x := New()
	x.Add("https://x.com/a/", "Title")
	orig, ok := x.Match("https://x.com/a", "")
	require.True(t, ok)
	assert.Equal(t, "https://x.com/a/", orig)
}

func TestLoadScansAllSheets(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.Seed("企業効率化", 200,
		layout.Header(),
		[]string{"1", "PR TIMES", "業務効率化の事例", "2025/01/01", "", "⭐⭐⭐☆☆", "sum", layout.LinkText, "https://prtimes.jp/a"},
		[]string{"2", "AINOW", "legacy row", "2025/01/02", "", "⭐⭐⭐☆☆", "sum", "https://ainow.ai/legacy"},
	)
	store.Seed("その他", 200,
		layout.Header(),
		[]string{"1", "Ledge.ai", "その他の記事"},
		[]string{"", ""},
	)

	x, snapshot, err := Load(context.Background(), store, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.True(t, x.IsDuplicate("https://prtimes.jp/a/", ""))
	assert.True(t, x.IsDuplicate("https://ainow.ai/legacy", ""))
	assert.True(t, x.IsDuplicate("", "その他の記事"))
	assert.False(t, x.IsDuplicate("", "タイトル"), "header row is not indexed")
}

func TestLoadPropagatesReadErrors(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.Seed("その他", 10, layout.Header())
	store.Fail(memory.OpReadAll, errors.New("auth expired"))

	_, _, err := Load(context.Background(), store, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth expired")
}
