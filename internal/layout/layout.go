// Package layout is the column contract between the store writer and every
// reader of the category sheets. Changing it requires migrating the sheets
// and the read-side application together.
package layout

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/newsdesk/internal/news"
)

// Zero-based column positions.
const (
	ColNo = iota
	ColSource
	ColTitle
	ColDate
	ColTags
	ColScore
	ColSummary
	ColLink
	ColURL
	ColCategories

	NumColumns
)

// Sheet geometry for newly created sheets.
const (
	InitialRows = 200
	// GrowthSlack is added on top of the missing rows when a sheet is full.
	GrowthSlack = 10
)

// LinkText is the display text of the hyperlink cell.
const LinkText = "🔗 記事を開く"

const (
	starFull  = "⭐"
	starEmpty = "☆"
	listSep   = ", "
)

// Header is the fixed first row of every sheet.
func Header() []string {
	return []string{"No.", "ソース", "タイトル", "日付", "タグ", "重要度", "要約", "URL", "実URL", "カテゴリ"}
}

// Stars renders a score as filled and empty stars.
func Stars(score int) string {
	score = news.ClampScore(score)
	return strings.Repeat(starFull, score) + strings.Repeat(starEmpty, news.MaxScore-score)
}

// StarCount counts the filled stars in a rendered score.
func StarCount(display string) int {
	return strings.Count(display, starFull)
}

// Permanent reports whether a rendered score marks the row as exempt from
// retention.
func Permanent(display string) bool {
	return StarCount(display) >= news.MaxScore
}

// Values renders a candidate as the cells of physical row index.
func Values(index int, c news.ScoredCandidate, categories []string) []string {
	a := c.Article
	return []string{
		strconv.Itoa(index - 1),
		a.Source,
		a.Title,
		a.Date,
		a.TagLine(),
		Stars(c.Score),
		c.Summary,
		"",
		a.URL,
		strings.Join(categories, listSep),
	}
}

// Cell returns column col of row, or "" when the row is short.
func Cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// RowURL returns the article URL of a stored row: the real URL column when
// it holds a link, else the link column for rows written before it existed.
func RowURL(row []string) string {
	if u := Cell(row, ColURL); strings.HasPrefix(u, "http") {
		return u
	}
	if u := Cell(row, ColLink); strings.HasPrefix(u, "http") {
		return u
	}
	return ""
}

// Parse decodes the stored cells of physical row index. Rows without a
// title or with fewer than the first seven columns are not articles.
func Parse(sheet string, index int, cells []string) (news.Row, bool) {
	if len(cells) <= ColSummary || Cell(cells, ColTitle) == "" {
		return news.Row{}, false
	}
	categories := []string{sheet}
	if raw := Cell(cells, ColCategories); raw != "" {
		categories = strings.Split(raw, listSep)
	}
	stars := Cell(cells, ColScore)
	return news.Row{
		Sheet:      sheet,
		Index:      index,
		No:         Cell(cells, ColNo),
		Source:     Cell(cells, ColSource),
		Title:      Cell(cells, ColTitle),
		Date:       Cell(cells, ColDate),
		Tags:       Cell(cells, ColTags),
		Stars:      stars,
		Score:      StarCount(stars),
		Summary:    Cell(cells, ColSummary),
		URL:        RowURL(cells),
		Categories: categories,
	}, true
}
