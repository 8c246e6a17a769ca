package layout

import (
	"github.com/JakeFAU/newsdesk/internal/sheets"
)

var (
	white     = sheets.Color{Red: 1, Green: 1, Blue: 1}
	linkBlue  = sheets.Color{Red: 0.06, Green: 0.46, Blue: 0.88}
	defaultBG = sheets.Color{Red: 0.3, Green: 0.3, Blue: 0.5}

	headerColors = map[string]sheets.Color{
		"企業効率化":     {Red: 0.15, Green: 0.35, Blue: 0.55},
		"DX・デジタル化":  {Red: 0.25, Green: 0.45, Blue: 0.30},
		"企業導入":      {Red: 0.50, Green: 0.30, Blue: 0.45},
		"AI・テクノロジー": {Red: 0.30, Green: 0.20, Blue: 0.60},
		"その他":       {Red: 0.40, Green: 0.40, Blue: 0.40},
	}

	scoreColors = map[int]sheets.Color{
		5: {Red: 1.0, Green: 0.9, Blue: 0.6},
		4: {Red: 0.9, Green: 0.95, Blue: 0.7},
		3: {Red: 1.0, Green: 1.0, Blue: 1.0},
		2: {Red: 0.95, Green: 0.95, Blue: 0.95},
		1: {Red: 0.9, Green: 0.9, Blue: 0.9},
	}

	columnWidths = []int{45, 100, 300, 100, 140, 70, 500, 100}
)

// Row heights in pixels.
const (
	headerHeight = 40
	rowHeight    = 120
)

// HeaderColor returns the header background of a category sheet.
func HeaderColor(category string) sheets.Color {
	if c, ok := headerColors[category]; ok {
		return c
	}
	return defaultBG
}

// ScoreColor returns the score cell background.
func ScoreColor(score int) sheets.Color {
	if c, ok := scoreColors[score]; ok {
		return c
	}
	return scoreColors[3]
}

// HeaderFormatting styles the header row of a new sheet and freezes it.
func HeaderFormatting(category string) sheets.Formatting {
	bg := HeaderColor(category)
	fg := white
	f := sheets.Formatting{
		Cells: []sheets.CellStyle{{
			Range:      sheets.Range{StartRow: 0, EndRow: 1, StartCol: 0, EndCol: ColURL},
			Background: &bg,
			Foreground: &fg,
			Bold:       true,
			FontSize:   11,
			HAlign:     sheets.AlignCenter,
			VAlign:     sheets.AlignMiddle,
		}},
		RowHeights: []sheets.Dimension{{Start: 0, End: 1, Pixels: headerHeight}},
		FrozenRows: 1,
	}
	for i, w := range columnWidths {
		f.ColumnWidths = append(f.ColumnWidths, sheets.Dimension{Start: i, End: i + 1, Pixels: w})
	}
	return f
}

// RowFormatting styles a freshly written data row and links its URL cell.
func RowFormatting(index, score int, url string) sheets.Formatting {
	r := index - 1
	bg := ScoreColor(score)
	f := sheets.Formatting{
		Cells: []sheets.CellStyle{
			{
				Range:    sheets.Range{StartRow: r, EndRow: r + 1, StartCol: 0, EndCol: ColLink},
				Wrap:     true,
				VAlign:   sheets.AlignTop,
				FontSize: 10,
			},
			{
				Range:      sheets.Range{StartRow: r, EndRow: r + 1, StartCol: ColScore, EndCol: ColScore + 1},
				Background: &bg,
				HAlign:     sheets.AlignCenter,
				VAlign:     sheets.AlignMiddle,
			},
		},
		RowHeights: []sheets.Dimension{{Start: r, End: r + 1, Pixels: rowHeight}},
	}
	if url != "" {
		f.Links = []sheets.Link{{Row: r, Col: ColLink, Text: LinkText, URL: url, Color: linkBlue}}
	}
	return f
}
