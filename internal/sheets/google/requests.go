package google

import (
	"strings"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/JakeFAU/newsdesk/internal/sheets"
)

// formatRequests translates a Formatting batch into Sheets API requests.
func formatRequests(sheetID int64, f sheets.Formatting) []*sheetsapi.Request {
	var reqs []*sheetsapi.Request
	for _, c := range f.Cells {
		cell, fields := cellFormat(c)
		if fields == "" {
			continue
		}
		reqs = append(reqs, &sheetsapi.Request{RepeatCell: &sheetsapi.RepeatCellRequest{
			Range:  gridRange(sheetID, c.Range),
			Cell:   &sheetsapi.CellData{UserEnteredFormat: cell},
			Fields: "userEnteredFormat(" + fields + ")",
		}})
	}
	for _, d := range f.RowHeights {
		reqs = append(reqs, dimensionRequest(sheetID, "ROWS", d))
	}
	for _, d := range f.ColumnWidths {
		reqs = append(reqs, dimensionRequest(sheetID, "COLUMNS", d))
	}
	for _, l := range f.Links {
		text := l.Text
		reqs = append(reqs, &sheetsapi.Request{UpdateCells: &sheetsapi.UpdateCellsRequest{
			Range: gridRange(sheetID, sheets.Range{StartRow: l.Row, EndRow: l.Row + 1, StartCol: l.Col, EndCol: l.Col + 1}),
			Rows: []*sheetsapi.RowData{{Values: []*sheetsapi.CellData{{
				UserEnteredValue: &sheetsapi.ExtendedValue{StringValue: &text},
				TextFormatRuns: []*sheetsapi.TextFormatRun{{
					StartIndex:      0,
					ForceSendFields: []string{"StartIndex"},
					Format: &sheetsapi.TextFormat{
						Link:            &sheetsapi.Link{Uri: l.URL},
						ForegroundColor: color(l.Color),
					},
				}},
			}}}},
			Fields: "userEnteredValue,textFormatRuns",
		}})
	}
	if f.FrozenRows > 0 {
		reqs = append(reqs, &sheetsapi.Request{UpdateSheetProperties: &sheetsapi.UpdateSheetPropertiesRequest{
			Properties: &sheetsapi.SheetProperties{
				SheetId:         sheetID,
				ForceSendFields: []string{"SheetId"},
				GridProperties:  &sheetsapi.GridProperties{FrozenRowCount: int64(f.FrozenRows)},
			},
			Fields: "gridProperties.frozenRowCount",
		}})
	}
	return reqs
}

func cellFormat(c sheets.CellStyle) (*sheetsapi.CellFormat, string) {
	cf := &sheetsapi.CellFormat{}
	var fields []string
	if c.Background != nil {
		cf.BackgroundColor = color(*c.Background)
		fields = append(fields, "backgroundColor")
	}
	if c.Foreground != nil || c.Bold || c.FontSize > 0 {
		tf := &sheetsapi.TextFormat{Bold: c.Bold, FontSize: int64(c.FontSize)}
		if c.Foreground != nil {
			tf.ForegroundColor = color(*c.Foreground)
		}
		cf.TextFormat = tf
		fields = append(fields, "textFormat")
	}
	if c.HAlign != "" {
		cf.HorizontalAlignment = c.HAlign
		fields = append(fields, "horizontalAlignment")
	}
	if c.VAlign != "" {
		cf.VerticalAlignment = c.VAlign
		fields = append(fields, "verticalAlignment")
	}
	if c.Wrap {
		cf.WrapStrategy = "WRAP"
		fields = append(fields, "wrapStrategy")
	}
	return cf, strings.Join(fields, ",")
}

func dimensionRequest(sheetID int64, dim string, d sheets.Dimension) *sheetsapi.Request {
	return &sheetsapi.Request{UpdateDimensionProperties: &sheetsapi.UpdateDimensionPropertiesRequest{
		Range:      dimensionRange(sheetID, dim, d.Start, d.End),
		Properties: &sheetsapi.DimensionProperties{PixelSize: int64(d.Pixels)},
		Fields:     "pixelSize",
	}}
}

func dimensionRange(sheetID int64, dim string, start, end int) *sheetsapi.DimensionRange {
	return &sheetsapi.DimensionRange{
		SheetId:         sheetID,
		Dimension:       dim,
		StartIndex:      int64(start),
		EndIndex:        int64(end),
		ForceSendFields: []string{"SheetId", "StartIndex"},
	}
}

func gridRange(sheetID int64, r sheets.Range) *sheetsapi.GridRange {
	return &sheetsapi.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(r.StartRow),
		EndRowIndex:      int64(r.EndRow),
		StartColumnIndex: int64(r.StartCol),
		EndColumnIndex:   int64(r.EndCol),
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func color(c sheets.Color) *sheetsapi.Color {
	return &sheetsapi.Color{
		Red:             c.Red,
		Green:           c.Green,
		Blue:            c.Blue,
		ForceSendFields: []string{"Red", "Green", "Blue"},
	}
}
