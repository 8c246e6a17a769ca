// Package sheets defines the tabular document store the pipeline persists
// articles to: one document made of named sheets, each a grid of string
// cells addressed by 1-based physical row numbers.
package sheets

import (
	"context"
	"errors"
)

// ErrSheetNotFound is returned when a named sheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// SheetInfo describes one sheet of the document.
type SheetInfo struct {
	Name     string
	RowCount int
	ColCount int
}

// Reader is the read side of a Store.
type Reader interface {
	Sheets(ctx context.Context) ([]SheetInfo, error)
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
}

// Store is a remote tabular document. Every method except the readers is a
// single remote mutation.
type Store interface {
	Reader
	CreateSheet(ctx context.Context, name string, rows, cols int) error
	DeleteSheet(ctx context.Context, name string) error
	// UpdateRow overwrites the cells of row starting at column A.
	UpdateRow(ctx context.Context, sheet string, row int, values []string) error
	// Format applies every part of f in one batched call.
	Format(ctx context.Context, sheet string, f Formatting) error
	// DeleteRow removes row and shifts the rows below it up by one.
	DeleteRow(ctx context.Context, sheet string, row int) error
	// AppendRows grows the sheet's row capacity by n empty rows.
	AppendRows(ctx context.Context, sheet string, n int) error
}

// CreationReporter is implemented by stores that can tell whether the
// document was created when the store was opened.
type CreationReporter interface {
	Created() bool
}

// Find returns the named sheet from infos.
func Find(infos []SheetInfo, name string) (SheetInfo, bool) {
	for _, info := range infos {
		if info.Name == name {
			return info, true
		}
	}
	return SheetInfo{}, false
}
