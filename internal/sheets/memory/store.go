// Package memory implements sheets.Store in-process for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/newsdesk/internal/sheets"
)

// Op names a Store method for fault injection and call counting.
type Op string

// Store operations.
const (
	OpSheets      Op = "sheets"
	OpReadAll     Op = "read_all"
	OpCreateSheet Op = "create_sheet"
	OpDeleteSheet Op = "delete_sheet"
	OpUpdateRow   Op = "update_row"
	OpFormat      Op = "format"
	OpDeleteRow   Op = "delete_row"
	OpAppendRows  Op = "append_rows"
)

type sheet struct {
	name     string
	rows     [][]string
	capacity int
	cols     int
	formats  []sheets.Formatting
	links    map[[2]int]string
}

// Store keeps sheets in memory. Like the remote API, writes outside a
// sheet's row capacity fail and reads omit trailing empty rows.
type Store struct {
	mu     sync.Mutex
	order  []string
	sheets map[string]*sheet
	faults map[Op][]error
	calls  map[Op]int

	created bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sheets: make(map[string]*sheet),
		faults: make(map[Op][]error),
		calls:  make(map[Op]int),
	}
}

// MarkCreated makes the store report a freshly created document.
func (s *Store) MarkCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
}

// Created implements sheets.CreationReporter.
func (s *Store) Created() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Fail makes the next len(errs) calls of op return errs in order.
func (s *Store) Fail(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// Calls returns how many times op was invoked, failed calls included.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Seed creates or replaces a sheet with rows; capacity is at least len(rows).
func (s *Store) Seed(name string, capacity int, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if capacity < len(rows) {
		capacity = len(rows)
	}
	sh, ok := s.sheets[name]
	if !ok {
		sh = &sheet{name: name, links: make(map[[2]int]string)}
		s.sheets[name] = sh
		s.order = append(s.order, name)
	}
	sh.rows = cloneRows(rows)
	sh.capacity = capacity
	sh.cols = 10
}

// Link returns the hyperlink target of a 1-based cell, if any.
func (s *Store) Link(name string, row, col int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[name]
	if !ok {
		return "", false
	}
	url, ok := sh.links[[2]int{row, col}]
	return url, ok
}

// Formats returns the formatting batches applied to a sheet.
func (s *Store) Formats(name string) []sheets.Formatting {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.sheets[name]
	if !ok {
		return nil
	}
	return append([]sheets.Formatting(nil), sh.formats...)
}

func (s *Store) enter(op Op) error {
	s.calls[op]++
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.faults[op] = queue[1:]
	return err
}

func (s *Store) lookup(name string) (*sheet, error) {
	sh, ok := s.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, name)
	}
	return sh, nil
}

// Sheets lists sheets in creation order.
func (s *Store) Sheets(_ context.Context) ([]sheets.SheetInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSheets); err != nil {
		return nil, err
	}
	out := make([]sheets.SheetInfo, 0, len(s.order))
	for _, name := range s.order {
		sh := s.sheets[name]
		out = append(out, sheets.SheetInfo{Name: name, RowCount: sh.capacity, ColCount: sh.cols})
	}
	return out, nil
}

// ReadAll returns a copy of the populated rows.
func (s *Store) ReadAll(_ context.Context, name string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpReadAll); err != nil {
		return nil, err
	}
	sh, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	last := len(sh.rows)
	for last > 0 && emptyRow(sh.rows[last-1]) {
		last--
	}
	return cloneRows(sh.rows[:last]), nil
}

// CreateSheet adds an empty sheet.
func (s *Store) CreateSheet(_ context.Context, name string, rows, cols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateSheet); err != nil {
		return err
	}
	if _, exists := s.sheets[name]; exists {
		return fmt.Errorf("sheet %q already exists", name)
	}
	s.sheets[name] = &sheet{name: name, capacity: rows, cols: cols, links: make(map[[2]int]string)}
	s.order = append(s.order, name)
	return nil
}

// DeleteSheet removes a sheet.
func (s *Store) DeleteSheet(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteSheet); err != nil {
		return err
	}
	if _, err := s.lookup(name); err != nil {
		return err
	}
	delete(s.sheets, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateRow writes values into row.
func (s *Store) UpdateRow(_ context.Context, name string, row int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateRow); err != nil {
		return err
	}
	sh, err := s.lookup(name)
	if err != nil {
		return err
	}
	if row < 1 || row > sh.capacity {
		return fmt.Errorf("row %d exceeds grid limits of %q (%d rows)", row, name, sh.capacity)
	}
	for len(sh.rows) < row {
		sh.rows = append(sh.rows, nil)
	}
	sh.rows[row-1] = append([]string(nil), values...)
	return nil
}

// Format records f and its hyperlinks.
func (s *Store) Format(_ context.Context, name string, f sheets.Formatting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFormat); err != nil {
		return err
	}
	sh, err := s.lookup(name)
	if err != nil {
		return err
	}
	sh.formats = append(sh.formats, f)
	for _, l := range f.Links {
		sh.links[[2]int{l.Row + 1, l.Col + 1}] = l.URL
	}
	return nil
}

// DeleteRow removes row and shrinks capacity by one.
func (s *Store) DeleteRow(_ context.Context, name string, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteRow); err != nil {
		return err
	}
	sh, err := s.lookup(name)
	if err != nil {
		return err
	}
	if row < 1 || row > sh.capacity {
		return fmt.Errorf("row %d out of range for %q", row, name)
	}
	if row <= len(sh.rows) {
		sh.rows = append(sh.rows[:row-1], sh.rows[row:]...)
	}
	sh.capacity--
	return nil
}

// AppendRows grows capacity by n.
func (s *Store) AppendRows(_ context.Context, name string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAppendRows); err != nil {
		return err
	}
	sh, err := s.lookup(name)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("append rows: n must be > 0")
	}
	sh.capacity += n
	return nil
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

var (
	_ sheets.Store            = (*Store)(nil)
	_ sheets.CreationReporter = (*Store)(nil)
)
