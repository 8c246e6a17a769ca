// Package google implements sheets.Store on the Google Sheets v4 API, with
// the Drive v3 API used to locate the document by name.
package google

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/JakeFAU/newsdesk/internal/sheets"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Config selects the document and credentials.
type Config struct {
	// DocumentID opens a document directly; when empty the document is
	// looked up by DocumentName and created if missing.
	DocumentID      string
	DocumentName    string
	CredentialsFile string
}

type sheetMeta struct {
	id   int64
	rows int
	cols int
}

// Store is a Google Sheets document.
type Store struct {
	svc     *sheetsapi.Service
	docID   string
	docURL  string
	created bool
	logger  *zap.Logger

	mu   sync.Mutex
	meta map[string]sheetMeta
	// order keeps the document's tab order.
	order []string
}

// New authenticates, then opens or creates the configured document. Extra
// client options are appended, which lets tests point the clients at a
// local endpoint.
func New(ctx context.Context, cfg Config, logger *zap.Logger, extra ...option.ClientOption) (*Store, error) {
	if cfg.DocumentID == "" && strings.TrimSpace(cfg.DocumentName) == "" {
		return nil, fmt.Errorf("document id or name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope, drive.DriveFileScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	s := &Store{svc: svc, docID: cfg.DocumentID, logger: logger, meta: make(map[string]sheetMeta)}

	if s.docID == "" {
		driveSvc, err := drive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create drive client: %w", err)
		}
		if err := s.openByName(ctx, driveSvc, cfg.DocumentName); err != nil {
			return nil, err
		}
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	logger.Info("spreadsheet opened",
		zap.String("document_id", s.docID),
		zap.Bool("created", s.created),
		zap.Int("sheets", len(s.order)),
	)
	return s, nil
}

func (s *Store) openByName(ctx context.Context, driveSvc *drive.Service, name string) error {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	list, err := driveSvc.Files.List().Q(q).Fields("files(id, name)").PageSize(10).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("find spreadsheet %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		s.docID = list.Files[0].Id
		return nil
	}
	doc, err := s.svc.Spreadsheets.Create(&sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{Title: name},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create spreadsheet %q: %w", name, err)
	}
	s.docID = doc.SpreadsheetId
	s.created = true
	return nil
}

// Created reports whether New created the document.
func (s *Store) Created() bool {
	return s.created
}

// URL returns the browser URL of the document.
func (s *Store) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docURL
}

func (s *Store) refresh(ctx context.Context) error {
	doc, err := s.svc.Spreadsheets.Get(s.docID).
		Fields("spreadsheetId,spreadsheetUrl,sheets.properties").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docURL = doc.SpreadsheetUrl
	s.meta = make(map[string]sheetMeta, len(doc.Sheets))
	s.order = s.order[:0]
	for _, sh := range doc.Sheets {
		p := sh.Properties
		if p == nil {
			continue
		}
		m := sheetMeta{id: p.SheetId}
		if p.GridProperties != nil {
			m.rows = int(p.GridProperties.RowCount)
			m.cols = int(p.GridProperties.ColumnCount)
		}
		s.meta[p.Title] = m
		s.order = append(s.order, p.Title)
	}
	return nil
}

func (s *Store) lookup(name string) (sheetMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meta[name]
	if !ok {
		return sheetMeta{}, fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, name)
	}
	return m, nil
}

func (s *Store) adjustRows(name string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meta[name]; ok {
		m.rows += delta
		s.meta[name] = m
	}
}

// Sheets re-reads the document metadata and lists its sheets.
func (s *Store) Sheets(ctx context.Context) ([]sheets.SheetInfo, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.SheetInfo, 0, len(s.order))
	for _, name := range s.order {
		m := s.meta[name]
		out = append(out, sheets.SheetInfo{Name: name, RowCount: m.rows, ColCount: m.cols})
	}
	return out, nil
}

// ReadAll returns every populated row of a sheet as strings.
func (s *Store) ReadAll(ctx context.Context, name string) ([][]string, error) {
	if _, err := s.lookup(name); err != nil {
		return nil, err
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.docID, quoteSheet(name)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			row[j] = fmt.Sprint(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

// CreateSheet adds a sheet with the given grid size.
func (s *Store) CreateSheet(ctx context.Context, name string, rows, cols int) error {
	resp, err := s.batch(ctx, &sheetsapi.Request{AddSheet: &sheetsapi.AddSheetRequest{
		Properties: &sheetsapi.SheetProperties{
			Title: name,
			GridProperties: &sheetsapi.GridProperties{
				RowCount:    int64(rows),
				ColumnCount: int64(cols),
			},
		},
	}})
	if err != nil {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	m := sheetMeta{rows: rows, cols: cols}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		m.id = resp.Replies[0].AddSheet.Properties.SheetId
	}
	s.mu.Lock()
	s.meta[name] = m
	s.order = append(s.order, name)
	s.mu.Unlock()
	return nil
}

// DeleteSheet removes a sheet.
func (s *Store) DeleteSheet(ctx context.Context, name string) error {
	m, err := s.lookup(name)
	if err != nil {
		return err
	}
	req := &sheetsapi.DeleteSheetRequest{SheetId: m.id, ForceSendFields: []string{"SheetId"}}
	if _, err := s.batch(ctx, &sheetsapi.Request{DeleteSheet: req}); err != nil {
		return fmt.Errorf("delete sheet %q: %w", name, err)
	}
	s.mu.Lock()
	delete(s.meta, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// UpdateRow writes values as raw strings starting at column A.
func (s *Store) UpdateRow(ctx context.Context, name string, row int, values []string) error {
	if _, err := s.lookup(name); err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", quoteSheet(name), row, columnLetter(len(values)), row)
	_, err := s.svc.Spreadsheets.Values.Update(s.docID, rng, &sheetsapi.ValueRange{
		Values: [][]interface{}{cells},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// Format applies f in one batchUpdate call.
func (s *Store) Format(ctx context.Context, name string, f sheets.Formatting) error {
	m, err := s.lookup(name)
	if err != nil {
		return err
	}
	reqs := formatRequests(m.id, f)
	if len(reqs) == 0 {
		return nil
	}
	if _, err := s.batch(ctx, reqs...); err != nil {
		return fmt.Errorf("format sheet %q: %w", name, err)
	}
	return nil
}

// DeleteRow removes a 1-based row.
func (s *Store) DeleteRow(ctx context.Context, name string, row int) error {
	m, err := s.lookup(name)
	if err != nil {
		return err
	}
	_, err = s.batch(ctx, &sheetsapi.Request{DeleteDimension: &sheetsapi.DeleteDimensionRequest{
		Range: dimensionRange(m.id, "ROWS", row-1, row),
	}})
	if err != nil {
		return fmt.Errorf("delete row %d of %q: %w", row, name, err)
	}
	s.adjustRows(name, -1)
	return nil
}

// AppendRows grows a sheet by n rows.
func (s *Store) AppendRows(ctx context.Context, name string, n int) error {
	m, err := s.lookup(name)
	if err != nil {
		return err
	}
	_, err = s.batch(ctx, &sheetsapi.Request{AppendDimension: &sheetsapi.AppendDimensionRequest{
		SheetId:         m.id,
		Dimension:       "ROWS",
		Length:          int64(n),
		ForceSendFields: []string{"SheetId"},
	}})
	if err != nil {
		return fmt.Errorf("append %d rows to %q: %w", n, name, err)
	}
	s.adjustRows(name, n)
	return nil
}

func (s *Store) batch(ctx context.Context, reqs ...*sheetsapi.Request) (*sheetsapi.BatchUpdateSpreadsheetResponse, error) {
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.docID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("batch update: %w", err)
	}
	return resp, nil
}

// quoteSheet renders a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 1-based column number to its A1 letters.
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

var (
	_ sheets.Store            = (*Store)(nil)
	_ sheets.CreationReporter = (*Store)(nil)
)
