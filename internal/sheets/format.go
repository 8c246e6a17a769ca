package sheets

// Color is an RGB colour with components in [0, 1].
type Color struct {
	Red   float64
	Green float64
	Blue  float64
}

// Range is a zero-based, half-open cell rectangle.
type Range struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// Alignment values accepted by CellStyle.
const (
	AlignCenter = "CENTER"
	AlignMiddle = "MIDDLE"
	AlignTop    = "TOP"
)

// CellStyle formats every cell of Range. Nil colours and zero values leave
// the corresponding property untouched.
type CellStyle struct {
	Range      Range
	Background *Color
	Foreground *Color
	Bold       bool
	FontSize   int
	HAlign     string
	VAlign     string
	Wrap       bool
}

// Link turns one cell into display text hyperlinked to URL.
type Link struct {
	Row   int
	Col   int
	Text  string
	URL   string
	Color Color
}

// Dimension sets the pixel size of rows or columns [Start, End).
type Dimension struct {
	Start  int
	End    int
	Pixels int
}

// Formatting is a batch of cosmetic changes applied in one remote call.
type Formatting struct {
	Cells        []CellStyle
	Links        []Link
	RowHeights   []Dimension
	ColumnWidths []Dimension
	FrozenRows   int
}

// Empty reports whether f carries no changes.
func (f Formatting) Empty() bool {
	return len(f.Cells) == 0 && len(f.Links) == 0 && len(f.RowHeights) == 0 &&
		len(f.ColumnWidths) == 0 && f.FrozenRows == 0
}
