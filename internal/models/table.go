package models

// Span is the half-open row range [Start, End) owned by one region
type Span struct {
	NutsID string
	Start  int
	End    int
}

// Len returns the number of rows in the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Table is an arena of rows ordered by region, with one span per region.
// Each pipeline stage builds a new Table and never mutates its input.
type Table[T any] struct {
	Rows    []T
	Regions []Span
}

// Region returns the rows of the i-th region
func (t *Table[T]) Region(i int) []T {
	s := t.Regions[i]
	return t.Rows[s.Start:s.End]
}

// Len returns the total number of rows
func (t *Table[T]) Len() int {
	return len(t.Rows)
}

// Spans groups consecutive rows sharing a region id. rows must already be
// ordered so that each region's rows are contiguous.
func Spans[T any](rows []T, key func(T) string) []Span {
	var spans []Span
	for i, r := range rows {
		id := key(r)
		if n := len(spans); n > 0 && spans[n-1].NutsID == id {
			spans[n-1].End = i + 1
			continue
		}
		spans = append(spans, Span{NutsID: id, Start: i, End: i + 1})
	}
	return spans
}
