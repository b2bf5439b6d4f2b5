package models

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestWeekStart checks Monday alignment across a full week and a month change
func TestWeekStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2021-03-01", "2021-03-01"}, // Monday
		{"2021-03-02", "2021-03-01"},
		{"2021-03-06", "2021-03-01"},
		{"2021-03-07", "2021-03-01"}, // Sunday
		{"2021-03-08", "2021-03-08"},
		{"2021-01-01", "2020-12-28"},
	}

	for _, tt := range tests {
		got := WeekStart(day(tt.date))
		if !got.Equal(day(tt.want)) {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.date, got.Format(DateLayout), tt.want)
		}
	}
}

func TestPopulationRate(t *testing.T) {
	tests := []struct {
		name       string
		cases      sql.NullFloat64
		population sql.NullInt64
		want       sql.NullFloat64
	}{
		{
			name:       "known values",
			cases:      sql.NullFloat64{Float64: 4000, Valid: true},
			population: sql.NullInt64{Int64: 16000, Valid: true},
			want:       sql.NullFloat64{Float64: 2500, Valid: true},
		},
		{
			name:       "zero cases stays a real zero",
			cases:      sql.NullFloat64{Float64: 0, Valid: true},
			population: sql.NullInt64{Int64: 20000, Valid: true},
			want:       sql.NullFloat64{Float64: 0, Valid: true},
		},
		{
			name:       "unknown cases",
			population: sql.NullInt64{Int64: 20000, Valid: true},
		},
		{
			name:  "unknown population",
			cases: sql.NullFloat64{Float64: 3, Valid: true},
		},
		{
			name:       "zero population",
			cases:      sql.NullFloat64{Float64: 3, Valid: true},
			population: sql.NullInt64{Int64: 0, Valid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PopulationRate(tt.cases, tt.population)
			if got != tt.want {
				t.Errorf("PopulationRate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOrNoData(t *testing.T) {
	if v := OrNoData(sql.NullFloat64{}); v != NoData {
		t.Errorf("OrNoData(undefined) = %v, want %v", v, NoData)
	}
	if v := OrNoData(sql.NullFloat64{Float64: 0, Valid: true}); v != 0 {
		t.Errorf("OrNoData(0) = %v, want 0", v)
	}
}

func TestDateWindow(t *testing.T) {
	w := DateWindow{Start: day("2020-11-01"), End: day("2020-11-30")}

	if w.Days() != 30 {
		t.Errorf("Days() = %d, want 30", w.Days())
	}
	if !w.Contains(day("2020-11-01")) || !w.Contains(day("2020-11-30")) {
		t.Error("window bounds should be included")
	}
	if w.Contains(day("2020-10-31")) || w.Contains(day("2020-12-01")) {
		t.Error("dates outside the window should not be included")
	}
}

func TestSpans(t *testing.T) {
	rows := []Observation{{NutsID: "AT111"}, {NutsID: "AT111"}, {NutsID: "DE300"}, {NutsID: "FR101"}, {NutsID: "FR101"}}

	spans := Spans(rows, func(o Observation) string { return o.NutsID })

	want := []Span{{"AT111", 0, 2}, {"DE300", 2, 3}, {"FR101", 3, 5}}
	if len(spans) != len(want) {
		t.Fatalf("len(spans) = %d, want %d", len(spans), len(want))
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("spans[%d] = %+v, want %+v", i, spans[i], want[i])
		}
	}

	table := Table[Observation]{Rows: rows, Regions: spans}
	if got := len(table.Region(2)); got != 2 {
		t.Errorf("len(Region(2)) = %d, want 2", got)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := &EmptyDatasetError{Stage: "clean"}
	err := &StageError{Stage: "clean", Rows: 0, Err: cause}

	var empty *EmptyDatasetError
	if !errors.As(err, &empty) {
		t.Fatal("errors.As should find the wrapped EmptyDatasetError")
	}
	if empty.Stage != "clean" {
		t.Errorf("Stage = %q, want %q", empty.Stage, "clean")
	}
}

func TestErrorClassification(t *testing.T) {
	if (&FormatError{Column: "date"}).IsTransient() {
		t.Error("FormatError should not be transient")
	}
	if (&EmptyDatasetError{}).IsTransient() {
		t.Error("EmptyDatasetError should not be transient")
	}
	if !(&NetworkError{URL: "http://example.invalid"}).IsTransient() {
		t.Error("NetworkError should be transient")
	}
}
