package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid-waves/internal/models"
)

func TestCalendarize_Completeness(t *testing.T) {
	d0 := day("2021-03-01")
	input := []models.Observation{
		obs("AT112", d0.AddDate(0, 0, 2), 100, 3),
		obs("AT112", d0.AddDate(0, 0, 6), 100, 7),
		obs("AT111", d0, 100, 1),
		obs("AT111", d0.AddDate(0, 0, 1), 100, 2),
		obs("AT111", d0.AddDate(0, 0, 4), 100, 5),
	}

	table, report, err := Calendarize(input)
	require.NoError(t, err)

	assert.Equal(t, 7, report.Days)
	assert.Equal(t, 2, report.Regions)
	assert.Equal(t, 0, report.Duplicates)
	assert.Equal(t, 9, report.Inserted)
	assert.Equal(t, d0, report.Start)
	assert.Equal(t, d0.AddDate(0, 0, 6), report.End)

	require.Len(t, table.Regions, 2)
	for i, span := range table.Regions {
		rows := table.Region(i)
		require.Len(t, rows, report.Days)

		seen := map[string]bool{}
		for j, r := range rows {
			assert.Equal(t, span.NutsID, r.NutsID)
			assert.Equal(t, d0.AddDate(0, 0, j), r.Date)
			key := r.NutsID + r.Date.Format(models.DateLayout)
			assert.False(t, seen[key], "duplicate key %s", key)
			seen[key] = true
		}
	}

	at111 := table.Region(0)
	assert.Equal(t, "AT111", table.Regions[0].NutsID)
	assert.True(t, at111[0].Cases.Valid)
	assert.False(t, at111[2].Cases.Valid, "gap rows are undefined")
	assert.Empty(t, at111[2].Country)
	assert.False(t, at111[2].Population.Valid)
	assert.Equal(t, 5.0, at111[4].Cases.Float64)
}

func TestCalendarize_Duplicates(t *testing.T) {
	d0 := day("2021-03-01")
	input := []models.Observation{
		obs("AT111", d0, 100, 1),
		obs("AT111", d0, 100, 9),
		obs("AT111", d0.AddDate(0, 0, 1), 100, 2),
	}

	table, report, err := Calendarize(input)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 1.0, table.Rows[0].Cases.Float64, "first row wins")
}

func TestCalendarize_Empty(t *testing.T) {
	_, _, err := Calendarize(nil)
	var empty *models.EmptyDatasetError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "calendarize", empty.Stage)
}
