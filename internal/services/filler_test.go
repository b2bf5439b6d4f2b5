package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid-waves/internal/models"
)

func TestFill(t *testing.T) {
	d0 := day("2021-03-01")
	// AT111 known on days 2 and 5 of 7; AT112 pins the calendar
	input := []models.Observation{
		obs("AT111", d0.AddDate(0, 0, 1), 2000, 10),
		obs("AT111", d0.AddDate(0, 0, 4), 2000, 40),
		obs("AT112", d0, 500, 1),
		obs("AT112", d0.AddDate(0, 0, 6), 500, 1),
	}
	input[1].Population.Valid = false

	calendar, _, err := Calendarize(input)
	require.NoError(t, err)

	filled, report, err := Fill(context.Background(), calendar, 2)
	require.NoError(t, err)

	rows := filled.Region(0)
	require.Len(t, rows, 7)
	for _, r := range rows {
		assert.Equal(t, "AT", r.Country)
		assert.Equal(t, "Region AT111", r.NutsName)
		assert.True(t, r.Population.Valid)
		assert.Equal(t, int64(2000), r.Population.Int64)
	}

	assert.False(t, rows[0].Cases.Valid, "no extrapolation before the first known value")
	assert.InDelta(t, 10, rows[1].Cases.Float64, 1e-9)
	assert.InDelta(t, 20, rows[2].Cases.Float64, 1e-9)
	assert.InDelta(t, 30, rows[3].Cases.Float64, 1e-9)
	assert.InDelta(t, 40, rows[4].Cases.Float64, 1e-9)
	assert.False(t, rows[5].Cases.Valid, "no extrapolation after the last known value")
	assert.False(t, rows[6].Cases.Valid)

	assert.Equal(t, 2+5, report.Interpolated)
	assert.Equal(t, 3, report.UndefinedCases)

	assert.False(t, calendar.Region(0)[2].Cases.Valid, "input table is not modified")
	assert.Empty(t, calendar.Region(0)[0].Country)
}

func TestFill_NoExtrapolationFromDayTen(t *testing.T) {
	d0 := day("2021-01-01")
	input := []models.Observation{
		obs("AT111", d0.AddDate(0, 0, 9), 1000, 5),
		obs("AT111", d0.AddDate(0, 0, 14), 1000, 10),
		obs("AT112", d0, 1000, 1),
	}

	calendar, _, err := Calendarize(input)
	require.NoError(t, err)
	filled, _, err := Fill(context.Background(), calendar, 1)
	require.NoError(t, err)

	rows := filled.Region(0)
	for i := 0; i < 9; i++ {
		assert.False(t, rows[i].Cases.Valid, "day %d", i+1)
	}
	assert.True(t, rows[9].Cases.Valid)
}
