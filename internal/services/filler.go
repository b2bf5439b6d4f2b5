package services

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"covid-waves/internal/models"
	"covid-waves/internal/series"
)

// FillReport counts the cells filled per column group
type FillReport struct {
	StaticFilled   int
	Interpolated   int
	UndefinedCases int
}

type regionFill struct {
	static       int
	interpolated int
	undefined    int
}

// Fill propagates the static columns of every region across its gaps and
// interpolates cases between known values. It returns a new table with the
// same region spans.
func Fill(ctx context.Context, table *models.Table[models.Observation], workers int) (*models.Table[models.Observation], *FillReport, error) {
	out := &models.Table[models.Observation]{
		Rows:    make([]models.Observation, len(table.Rows)),
		Regions: append([]models.Span(nil), table.Regions...),
	}
	copy(out.Rows, table.Rows)

	counts := make([]regionFill, len(out.Regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range out.Regions {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			counts[i] = fillRegion(out.Region(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	report := &FillReport{}
	for _, c := range counts {
		report.StaticFilled += c.static
		report.Interpolated += c.interpolated
		report.UndefinedCases += c.undefined
	}
	return out, report, nil
}

// fillRegion fills one region's rows in place
func fillRegion(rows []models.Observation) regionFill {
	var counts regionFill
	n := len(rows)

	country := make([]bool, n)
	name := make([]bool, n)
	population := make([]bool, n)
	cases := make([]sql.NullFloat64, n)
	for i, r := range rows {
		country[i] = r.Country != ""
		name[i] = r.NutsName != ""
		population[i] = r.Population.Valid
		cases[i] = r.Cases
	}

	countryIdx := series.FillIndex(country)
	nameIdx := series.FillIndex(name)
	populationIdx := series.FillIndex(population)

	// fill indices always point at originally known cells, which are never overwritten
	for i := range rows {
		if !country[i] && countryIdx[i] >= 0 {
			rows[i].Country = rows[countryIdx[i]].Country
			counts.static++
		}
		if !name[i] && nameIdx[i] >= 0 {
			rows[i].NutsName = rows[nameIdx[i]].NutsName
			counts.static++
		}
		if !population[i] && populationIdx[i] >= 0 {
			rows[i].Population = rows[populationIdx[i]].Population
			counts.static++
		}
	}

	for i, v := range series.Interpolate(cases) {
		if v.Valid && !cases[i].Valid {
			counts.interpolated++
		}
		if !v.Valid {
			counts.undefined++
		}
		rows[i].Cases = v
	}
	return counts
}
