package models

// DailyView is the serialized form of a DailyRecord: dates as strings and
// undefined metrics as NoData
type DailyView struct {
	Country      string  `json:"country"`
	NutsID       string  `json:"nuts_id"`
	NutsName     string  `json:"nuts_name"`
	Date         string  `json:"date"`
	Population   *int64  `json:"population"`
	Cases        float64 `json:"cases"`
	CasesPop     float64 `json:"cases_pop"`
	Moving7dPop  float64 `json:"moving7d_pop"`
	Moving14dPop float64 `json:"moving14d_pop"`
	Moving28dPop float64 `json:"moving28d_pop"`
	CumulatedPop float64 `json:"cumulated_pop"`
}

// View converts the record for serialization
func (r *DailyRecord) View() DailyView {
	v := DailyView{
		Country:      r.Country,
		NutsID:       r.NutsID,
		NutsName:     r.NutsName,
		Date:         r.Date.Format(DateLayout),
		Cases:        OrNoData(r.Cases),
		CasesPop:     OrNoData(r.CasesPop),
		Moving7dPop:  OrNoData(r.Moving7dPop),
		Moving14dPop: OrNoData(r.Moving14dPop),
		Moving28dPop: OrNoData(r.Moving28dPop),
		CumulatedPop: OrNoData(r.CumulatedPop),
	}
	if r.Population.Valid {
		pop := r.Population.Int64
		v.Population = &pop
	}
	return v
}

// WeeklyView is the serialized form of a WeeklyRecord
type WeeklyView struct {
	Country       string  `json:"country"`
	NutsID        string  `json:"nuts_id"`
	NutsName      string  `json:"nuts_name"`
	WeekStart     string  `json:"date"`
	CasesW        float64 `json:"cases_w"`
	CasesPopW     float64 `json:"cases_pop_w"`
	Moving4wPop   float64 `json:"moving4w_pop"`
	Moving8wPop   float64 `json:"moving8w_pop"`
	CumulatedPopW float64 `json:"cumulated_pop_w"`
}

// View converts the record for serialization
func (r *WeeklyRecord) View() WeeklyView {
	return WeeklyView{
		Country:       r.Country,
		NutsID:        r.NutsID,
		NutsName:      r.NutsName,
		WeekStart:     r.WeekStart.Format(DateLayout),
		CasesW:        OrNoData(r.CasesW),
		CasesPopW:     OrNoData(r.CasesPopW),
		Moving4wPop:   OrNoData(r.Moving4wPop),
		Moving8wPop:   OrNoData(r.Moving8wPop),
		CumulatedPopW: OrNoData(r.CumulatedPopW),
	}
}
