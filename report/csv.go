package report

import (
	"context"
	"strconv"
	"strings"

	"github.com/warp/nurse-pay/generic"
	"github.com/warp/nurse-pay/stats"
)

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"Date", "Type", "Establishment", "Service", "Hours", "Salary", "HourlyRate", "Status", "Notes"}

// UnknownRate labels missions whose rate no longer exists.
const UnknownRate = "Unknown"

// csvDateLayout is the day-first date format of spreadsheet users.
const csvDateLayout = "02/01/2006"

// ExportCSV renders the missions of a month as CSV. Every cell is quoted.
func (r *Reporter) ExportCSV(ctx context.Context, year int, month generic.MonthIndex) (string, error) {
	rates, missions, err := r.load(ctx)
	if err != nil {
		return "", err
	}
	rep := r.buildMonthly(rates, missions, year, month)
	r.log.DebugContext(ctx, "csv export", "year", year, "month", int(month)+1, "rows", len(rep.Missions))
	return RenderCSV(rep.Missions), nil
}

// RenderCSV renders missions as CSV rows under CSVHeader. Rows are joined
// with "\n" and every cell is double-quoted with inner quotes doubled.
func RenderCSV(missions []MissionWithRate) string {
	rows := make([]string, 0, len(missions)+1)
	rows = append(rows, csvRow(CSVHeader))
	for _, m := range missions {
		rows = append(rows, csvRow(csvCells(m)))
	}
	return strings.Join(rows, "\n")
}

func csvCells(m MissionWithRate) []string {
	acronym, hours, salary, hourly := UnknownRate, "0", "0", "0"
	if m.Rate != nil {
		acronym = m.Rate.Acronym
		hours = strconv.FormatFloat(m.Rate.Hours, 'f', -1, 64)
		salary = strconv.FormatFloat(m.Rate.Salary, 'f', -1, 64)
		hourly = stats.HourlyRate(*m.Rate).String()
	}
	return []string{
		csvDate(m.Date),
		acronym,
		m.Establishment,
		m.Service,
		hours,
		salary,
		hourly,
		m.Status.Label(),
		m.Notes,
	}
}

func csvDate(date string) string {
	day, err := generic.ParseDateKey(date)
	if err != nil {
		return date
	}
	return day.Time.Format(csvDateLayout)
}

func csvRow(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

