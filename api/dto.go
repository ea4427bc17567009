/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Rates, missions and
  settings are returned as stored (their types carry JSON tags). Computed
  values that hold decimals internally are flattened to float64 here so
  clients get plain JSON numbers.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in the payroll package, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - stats/engine.go: MonthlyStats, YearOverview
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/nurse-pay/backup"
	"github.com/warp/nurse-pay/calendar"
	"github.com/warp/nurse-pay/payroll"
	"github.com/warp/nurse-pay/report"
	"github.com/warp/nurse-pay/stats"
)

// =============================================================================
// STATS
// =============================================================================

// MonthlyStatsDTO is one month of aggregated pay.
type MonthlyStatsDTO struct {
	Year                 int     `json:"year"`
	Month                int     `json:"month"`
	TotalEstimatedSalary float64 `json:"totalEstimatedSalary"`
	TotalRealGrossSalary float64 `json:"totalRealGrossSalary"`
	TotalRealNetSalary   float64 `json:"totalRealNetSalary"`
	TotalHours           float64 `json:"totalHours"`
	CountedHours         float64 `json:"countedHours"`
	MissionCount         int     `json:"missionCount"`
	RealSalaryCount      int     `json:"realSalaryCount"`
	AverageHourlyRate    float64 `json:"averageHourlyRate"`
	SalaryDifference     float64 `json:"salaryDifference"`
}

// YearOverviewDTO is the twelve months of a year plus their totals.
type YearOverviewDTO struct {
	Year   int               `json:"year"`
	Months []MonthlyStatsDTO `json:"months"`
	Totals MonthlyStatsDTO   `json:"totals"`
}

// EstablishmentRowDTO is one establishment of a breakdown.
type EstablishmentRowDTO struct {
	Name            string   `json:"name"`
	MissionCount    int      `json:"missionCount"`
	TotalHours      float64  `json:"totalHours"`
	TotalGross      float64  `json:"totalGross"`
	TotalNet        float64  `json:"totalNet"`
	AvgHourlyRate   float64  `json:"avgHourlyRate"`
	EstimatedSalary *float64 `json:"estimatedSalary,omitempty"`
	Difference      *float64 `json:"difference,omitempty"`
}

// EstablishmentTotalsDTO sums a breakdown.
type EstablishmentTotalsDTO struct {
	Establishments  int      `json:"establishments"`
	MissionCount    int      `json:"missionCount"`
	TotalHours      float64  `json:"totalHours"`
	TotalGross      float64  `json:"totalGross"`
	TotalNet        float64  `json:"totalNet"`
	AvgHourlyRate   float64  `json:"avgHourlyRate"`
	EstimatedSalary *float64 `json:"estimatedSalary,omitempty"`
	Difference      *float64 `json:"difference,omitempty"`
}

// EstablishmentReportDTO is a breakdown of a month (month set) or a year.
type EstablishmentReportDTO struct {
	Year           int                    `json:"year"`
	Month          *int                   `json:"month,omitempty"`
	Establishments []EstablishmentRowDTO  `json:"establishments"`
	Totals         EstablishmentTotalsDTO `json:"totals"`
}

func toMonthlyStatsDTO(s stats.MonthlyStats) MonthlyStatsDTO {
	return MonthlyStatsDTO{
		Year:                 s.Year,
		Month:                int(s.Month),
		TotalEstimatedSalary: s.TotalEstimatedSalary.InexactFloat64(),
		TotalRealGrossSalary: s.TotalRealGrossSalary.InexactFloat64(),
		TotalRealNetSalary:   s.TotalRealNetSalary.InexactFloat64(),
		TotalHours:           s.TotalHours.InexactFloat64(),
		CountedHours:         s.CountedHours.InexactFloat64(),
		MissionCount:         s.MissionCount,
		RealSalaryCount:      s.RealSalaryCount,
		AverageHourlyRate:    s.AverageHourlyRate.InexactFloat64(),
		SalaryDifference:     s.SalaryDifference.InexactFloat64(),
	}
}

func toYearOverviewDTO(o stats.YearOverview) YearOverviewDTO {
	dto := YearOverviewDTO{Year: o.Year, Months: make([]MonthlyStatsDTO, len(o.Months))}
	for i, m := range o.Months {
		dto.Months[i] = toMonthlyStatsDTO(m)
	}
	dto.Totals = toMonthlyStatsDTO(o.Totals)
	return dto
}

func toEstablishmentReportDTO(rep stats.EstablishmentReport) EstablishmentReportDTO {
	month := rep.Scope.IsMonth()
	// Estimates only make sense per month.
	optional := func(d decimal.Decimal) *float64 {
		if !month {
			return nil
		}
		v := d.InexactFloat64()
		return &v
	}

	dto := EstablishmentReportDTO{
		Year:           rep.Scope.Year,
		Establishments: make([]EstablishmentRowDTO, 0, len(rep.Establishments)),
		Totals: EstablishmentTotalsDTO{
			Establishments:  rep.Totals.Establishments,
			MissionCount:    rep.Totals.MissionCount,
			TotalHours:      rep.Totals.TotalHours.InexactFloat64(),
			TotalGross:      rep.Totals.TotalGross.InexactFloat64(),
			TotalNet:        rep.Totals.TotalNet.InexactFloat64(),
			AvgHourlyRate:   rep.Totals.AvgHourlyRate.InexactFloat64(),
			EstimatedSalary: optional(rep.Totals.EstimatedSalary),
			Difference:      optional(rep.Totals.Difference),
		},
	}
	if month {
		m := int(*rep.Scope.Month)
		dto.Month = &m
	}
	for _, row := range rep.Establishments {
		dto.Establishments = append(dto.Establishments, EstablishmentRowDTO{
			Name:            row.Name,
			MissionCount:    row.MissionCount,
			TotalHours:      row.TotalHours.InexactFloat64(),
			TotalGross:      row.TotalGross.InexactFloat64(),
			TotalNet:        row.TotalNet.InexactFloat64(),
			AvgHourlyRate:   row.AvgHourlyRate.InexactFloat64(),
			EstimatedSalary: optional(row.EstimatedSalary),
			Difference:      optional(row.Difference),
		})
	}
	return dto
}

// =============================================================================
// CALENDAR
// =============================================================================

// GridDayDTO is one cell of a month grid.
type GridDayDTO struct {
	Date           string            `json:"date"`
	DayNumber      int               `json:"dayNumber"`
	IsCurrentMonth bool              `json:"isCurrentMonth"`
	IsToday        bool              `json:"isToday"`
	HasMission     bool              `json:"hasMission"`
	Missions       []payroll.Mission `json:"missions"`
}

// GridDTO is a month grid split into weeks, Monday first.
type GridDTO struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Label string         `json:"label"`
	Weeks [][]GridDayDTO `json:"weeks"`
}

func toGridDTO(year int, month int, label string, days []calendar.Day) GridDTO {
	dto := GridDTO{Year: year, Month: month, Label: label}
	for _, week := range calendar.Weeks(days) {
		row := make([]GridDayDTO, len(week))
		for i, d := range week {
			missions := d.Missions
			if missions == nil {
				missions = []payroll.Mission{}
			}
			row[i] = GridDayDTO{
				Date:           d.Key,
				DayNumber:      d.DayNumber,
				IsCurrentMonth: d.IsCurrentMonth,
				IsToday:        d.IsToday,
				HasMission:     d.HasMission,
				Missions:       missions,
			}
		}
		dto.Weeks = append(dto.Weeks, row)
	}
	return dto
}

// GoToRequest moves a view cursor to a given month.
type GoToRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 0 = January
}

// YearCursorDTO is the year shown by the annual summary.
type YearCursorDTO struct {
	Year  int  `json:"year"`
	Moved bool `json:"moved"`
}

// =============================================================================
// REPORTS
// =============================================================================

// MonthlyReportDTO is a monthly report with its stats flattened. The
// Stats field shadows the embedded one when encoding.
type MonthlyReportDTO struct {
	report.MonthlyReport
	Stats MonthlyStatsDTO `json:"stats"`
}

// UpcomingResponse lists the missions of the next days.
type UpcomingResponse struct {
	Days     int               `json:"days"`
	Missions []report.Upcoming `json:"missions"`
}

// =============================================================================
// BACKUP & MAINTENANCE
// =============================================================================

// BackupListResponse lists the backups held by one target, oldest first.
type BackupListResponse struct {
	Target  string          `json:"target"`
	Backups []backup.Object `json:"backups"`
}

// StorageInfoDTO adds the time of the last backup to the storage summary.
type StorageInfoDTO struct {
	payroll.StorageInfo
	LastBackup *time.Time `json:"lastBackup"`
}

// SeedResponse reports how many default rates were loaded.
type SeedResponse struct {
	Added int `json:"added"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
