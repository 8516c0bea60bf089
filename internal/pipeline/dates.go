package pipeline

import (
	"fmt"
	"strings"
	"time"

	"marketbrief/internal/model"
)

// Report flavors, driving the fallback period when bullets carry no dates.
const (
	ReportDaily  = "daily"
	ReportWeekly = "weekly"
)

// ParseDateRange parses a bullet date_range string into its boundary
// dates. Supported forms, all year-less and resolved against the given
// year: "Dec 11", "Dec 11-12", "Nov 28-Dec 04", and comma lists of those.
// Unparseable tokens are skipped; an empty result means no usable dates.
func ParseDateRange(s string, year int, loc *time.Location) []time.Time {
	var out []time.Time
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		out = append(out, parseDateToken(token, year, loc)...)
	}
	return out
}

func parseDateToken(token string, year int, loc *time.Location) []time.Time {
	parts := strings.SplitN(token, "-", 2)
	start, ok := parseMonthDay(parts[0], year, loc)
	if !ok {
		return nil
	}
	if len(parts) == 1 {
		return []time.Time{start}
	}

	// Range end: either "Dec 04" or a bare day number inheriting the
	// start month.
	endStr := strings.TrimSpace(parts[1])
	if end, ok := parseMonthDay(endStr, year, loc); ok {
		return []time.Time{start, end}
	}
	var day int
	if _, err := fmt.Sscanf(endStr, "%d", &day); err == nil && day >= 1 && day <= 31 {
		return []time.Time{start, time.Date(year, start.Month(), day, 0, 0, 0, 0, loc)}
	}
	return []time.Time{start}
}

func parseMonthDay(s string, year int, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"Jan 2", "January 2"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

// ConsolidateDates renders the min/max of a date set as a compact range:
// same day "Dec 11", same month "Dec 11-12", cross-month "Nov 28-Dec 04".
func ConsolidateDates(dates []time.Time) string {
	if len(dates) == 0 {
		return ""
	}
	lo, hi := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(lo) {
			lo = d
		}
		if d.After(hi) {
			hi = d
		}
	}

	if lo.Equal(hi) {
		return lo.Format("Jan 02")
	}
	if lo.Month() == hi.Month() {
		return fmt.Sprintf("%s-%02d", lo.Format("Jan 02"), hi.Day())
	}
	return fmt.Sprintf("%s-%s", lo.Format("Jan 02"), hi.Format("Jan 02"))
}

// ReportPeriodDateRange is the fallback when no bullet carried dates:
// daily reports cover today, weekly reports the 7-day window ending
// yesterday.
func ReportPeriodDateRange(reportType string, now time.Time) string {
	if reportType == ReportWeekly {
		end := now.AddDate(0, 0, -1)
		start := end.AddDate(0, 0, -6)
		return ConsolidateDates([]time.Time{start, end})
	}
	return now.Format("Jan 02")
}

// PostProcessPhase4Dates replaces the model-supplied date_range on all
// three paragraphs with one deterministically computed from the surviving
// bullets' date_range strings, localized to US/Eastern with the current
// year assumed. All three paragraphs get the same range.
func PostProcessPhase4Dates(phase4 *model.Phase4, survivors map[string][]*model.Bullet, reportType string, now time.Time, loc *time.Location) {
	if phase4 == nil {
		return
	}
	localNow := now.In(loc)

	var dates []time.Time
	for _, bullets := range survivors {
		for _, b := range bullets {
			if b.DateRange == "" {
				continue
			}
			dates = append(dates, ParseDateRange(b.DateRange, localNow.Year(), loc)...)
		}
	}

	dateRange := ConsolidateDates(dates)
	if dateRange == "" {
		dateRange = ReportPeriodDateRange(reportType, localNow)
	}

	phase4.BottomLine.DateRange = dateRange
	phase4.UpsideScenario.DateRange = dateRange
	phase4.DownsideScenario.DateRange = dateRange
}
