package stats

import (
	"time"

	"babycare-backend/internal/models"
)

// BuildCorrelation 生成最近 days 天（含今天）每天一个点的两条曲线，旧的在前
// 每天的值 = 当天事件数 × weight，标签为当天零点的 dd/mm
func BuildCorrelation(badPosition, crying []models.Event, now time.Time, days, weight int, loc *time.Location) ([]models.SeriesPoint, []models.SeriesPoint) {
	if days <= 0 {
		days = DefaultCorrelationDays
	}
	today := StartOfDay(now, loc)

	bad := make([]models.SeriesPoint, 0, days)
	cry := make([]models.SeriesPoint, 0, days)

	for i := days - 1; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1)
		label := start.Format("02/01")

		bad = append(bad, models.SeriesPoint{
			Value: countInWindow(badPosition, start, end) * weight,
			Label: label,
		})
		cry = append(cry, models.SeriesPoint{
			Value: countInWindow(crying, start, end) * weight,
			Label: label,
		})
	}
	return bad, cry
}

func countInWindow(events []models.Event, start, end time.Time) int {
	n := 0
	for _, ev := range events {
		if !ev.Time.Before(start) && ev.Time.Before(end) {
			n++
		}
	}
	return n
}
