package stats

import (
	"time"

	"babycare-backend/internal/models"
)

// BuildStatistics 由一周内的事件生成完整统计数据
// 今日概览使用本地零点起的 24 小时；直方图使用 now 之前 24 小时；
// 关联曲线使用最近 CorrelationDays 天
func BuildStatistics(events []models.Event, now time.Time, p Params) models.StatisticsData {
	p = p.Normalize()

	badPosition := models.FilterCategory(events, models.CategoryBadPosition)
	crying := models.FilterCategory(events, models.CategoryCrying)

	todayStart := StartOfDay(now, p.Location)
	todayEnd := todayStart.AddDate(0, 0, 1)

	trailingStart := now.Add(-24 * time.Hour)
	badTrailing := trailingDay(badPosition, trailingStart, now)
	cryTrailing := trailingDay(crying, trailingStart, now)

	badSeries, crySeries := BuildCorrelation(badPosition, crying, now, p.CorrelationDays, p.CorrelationWeight, p.Location)

	return models.StatisticsData{
		Overview: models.OverviewPair{
			BadPosition: ComputeOverview(models.FilterWindow(badPosition, todayStart, todayEnd), now, p),
			Crying:      ComputeOverview(models.FilterWindow(crying, todayStart, todayEnd), now, p),
		},
		Histogram: models.HistogramPair{
			BadPosition: BinHistogram(badTrailing, p.HistogramPeriods, p.HistogramWeight, p.Location),
			Crying:      BinHistogram(cryTrailing, p.HistogramPeriods, p.HistogramWeight, p.Location),
		},
		Correlation: models.CorrelationPair{
			BadPosition: badSeries,
			Crying:      crySeries,
		},
	}
}

func trailingDay(events []models.Event, from, now time.Time) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Time.Before(from) && !ev.Time.After(now) {
			out = append(out, ev)
		}
	}
	return out
}
