package stats

import (
	"math"
	"time"

	"babycare-backend/internal/models"
)

// BinHistogram 按事件自身的"小时"把事件分到 periods 个等宽时段，每个事件计 weight 分钟
// 使用的是一天中的小时（同一小时、不同日期的事件落在同一格），用于展示日内规律
func BinHistogram(events []models.Event, periods, weight int, loc *time.Location) []int {
	if periods <= 0 || periods > 24 {
		periods = DefaultHistogramPeriods
	}
	if loc == nil {
		loc = time.Local
	}

	buckets := make([]int, periods)
	hoursPerPeriod := 24.0 / float64(periods)

	for _, ev := range events {
		hour := ev.Time.In(loc).Hour()
		idx := int(math.Floor(float64(hour) / hoursPerPeriod))
		if idx < 0 {
			idx = 0
		}
		if idx > periods-1 {
			idx = periods - 1
		}
		buckets[idx] += weight
	}
	return buckets
}
