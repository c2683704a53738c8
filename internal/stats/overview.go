package stats

import (
	"math"
	"sort"
	"time"

	"babycare-backend/internal/models"
)

// ComputeOverview 计算单一分类、单个自然日的事件概览
// 调用方负责先按分类和日期过滤；events 不会被修改
//
// 按时间升序遍历：第 i 个事件延伸到下一个事件的时间，最后一个事件延伸到
// min(time+IdleGap, now)。相邻间隔超过 IdleGap 时重新开始一个时段。
// 每段延伸都计入总时长，最长的单段延伸作为"最长时段"，
// 其起点取所在时段的起点。
func ComputeOverview(events []models.Event, now time.Time, p Params) models.Overview {
	if len(events) == 0 {
		return models.EmptyOverview()
	}
	p = p.Normalize()

	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	var total, longest time.Duration
	segmentStart := sorted[0].Time
	longestStart, longestEnd := segmentStart, segmentStart

	for i, ev := range sorted {
		last := i == len(sorted)-1

		var end time.Time
		if last {
			end = ev.Time.Add(p.IdleGap)
			if now.Before(end) {
				end = now
			}
		} else {
			end = sorted[i+1].Time
		}

		extension := end.Sub(ev.Time)
		if extension < 0 {
			// 事件时间晚于 now（设备时钟偏差）
			extension = 0
		}
		total += extension

		if extension > longest {
			longest = extension
			longestStart = segmentStart
			longestEnd = end
		}

		if !last && sorted[i+1].Time.Sub(ev.Time) > p.IdleGap {
			segmentStart = sorted[i+1].Time
		}
	}

	return models.Overview{
		Count:           len(events),
		TotalMinutes:    round1(total.Minutes()),
		LongestPeriod:   formatPeriod(longestStart, longestEnd, p.Location),
		LongestDuration: int(math.Ceil(float64(longest) / float64(time.Minute))),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatPeriod(start, end time.Time, loc *time.Location) string {
	return start.In(loc).Format("15:04") + " - " + end.In(loc).Format("15:04")
}
