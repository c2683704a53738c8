package models

// NoPeriod 没有事件时最长时段的占位文本
const NoPeriod = "-"

// Overview 单日单分类概览
type Overview struct {
	Count           int     `json:"count"`
	TotalMinutes    float64 `json:"total_minutes"`
	LongestPeriod   string  `json:"longest_period"`
	LongestDuration int     `json:"longest_duration"`
}

// EmptyOverview 无事件时的概览
func EmptyOverview() Overview {
	return Overview{LongestPeriod: NoPeriod}
}

// SeriesPoint 关联曲线上的一个点
type SeriesPoint struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// OverviewPair 两个分类的今日概览
type OverviewPair struct {
	BadPosition Overview `json:"bad_position"`
	Crying      Overview `json:"crying"`
}

// HistogramPair 两个分类的时段直方图
type HistogramPair struct {
	BadPosition []int `json:"bad_position"`
	Crying      []int `json:"crying"`
}

// CorrelationPair 两个分类的逐日曲线
type CorrelationPair struct {
	BadPosition []SeriesPoint `json:"bad_position"`
	Crying      []SeriesPoint `json:"crying"`
}

// StatisticsData 统计页数据
type StatisticsData struct {
	Overview    OverviewPair    `json:"overview"`
	Histogram   HistogramPair   `json:"histogram"`
	Correlation CorrelationPair `json:"correlation"`
}

// DeviceSnapshot 统计任务写入缓存的快照
type DeviceSnapshot struct {
	DeviceID    string         `json:"device_id"`
	Status      DeviceStatus   `json:"status"`
	Statistics  StatisticsData `json:"statistics"`
	EventCount  int            `json:"event_count"`
	GeneratedAt int64          `json:"generated_at"`
}
