// Package stats 把设备事件流转换为状态与统计数据
//
// 包内函数都是纯函数：不做 I/O、不持有状态，"当前时间"由调用方传入。
package stats

import "time"

// 统计口径默认值
// 这些值是估算口径而非实测时长，保持可配置，不要互相"对齐"
const (
	// DefaultIdleGap 相邻事件间隔不超过该值视为同一时段
	DefaultIdleGap = 5 * time.Minute
	// DefaultHistogramPeriods 一天划分的时段数
	DefaultHistogramPeriods = 8
	// DefaultHistogramWeight 直方图中每个事件折算的分钟数
	DefaultHistogramWeight = 3
	// DefaultCorrelationDays 关联曲线的天数
	DefaultCorrelationDays = 7
	// DefaultCorrelationWeight 关联曲线中每个事件折算的分钟数
	DefaultCorrelationWeight = 5
)

// Params 统计参数
type Params struct {
	IdleGap           time.Duration  `yaml:"idle_gap"`
	HistogramPeriods  int            `yaml:"histogram_periods"`
	HistogramWeight   int            `yaml:"histogram_weight"`
	CorrelationDays   int            `yaml:"correlation_days"`
	CorrelationWeight int            `yaml:"correlation_weight"`
	Location          *time.Location `yaml:"-"`
}

// DefaultParams 返回默认参数（本地时区）
func DefaultParams() Params {
	return Params{
		IdleGap:           DefaultIdleGap,
		HistogramPeriods:  DefaultHistogramPeriods,
		HistogramWeight:   DefaultHistogramWeight,
		CorrelationDays:   DefaultCorrelationDays,
		CorrelationWeight: DefaultCorrelationWeight,
		Location:          time.Local,
	}
}

// Normalize 把非法值替换为默认值
func (p Params) Normalize() Params {
	if p.IdleGap <= 0 {
		p.IdleGap = DefaultIdleGap
	}
	if p.HistogramPeriods <= 0 || p.HistogramPeriods > 24 {
		p.HistogramPeriods = DefaultHistogramPeriods
	}
	if p.HistogramWeight < 0 {
		p.HistogramWeight = DefaultHistogramWeight
	}
	if p.CorrelationDays <= 0 {
		p.CorrelationDays = DefaultCorrelationDays
	}
	if p.CorrelationWeight < 0 {
		p.CorrelationWeight = DefaultCorrelationWeight
	}
	if p.Location == nil {
		p.Location = time.Local
	}
	return p
}

// StartOfDay 返回 t 所在自然日（loc 时区）的零点
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
