// Package export 生成统计数据的 Excel 报表
package export

import (
	"bytes"
	"fmt"
	"time"

	"babycare-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetOverview    = "Overview"
	SheetHistogram   = "Histogram"
	SheetCorrelation = "Correlation"
)

var (
	overviewHeader    = []string{"Category", "Count", "Total Minutes", "Longest Period", "Longest Duration (min)"}
	histogramHeader   = []string{"Period", "Bad Position (min)", "Crying (min)"}
	correlationHeader = []string{"Day", "Bad Position (min)", "Crying (min)"}
)

// Report 导出内容
type Report struct {
	DeviceID    string
	GeneratedAt time.Time
	Location    *time.Location
	Statistics  models.StatisticsData
}

// GenerateStatisticsWorkbook 生成包含 Overview / Histogram / Correlation 三个工作表的报表
func GenerateStatisticsWorkbook(r Report) ([]byte, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	s := r.Statistics

	overviewRows := [][]interface{}{
		overviewRow("Bad Position", s.Overview.BadPosition),
		overviewRow("Crying", s.Overview.Crying),
		{},
		{"Device", r.DeviceID},
		{"Generated At", r.GeneratedAt.In(loc).Format("2006-01-02 15:04:05")},
	}

	periods := len(s.Histogram.BadPosition)
	if len(s.Histogram.Crying) > periods {
		periods = len(s.Histogram.Crying)
	}
	histogramRows := make([][]interface{}, 0, periods)
	for i := 0; i < periods; i++ {
		histogramRows = append(histogramRows, []interface{}{
			PeriodLabel(i, periods),
			valueAt(s.Histogram.BadPosition, i),
			valueAt(s.Histogram.Crying, i),
		})
	}

	correlationRows := make([][]interface{}, 0, len(s.Correlation.BadPosition))
	for i, p := range s.Correlation.BadPosition {
		cry := 0
		if i < len(s.Correlation.Crying) {
			cry = s.Correlation.Crying[i].Value
		}
		correlationRows = append(correlationRows, []interface{}{p.Label, p.Value, cry})
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]interface{}
		widths []float64
	}{
		{SheetOverview, overviewHeader, overviewRows, []float64{16, 10, 15, 18, 22}},
		{SheetHistogram, histogramHeader, histogramRows, []float64{16, 20, 15}},
		{SheetCorrelation, correlationHeader, correlationRows, []float64{10, 20, 15}},
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		if err := writeSheet(f, sh.name, sh.header, sh.rows, sh.widths, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// PeriodLabel 时段标签，如 8 个时段时第 1 段为 "03:00-06:00"
func PeriodLabel(index, periods int) string {
	if periods <= 0 {
		return ""
	}
	minutesPer := 24 * 60 / periods
	start := index * minutesPer
	end := start + minutesPer
	return fmt.Sprintf("%02d:%02d-%02d:%02d", start/60, start%60, end/60, end%60)
}

func overviewRow(category string, o models.Overview) []interface{} {
	return []interface{}{category, o.Count, o.TotalMinutes, o.LongestPeriod, o.LongestDuration}
}

func valueAt(values []int, i int) int {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}, widths []float64, headerStyle int) error {
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+2, sheet, err)
		}
	}
	return nil
}
