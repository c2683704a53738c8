package export

import (
	"bytes"
	"testing"
	"time"

	"babycare-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleStatistics() models.StatisticsData {
	s := models.StatisticsData{}
	s.Overview.BadPosition = models.Overview{Count: 3, TotalMinutes: 12.5, LongestPeriod: "08:00 - 08:10", LongestDuration: 10}
	s.Overview.Crying = models.EmptyOverview()
	s.Histogram.BadPosition = []int{0, 0, 9, 0, 0, 0, 0, 0}
	s.Histogram.Crying = []int{3, 0, 0, 0, 0, 0, 0, 0}
	for _, label := range []string{"24/02", "25/02", "26/02", "27/02", "28/02", "29/02", "01/03"} {
		s.Correlation.BadPosition = append(s.Correlation.BadPosition, models.SeriesPoint{Label: label})
		s.Correlation.Crying = append(s.Correlation.Crying, models.SeriesPoint{Label: label})
	}
	s.Correlation.BadPosition[6].Value = 15
	s.Correlation.Crying[5].Value = 5
	return s
}

func TestGenerateStatisticsWorkbook(t *testing.T) {
	data, err := GenerateStatisticsWorkbook(Report{
		DeviceID:    "cam-1",
		GeneratedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Location:    time.UTC,
		Statistics:  sampleStatistics(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetOverview, SheetHistogram, SheetCorrelation}, f.GetSheetList())

	rows, err := f.GetRows(SheetOverview)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, overviewHeader, rows[0])
	assert.Equal(t, []string{"Bad Position", "3", "12.5", "08:00 - 08:10", "10"}, rows[1])
	assert.Equal(t, []string{"Crying", "0", "0", "-", "0"}, rows[2])

	rows, err = f.GetRows(SheetHistogram)
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, []string{"00:00-03:00", "0", "3"}, rows[1])
	assert.Equal(t, []string{"06:00-09:00", "9", "0"}, rows[3])

	rows, err = f.GetRows(SheetCorrelation)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"24/02", "0", "0"}, rows[1])
	assert.Equal(t, []string{"01/03", "15", "0"}, rows[7])
}

func TestGenerateStatisticsWorkbook_Empty(t *testing.T) {
	data, err := GenerateStatisticsWorkbook(Report{DeviceID: "cam-1", GeneratedAt: time.Now()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetHistogram)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "00:00-03:00", PeriodLabel(0, 8))
	assert.Equal(t, "21:00-24:00", PeriodLabel(7, 8))
	assert.Equal(t, "04:00-08:00", PeriodLabel(1, 6))
	assert.Equal(t, "", PeriodLabel(0, 0))
}
