package incentive

import (
	"fmt"
	"time"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// QuarterBounds 返回季度起止时间 [start, end)
func QuarterBounds(year, quarter int, loc *time.Location) (time.Time, time.Time, error) {
	if quarter < 1 || quarter > 4 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid quarter %d", quarter)
	}
	if year <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid year %d", year)
	}
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 3, 0), nil
}

// MonthPeriod 返回 YYYY-MM 格式的月份
func MonthPeriod(t time.Time) string {
	return t.Format(monthLayout)
}

// PreviousMonthPeriod 返回上一个月份
func PreviousMonthPeriod(period string) (string, error) {
	t, err := time.Parse(monthLayout, period)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, -1, 0).Format(monthLayout), nil
}

// ValidMonthPeriod 校验月份格式
func ValidMonthPeriod(period string) bool {
	_, err := time.Parse(monthLayout, period)
	return err == nil
}

// ActivityDate 返回 YYYY-MM-DD 格式的日期
func ActivityDate(t time.Time) string {
	return t.Format(dateLayout)
}

// StartOfDay 截断到当天零点
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
