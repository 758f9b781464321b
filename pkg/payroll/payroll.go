// Package payroll 提供预算测算共用的期间与按月折算工具。
//
// 折算采用"30 天制"：任何完整月份计 30 天，月内部分覆盖按日号计算，
// 终止日为自然月末（或 31 日）时视为覆盖到第 30 天。
package payroll

import (
	"fmt"
	"math"
	"time"
)

// DaysPerMonth 30 天制下每月的计薪天数
const DaysPerMonth = 30

// YearMonth 期间（年-月）
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth 解析 "YYYY-MM" 格式的期间
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("期间格式应为 YYYY-MM: %q", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// YearMonthOf 返回日期所在期间
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// String 格式化为 "YYYY-MM"
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// First 期间首日
func (ym YearMonth) First() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Last 期间最后一个自然日
func (ym YearMonth) Last() time.Time {
	return ym.First().AddDate(0, 1, -1)
}

// Contains 判断日期是否落在期间内
func (ym YearMonth) Contains(t time.Time) bool {
	return t.Year() == ym.Year && t.Month() == ym.Month
}

// MonthsOf 返回某一年度的 12 个期间
func MonthsOf(year int) []YearMonth {
	months := make([]YearMonth, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, YearMonth{Year: year, Month: m})
	}
	return months
}

// Base30Days 计算 [start, end] 在期间 ym 内的 30 天制计薪天数
func Base30Days(start, end time.Time, ym YearMonth) int {
	start = dateOnly(start)
	end = dateOnly(end)
	if start.After(end) {
		return 0
	}

	monthStart := ym.First()
	monthEnd := ym.Last()

	from := start
	if monthStart.After(from) {
		from = monthStart
	}
	to := end
	if monthEnd.Before(to) {
		to = monthEnd
	}
	if from.After(to) {
		return 0
	}

	dIni := 1
	if ym.Contains(start) {
		dIni = min(start.Day(), DaysPerMonth)
	}

	dFin := DaysPerMonth
	if ym.Contains(end) {
		if end.Day() < DaysPerMonth && end.Day() != monthEnd.Day() {
			dFin = end.Day()
		}
	}

	return max(0, dFin-dIni+1)
}

// ProrateBase30 将月度金额按 30 天制折算到期间 ym，四舍五入到整数货币单位
func ProrateBase30(monthly float64, start, end time.Time, ym YearMonth) float64 {
	days := Base30Days(start, end, ym)
	if days == 0 || monthly == 0 {
		return 0
	}
	return RoundUnits(monthly * float64(days) / DaysPerMonth)
}

// RoundUnits 四舍五入到整数货币单位（0.5 向远离零方向进位）
func RoundUnits(v float64) float64 {
	return math.Round(v)
}

// RoundCents 四舍五入到分，用于汇总实发金额
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
