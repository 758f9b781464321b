// Package fielddiff 计算两组字段值之间的差异。
//
// 变更申请的审阅视图与审计日志的 UPDATE 记录共用同一套比较规则：
// 数值与数字字符串按数值比较（"100" 与 100 相等），两个字符串之间不做数值转换
// （"0501" 与 "501" 不等）；日期按日历日比较
// （"2025-01-01" 与 "2025-01-01T00:00:00Z" 相等），其余按去空白后的字符串比较。
package fielddiff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// 差异计算的操作类型
const (
	KindCreate = "CREATE"
	KindModify = "MODIFY"
	KindUpdate = "UPDATE"
	KindDelete = "DELETE"
)

// Change 单个字段的变化
type Change struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// Diff 按操作类型计算字段差异，结果按字段名升序
//
//   - CREATE：after 中每个字段都视为新增
//   - DELETE：before 中每个字段都视为删除
//   - MODIFY/UPDATE：只比较 after 中出现的字段，宽松相等的字段跳过；
//     after 未提及的字段视为未改变
func Diff(kind string, before, after map[string]any) []Change {
	changes := make([]Change, 0)

	switch strings.ToUpper(kind) {
	case KindCreate:
		for _, k := range sortedKeys(after) {
			changes = append(changes, Change{Field: k, After: after[k]})
		}
	case KindDelete:
		for _, k := range sortedKeys(before) {
			changes = append(changes, Change{Field: k, Before: before[k]})
		}
	default:
		for _, k := range sortedKeys(after) {
			prev := before[k]
			if LooseEqual(prev, after[k]) {
				continue
			}
			changes = append(changes, Change{Field: k, Before: prev, After: after[k]})
		}
	}

	return changes
}

// LooseEqual 宽松相等判断
func LooseEqual(a, b any) bool {
	if isBlank(a) && isBlank(b) {
		return true
	}

	// 至少一侧是真正的数值时才做数值转换
	if !isString(a) || !isString(b) {
		fa, okA := AsFloat(a)
		fb, okB := AsFloat(b)
		if okA && okB {
			return math.Abs(fa-fb) < 1e-9
		}
	}

	da, okA := AsDate(a)
	db, okB := AsDate(b)
	if okA && okB {
		return da.Equal(db)
	}

	return strings.TrimSpace(AsString(a)) == strings.TrimSpace(AsString(b))
}

// AsFloat 尝试将值解释为数值
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// AsDate 尝试将值解释为日历日（UTC 零点）
func AsDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return truncateDay(x), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return truncateDay(*x), true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t), true
			}
		}
	}
	return time.Time{}, false
}

// AsString 将值格式化为比较/展示用字符串
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.DateOnly)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.DateOnly)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
