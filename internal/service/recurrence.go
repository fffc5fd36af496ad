package service

import (
	"time"

	"ritmofit/backend/internal/model"
)

// ── 场次推算 ──────────────────────────────────────────────
//
// 课程模板按周重复（星期 + 开始/结束时间），这里负责把模板换算成具体场次。
// 所有计算都在参考时刻所在的时区内进行。
// ─────────────────────────────────────────────────────────────

// Occurrence 某个课程模板的一次具体场次，区间为 [Start, End)
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Overlaps 半开区间重叠判断
func (o Occurrence) Overlaps(other Occurrence) bool {
	return o.Start.Before(other.End) && other.Start.Before(o.End)
}

// ResolveNextOccurrence 按星期名称（大小写与重音不敏感）推算下一场次日期
func ResolveNextOccurrence(weekdayName, startTime string, ref time.Time) (time.Time, error) {
	weekday, ok := model.ParseWeekday(weekdayName)
	if !ok {
		return time.Time{}, ErrInvalidSchedule
	}
	return NextOccurrenceDate(weekday, startTime, ref)
}

// NextOccurrenceDate 返回下一场次的日期（当天零点）
// 目标星期即为今天且开始时间不晚于 ref 的时分时，顺延 7 天
func NextOccurrenceDate(weekday model.Weekday, startTime string, ref time.Time) (time.Time, error) {
	if !weekday.Valid() {
		return time.Time{}, ErrInvalidSchedule
	}

	offset := (int(weekday) - int(ref.Weekday()) + 7) % 7
	if offset == 0 && model.ClockMinutes(startTime) <= ref.Hour()*60+ref.Minute() {
		offset = 7
	}

	y, m, d := ref.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, ref.Location()), nil
}

// CombineDateAndTime 日期 + "HH:MM" 组成具体时刻，非法时间按 00:00 处理
func CombineDateAndTime(date time.Time, clock string) time.Time {
	h, m, _ := model.ParseClock(clock)
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, date.Location())
}

// NormalizeWeekday 取时刻在指定语言下的规范星期名称
func NormalizeWeekday(t time.Time, locale string) string {
	return model.Weekday(t.Weekday()).Token(locale)
}

// ResolveOccurrence 推算课程模板在 ref 之后的下一场次
func ResolveOccurrence(schedule model.Schedule, ref time.Time) (Occurrence, error) {
	date, err := NextOccurrenceDate(schedule.Weekday, schedule.StartTime, ref)
	if err != nil {
		return Occurrence{}, err
	}
	return occurrenceOn(date, schedule), nil
}

// OccurrenceAt 已知开始时刻（预约的 classDate）对应的场次
func OccurrenceAt(start time.Time, schedule model.Schedule, loc *time.Location) Occurrence {
	if loc != nil {
		start = start.In(loc)
	}
	end := CombineDateAndTime(start, schedule.EndTime)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return Occurrence{Start: start, End: end}
}

func occurrenceOn(date time.Time, schedule model.Schedule) Occurrence {
	start := CombineDateAndTime(date, schedule.StartTime)
	end := CombineDateAndTime(date, schedule.EndTime)
	// 结束不晚于开始视为跨零点
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return Occurrence{Start: start, End: end}
}
