package service

import (
	"errors"
	"testing"
	"time"

	"ritmofit/backend/internal/model"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}

func TestResolveNextOccurrence_TuesdayToMonday(t *testing.T) {
	loc := mustLoc(t)
	ref := time.Date(2025, 6, 10, 10, 0, 0, 0, loc) // 周二

	got, err := ResolveNextOccurrence("lunes", "08:00", ref)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	want := time.Date(2025, 6, 16, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("期望 %v, 实际 %v", want, got)
	}
}

func TestResolveNextOccurrence_SameDay(t *testing.T) {
	loc := mustLoc(t)
	monday := func(h, m int) time.Time { return time.Date(2025, 6, 9, h, m, 0, 0, loc) }

	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{"开始前返回今天", monday(7, 0), time.Date(2025, 6, 9, 0, 0, 0, 0, loc)},
		{"开始后顺延一周", monday(9, 0), time.Date(2025, 6, 16, 0, 0, 0, 0, loc)},
		{"恰好开始时刻顺延一周", monday(8, 0), time.Date(2025, 6, 16, 0, 0, 0, 0, loc)},
		{"开始前一分钟返回今天", monday(7, 59), time.Date(2025, 6, 9, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveNextOccurrence("lunes", "08:00", tt.ref)
			if err != nil {
				t.Fatalf("不应返回错误: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("期望 %v, 实际 %v", tt.want, got)
			}
		})
	}
}

func TestResolveNextOccurrence_Normalization(t *testing.T) {
	loc := mustLoc(t)
	ref := time.Date(2025, 6, 10, 10, 0, 0, 0, loc)

	for _, name := range []string{"Miércoles", "MIERCOLES", " miercoles ", "wednesday"} {
		got, err := ResolveNextOccurrence(name, "18:00", ref)
		if err != nil {
			t.Fatalf("%q 不应返回错误: %v", name, err)
		}
		if got.Weekday() != time.Wednesday || got.Day() != 11 {
			t.Errorf("%q: 期望 2025-06-11, 实际 %v", name, got)
		}
	}
}

func TestResolveNextOccurrence_InvalidWeekday(t *testing.T) {
	_, err := ResolveNextOccurrence("feriado", "08:00", time.Now())
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("期望 ErrInvalidSchedule, 实际 %v", err)
	}
}

func TestCombineDateAndTime(t *testing.T) {
	loc := mustLoc(t)
	date := time.Date(2025, 6, 16, 0, 0, 0, 0, loc)

	got := CombineDateAndTime(date, "18:30")
	if got.Hour() != 18 || got.Minute() != 30 || got.Day() != 16 {
		t.Errorf("期望 2025-06-16 18:30, 实际 %v", got)
	}

	got = CombineDateAndTime(date, "xx:15")
	if got.Hour() != 0 || got.Minute() != 15 {
		t.Errorf("非法小时应按 0 处理, 实际 %v", got)
	}
}

func TestNormalizeWeekday(t *testing.T) {
	d := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	if got := NormalizeWeekday(d, model.LocaleES); got != "miercoles" {
		t.Errorf("期望 miercoles, 实际 %s", got)
	}
	if got := NormalizeWeekday(d, model.LocaleEN); got != "wednesday" {
		t.Errorf("期望 wednesday, 实际 %s", got)
	}
}

func TestResolveOccurrence_CrossesMidnight(t *testing.T) {
	loc := mustLoc(t)
	ref := time.Date(2025, 6, 10, 10, 0, 0, 0, loc)
	occ, err := ResolveOccurrence(model.Schedule{Weekday: model.Friday, StartTime: "23:00", EndTime: "00:30"}, ref)
	if err != nil {
		t.Fatalf("不应返回错误: %v", err)
	}
	if got := occ.End.Sub(occ.Start); got != 90*time.Minute {
		t.Errorf("期望时长 90m, 实际 %v", got)
	}
}

func TestOccurrence_Overlaps(t *testing.T) {
	base := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	a := Occurrence{Start: at(8, 0), End: at(9, 0)}
	if !a.Overlaps(Occurrence{Start: at(8, 30), End: at(9, 30)}) {
		t.Error("08:00-09:00 与 08:30-09:30 应重叠")
	}
	if a.Overlaps(Occurrence{Start: at(9, 0), End: at(10, 0)}) {
		t.Error("相邻区间不应重叠")
	}
	if !a.Overlaps(Occurrence{Start: at(7, 0), End: at(10, 0)}) {
		t.Error("包含关系应重叠")
	}
}

func TestExpireIfDue(t *testing.T) {
	loc := mustLoc(t)
	class := &model.GymClass{Schedule: model.Schedule{Weekday: model.Monday, StartTime: "08:00", EndTime: "09:00"}}
	classDate := time.Date(2025, 6, 9, 8, 0, 0, 0, loc)

	tests := []struct {
		name      string
		status    model.ReservationStatus
		now       time.Time
		want      model.ReservationStatus
		wantDelta int
	}{
		{"结束后过期", model.ReservationActive, time.Date(2025, 6, 9, 9, 1, 0, 0, loc), model.ReservationExpired, -1},
		{"进行中保持", model.ReservationActive, time.Date(2025, 6, 9, 8, 30, 0, 0, loc), model.ReservationActive, 0},
		{"恰好结束保持", model.ReservationActive, time.Date(2025, 6, 9, 9, 0, 0, 0, loc), model.ReservationActive, 0},
		{"终态不变", model.ReservationCancelled, time.Date(2025, 6, 20, 0, 0, 0, 0, loc), model.ReservationCancelled, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &model.Reservation{Status: tt.status, ClassDate: classDate}
			got, delta := ExpireIfDue(r, class, tt.now)
			if got != tt.want || delta != tt.wantDelta {
				t.Errorf("期望 (%s, %d), 实际 (%s, %d)", tt.want, tt.wantDelta, got, delta)
			}
		})
	}
}
