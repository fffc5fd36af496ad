package model

import (
	"testing"
	"time"
)

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
		ok   bool
	}{
		{"lunes", Monday, true},
		{"Lunes", Monday, true},
		{"  MIÉRCOLES ", Wednesday, true},
		{"miercoles", Wednesday, true},
		{"Sábado", Saturday, true},
		{"domingo", Sunday, true},
		{"friday", Friday, true},
		{"Thursday", Thursday, true},
		{"lunesx", WeekdayInvalid, false},
		{"", WeekdayInvalid, false},
	}
	for _, tt := range tests {
		got, ok := ParseWeekday(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseWeekday(%q): 期望 (%v,%v), 实际 (%v,%v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}

func TestWeekdayAlignsWithTimeWeekday(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if int(Weekday(d)) != int(d) {
			t.Fatalf("Weekday 与 time.Weekday 未对齐: %d", d)
		}
	}
}

func TestWeekdayTokenAndDisplay(t *testing.T) {
	if got := Wednesday.Token(LocaleES); got != "miercoles" {
		t.Errorf("期望 miercoles, 实际 %s", got)
	}
	if got := Wednesday.Token(LocaleEN); got != "wednesday" {
		t.Errorf("期望 wednesday, 实际 %s", got)
	}
	if got := Wednesday.Token("fr"); got != "miercoles" {
		t.Errorf("未知语言应回退西班牙语, 实际 %s", got)
	}
	if got := Saturday.Display(LocaleES); got != "Sábado" {
		t.Errorf("期望 Sábado, 实际 %s", got)
	}
	if got := Saturday.Display(LocaleEN); got != "Saturday" {
		t.Errorf("期望 Saturday, 实际 %s", got)
	}
	if got := WeekdayInvalid.Token(LocaleES); got != "" {
		t.Errorf("非法星期 Token 应为空, 实际 %s", got)
	}
}

func TestWeekdayScanValue(t *testing.T) {
	var d Weekday
	if err := d.Scan([]byte("Miércoles")); err != nil {
		t.Fatalf("Scan 失败: %v", err)
	}
	if d != Wednesday {
		t.Errorf("期望 Wednesday, 实际 %v", d)
	}

	v, err := d.Value()
	if err != nil {
		t.Fatalf("Value 失败: %v", err)
	}
	if v != "miercoles" {
		t.Errorf("期望存储为 miercoles, 实际 %v", v)
	}

	if err := d.Scan("feriado"); err != nil {
		t.Fatalf("未知名称不应返回错误: %v", err)
	}
	if d != WeekdayInvalid {
		t.Errorf("未知名称应得到 WeekdayInvalid, 实际 %v", d)
	}
	if _, err := d.Value(); err == nil {
		t.Error("非法星期写入应返回错误")
	}
	if err := d.Scan(42); err == nil {
		t.Error("不支持的类型应返回错误")
	}
}

func TestWeekdayText(t *testing.T) {
	var d Weekday
	if err := d.UnmarshalText([]byte("Viernes")); err != nil || d != Friday {
		t.Errorf("UnmarshalText 期望 Friday, 实际 %v (%v)", d, err)
	}
	if err := d.UnmarshalText([]byte("nope")); err == nil {
		t.Error("非法名称应返回错误")
	}
	b, _ := Monday.MarshalText()
	if string(b) != "lunes" {
		t.Errorf("期望 lunes, 实际 %s", b)
	}
}

func TestReservationStatus(t *testing.T) {
	if ReservationActive.IsTerminal() {
		t.Error("active 不是终态")
	}
	for _, s := range TerminalStatuses {
		if !s.IsTerminal() {
			t.Errorf("%s 应为终态", s)
		}
	}
	var s ReservationStatus
	if err := s.Scan("bogus"); err == nil {
		t.Error("未知状态应返回错误")
	}
	if err := s.Scan([]byte("expired")); err != nil || s != ReservationExpired {
		t.Errorf("期望 expired, 实际 %v (%v)", s, err)
	}
	if _, err := ReservationStatus("x").Value(); err == nil {
		t.Error("未知状态写入应返回错误")
	}
}

func TestGymClassSeats(t *testing.T) {
	c := &GymClass{MaxCapacity: 10, CurrentCapacity: 10}
	if !c.IsFull() || c.AvailableSeats() != 0 {
		t.Errorf("满员判断错误: full=%v seats=%d", c.IsFull(), c.AvailableSeats())
	}
	c.CurrentCapacity = 3
	if c.IsFull() || c.AvailableSeats() != 7 {
		t.Errorf("期望 7 个空位, 实际 %d", c.AvailableSeats())
	}
}
