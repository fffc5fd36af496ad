package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/model"
)

func newExportFixture(t *testing.T) (*reservationFixture, ExportService) {
	t.Helper()
	f := newReservationFixture(t)
	svc := NewExportService(f.svc, f.now.Location(), model.LocaleES, func() time.Time { return f.now }, zap.NewNop())
	return f, svc
}

// ── ExportHistory ──

func TestExportHistory_Success(t *testing.T) {
	f, svc := newExportFixture(t)
	user := f.member("user-a")
	class := f.class("Funcional", model.Monday, "08:00", "09:00", 5)
	loc := f.now.Location()
	for day, status := range map[int]model.ReservationStatus{
		2: model.ReservationAttended,
		9: model.ReservationCancelled,
	} {
		f.store.addReservation(&model.Reservation{
			UserID: user, ClassID: class.ClassID, Status: status,
			ClassDate: time.Date(2025, 6, day, 8, 0, 0, 0, loc),
		})
	}

	buf, filename, err := svc.ExportHistory(context.Background(), user, &dto.HistoryQuery{}, user)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if filename != "ritmofit_historial_20250610.xlsx" {
		t.Errorf("文件名不符合预期: %s", filename)
	}

	xlsx, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("无法解析生成的 Excel: %v", err)
	}
	defer xlsx.Close()

	rows, err := xlsx.GetRows("Historial")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("期望表头 + 2 行, 实际 %d 行", len(rows))
	}
	if rows[0][0] != "Fecha" || rows[0][7] != "Estado" {
		t.Errorf("表头不符合预期: %v", rows[0])
	}
	// 倒序：09/06 在前
	if rows[1][0] != "09/06/2025" || rows[1][1] != "Lunes" || rows[1][7] != "Cancelada" {
		t.Errorf("第一行不符合预期: %v", rows[1])
	}
	if rows[2][2] != "08:00-09:00" || rows[2][3] != "Funcional" || rows[2][7] != "Asistió" {
		t.Errorf("第二行不符合预期: %v", rows[2])
	}
}

func TestExportHistory_Forbidden(t *testing.T) {
	f, svc := newExportFixture(t)
	user := f.member("user-a")

	if _, _, err := svc.ExportHistory(context.Background(), user, nil, "user-b"); !errors.Is(err, ErrForbidden) {
		t.Errorf("期望 ErrForbidden, 实际 %v", err)
	}
}

// ── CalendarICS ──

func TestCalendarICS_ActiveReservations(t *testing.T) {
	f, svc := newExportFixture(t)
	user := f.member("user-a")
	yoga := f.class("Yoga", model.Wednesday, "18:00", "19:30", 5)
	if _, err := f.book(user, yoga.ClassID); err != nil {
		t.Fatalf("预约失败: %v", err)
	}

	buf, filename, err := svc.CalendarICS(context.Background(), user, user)
	if err != nil {
		t.Fatalf("生成日历失败: %v", err)
	}
	if filename != "ritmofit.ics" {
		t.Errorf("文件名不符合预期: %s", filename)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("无法解析生成的日历: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("期望 1 个事件, 实际 %d", len(events))
	}
	if got := events[0].GetProperty(ics.ComponentPropertySummary).Value; got != "Yoga" {
		t.Errorf("期望标题 Yoga, 实际 %s", got)
	}
	if got := events[0].GetProperty(ics.ComponentPropertyLocation).Value; got != "Sede Centro" {
		t.Errorf("期望地点 Sede Centro, 实际 %s", got)
	}

	start, err := events[0].GetStartAt()
	if err != nil {
		t.Fatalf("读取开始时间失败: %v", err)
	}
	end, err := events[0].GetEndAt()
	if err != nil {
		t.Fatalf("读取结束时间失败: %v", err)
	}
	want := time.Date(2025, 6, 11, 18, 0, 0, 0, f.now.Location())
	if !start.Equal(want) {
		t.Errorf("期望开始 %v, 实际 %v", want, start)
	}
	if end.Sub(start) != 90*time.Minute {
		t.Errorf("期望时长 90m, 实际 %v", end.Sub(start))
	}
}

func TestCalendarICS_Empty(t *testing.T) {
	f, svc := newExportFixture(t)
	user := f.member("user-a")

	buf, _, err := svc.CalendarICS(context.Background(), user, user)
	if err != nil {
		t.Fatalf("生成日历失败: %v", err)
	}
	if !strings.Contains(buf.String(), "BEGIN:VCALENDAR") || strings.Contains(buf.String(), "BEGIN:VEVENT") {
		t.Errorf("空日历内容不符合预期:\n%s", buf.String())
	}
}
