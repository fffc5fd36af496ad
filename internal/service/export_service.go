package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/model"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 导出复用 ReservationService 的查询（含权限校验与惰性过期），
// 以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportHistory 导出预约历史为 Excel
	ExportHistory(ctx context.Context, userID string, req *dto.HistoryQuery, callerID string) (*bytes.Buffer, string, error)
	// CalendarICS 将有效预约导出为 iCalendar
	CalendarICS(ctx context.Context, userID, callerID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	reservations ReservationService
	loc          *time.Location
	locale       string
	clock        Clock
	logger       *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(reservations ReservationService, loc *time.Location, locale string, clock Clock, logger *zap.Logger) ExportService {
	return &exportService{
		reservations: reservations,
		loc:          loc,
		locale:       locale,
		clock:        clock,
		logger:       logger,
	}
}

var historyStatusLabels = map[string]map[string]string{
	model.LocaleES: {
		string(model.ReservationAttended):  "Asistió",
		string(model.ReservationCancelled): "Cancelada",
		string(model.ReservationExpired):   "Vencida",
	},
	model.LocaleEN: {
		string(model.ReservationAttended):  "Attended",
		string(model.ReservationCancelled): "Cancelled",
		string(model.ReservationExpired):   "Expired",
	},
}

var historyHeaders = map[string][]string{
	model.LocaleES: {"Fecha", "Día", "Horario", "Clase", "Disciplina", "Sede", "Profesor", "Estado"},
	model.LocaleEN: {"Date", "Day", "Time", "Class", "Discipline", "Location", "Instructor", "Status"},
}

// ═══════════════════════════════════════════════════════════
// ExportHistory 预约历史导出为 Excel
// ═══════════════════════════════════════════════════════════
//
// 单 Sheet，按 classDate 倒序，每条历史记录一行

func (s *exportService) ExportHistory(ctx context.Context, userID string, req *dto.HistoryQuery, callerID string) (*bytes.Buffer, string, error) {
	list, err := s.reservations.History(ctx, userID, req, callerID)
	if err != nil {
		return nil, "", err
	}

	locale := s.locale
	if _, ok := historyHeaders[locale]; !ok {
		locale = model.LocaleES
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Historial"
	if locale == model.LocaleEN {
		sheetName = "History"
	}
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	// 列宽
	f.SetColWidth(sheetName, "A", "C", 14)
	f.SetColWidth(sheetName, "D", "G", 22)
	f.SetColWidth(sheetName, "H", "H", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E4572E"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 表头
	for i, h := range historyHeaders[locale] {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(historyHeaders[locale])-1), 1), headerStyle)

	// 数据行
	row := 2
	for _, r := range list {
		classDate := r.ClassDate.In(s.loc)
		f.SetCellValue(sheetName, cell("A", row), classDate.Format("02/01/2006"))
		f.SetCellValue(sheetName, cell("B", row), model.Weekday(classDate.Weekday()).Display(locale))
		if r.Class != nil {
			f.SetCellValue(sheetName, cell("C", row), fmt.Sprintf("%s-%s", r.Class.Schedule.StartTime, r.Class.Schedule.EndTime))
			f.SetCellValue(sheetName, cell("D", row), r.Class.Name)
			f.SetCellValue(sheetName, cell("E", row), r.Class.Discipline)
			f.SetCellValue(sheetName, cell("F", row), r.Class.Location.Name)
			f.SetCellValue(sheetName, cell("G", row), r.Class.Professor)
		} else {
			f.SetCellValue(sheetName, cell("C", row), classDate.Format("15:04"))
		}
		label := historyStatusLabels[locale][r.Status]
		if label == "" {
			label = r.Status
		}
		f.SetCellValue(sheetName, cell("H", row), label)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.String("user_id", userID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("ritmofit_historial_%s.xlsx", s.clock().In(s.loc).Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// CalendarICS 有效预约导出为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) CalendarICS(ctx context.Context, userID, callerID string) (*bytes.Buffer, string, error) {
	list, err := s.reservations.ListActive(ctx, userID, callerID)
	if err != nil {
		return nil, "", err
	}

	now := s.clock()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//RitmoFit//Reservas//ES")
	cal.SetXWRCalName("RitmoFit")
	cal.SetXWRTimezone(s.loc.String())

	for _, r := range list {
		start := r.ClassDate.In(s.loc)
		end := start.Add(time.Hour)
		summary := "RitmoFit"
		event := cal.AddEvent(r.ID + "@ritmofit")
		event.SetDtStampTime(now)
		event.SetCreatedTime(r.ReservationDate)
		if r.Class != nil {
			occ := OccurrenceAt(start, model.Schedule{EndTime: r.Class.Schedule.EndTime}, s.loc)
			end = occ.End
			summary = r.Class.Name
			event.SetLocation(r.Class.Location.Name)
			if r.Class.Professor != "" {
				event.SetDescription(fmt.Sprintf("%s - %s", r.Class.Discipline, r.Class.Professor))
			} else {
				event.SetDescription(r.Class.Discipline)
			}
		}
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(summary)
		event.SetStatus(ics.ObjectStatusConfirmed)
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, "ritmofit.ics", nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
