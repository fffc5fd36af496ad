package service

import (
	"time"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/model"
)

const dateLayout = "2006-01-02"

// toClassResponse classDate 为 nil 时不输出下一场次日期
func toClassResponse(c *model.GymClass, classDate *time.Time, locale string) dto.ClassResponse {
	resp := dto.ClassResponse{
		ID:              c.ClassID,
		Name:            c.Name,
		Discipline:      c.Discipline,
		Description:     c.Description,
		MaxCapacity:     c.MaxCapacity,
		CurrentCapacity: c.CurrentCapacity,
		AvailableSeats:  c.AvailableSeats(),
		Schedule: dto.ScheduleResponse{
			Weekday:   c.Schedule.Weekday.Token(locale),
			StartTime: c.Schedule.StartTime,
			EndTime:   c.Schedule.EndTime,
		},
		Location:        dto.LocationResponse{Name: c.Location.Name},
		Professor:       c.Professor,
		DurationMinutes: c.DurationMinutes,
		Version:         c.Version,
	}
	if classDate != nil {
		resp.ClassDate = classDate.Format(dateLayout)
	}
	return resp
}

func toReservationResponse(r *model.Reservation, loc *time.Location, locale string) dto.ReservationResponse {
	resp := dto.ReservationResponse{
		ID:              r.ReservationID,
		UserID:          r.UserID,
		ClassID:         r.ClassID,
		ReservationDate: r.ReservationDate.In(loc),
		ClassDate:       r.ClassDate.In(loc),
		Status:          string(r.Status),
	}
	if r.Class != nil {
		classDate := r.ClassDate.In(loc)
		c := toClassResponse(r.Class, &classDate, locale)
		resp.Class = &c
	}
	return resp
}

func toProfileResponse(u *model.User) dto.ProfileResponse {
	resp := dto.ProfileResponse{
		ID:           u.UserID,
		Email:        u.Email,
		Name:         deref(u.Name),
		LastName:     deref(u.LastName),
		MemberNumber: deref(u.MemberNumber),
		PhoneNumber:  deref(u.PhoneNumber),
		Address:      deref(u.Address),
		Photo:        deref(u.PhotoURL),
		Role:         u.Role,
		IsVerified:   u.IsVerified,
	}
	if u.BirthDate != nil {
		resp.BirthDate = u.BirthDate.Format(dateLayout)
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
