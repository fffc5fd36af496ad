package service

import (
	"time"

	"ritmofit/backend/internal/model"
)

// ExpireIfDue 惰性过期判定（纯函数）
// active 预约的场次结束时刻早于 now 时返回 (expired, -1)，即需要释放一个座位；
// 其余情况保持原状态，座位变化为 0
func ExpireIfDue(r *model.Reservation, class *model.GymClass, now time.Time) (model.ReservationStatus, int) {
	if r.Status != model.ReservationActive || class == nil {
		return r.Status, 0
	}
	occ := OccurrenceAt(r.ClassDate, class.Schedule, now.Location())
	if occ.End.Before(now) {
		return model.ReservationExpired, -1
	}
	return r.Status, 0
}
