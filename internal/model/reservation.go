package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ReservationStatus 预约状态
// active → {cancelled, expired, attended}，三者均为终态
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationAttended  ReservationStatus = "attended"
	ReservationExpired   ReservationStatus = "expired"
)

// TerminalStatuses 历史记录中展示的终态集合
var TerminalStatuses = []ReservationStatus{
	ReservationAttended,
	ReservationCancelled,
	ReservationExpired,
}

// Valid 是否为已知状态
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationCancelled, ReservationAttended, ReservationExpired:
		return true
	}
	return false
}

// IsTerminal 是否为终态
func (s ReservationStatus) IsTerminal() bool {
	return s.Valid() && s != ReservationActive
}

// Scan 读取时校验状态取值
func (s *ReservationStatus) Scan(src interface{}) error {
	var v string
	switch t := src.(type) {
	case []byte:
		v = string(t)
	case string:
		v = t
	default:
		return fmt.Errorf("ReservationStatus.Scan: unsupported type %T", src)
	}
	st := ReservationStatus(v)
	if !st.Valid() {
		return fmt.Errorf("ReservationStatus.Scan: unknown status %q", v)
	}
	*s = st
	return nil
}

// Value 写入前校验状态取值
func (s ReservationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("ReservationStatus.Value: unknown status %q", string(s))
	}
	return string(s), nil
}

// Reservation 预约表 — 对应 reservations
// ClassDate 为具体场次的开始时间，是唯一性判断的单位；记录永不删除
type Reservation struct {
	ReservationID   string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string            `gorm:"type:uuid;not null"                             json:"userId"`
	ClassID         string            `gorm:"type:uuid;not null"                             json:"classId"`
	ReservationDate time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"reservationDate"`
	ClassDate       time.Time         `gorm:"not null"                                       json:"classDate"`
	Status          ReservationStatus `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	BaseModel

	// 关联（软删除的课程也需要出现在历史中）
	Class *GymClass `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
	User  *User     `gorm:"foreignKey:UserID;references:UserID"   json:"-"`
}

// TableName 指定表名
func (Reservation) TableName() string { return "reservations" }
