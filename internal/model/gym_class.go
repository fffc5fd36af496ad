package model

// Schedule 每周重复的上课时段
type Schedule struct {
	Weekday   Weekday `gorm:"column:weekday;type:varchar(20);not null"   json:"weekday"`
	StartTime string  `gorm:"column:start_time;type:varchar(5);not null" json:"startTime"` // HH:MM
	EndTime   string  `gorm:"column:end_time;type:varchar(5);not null"   json:"endTime"`   // HH:MM
}

// ClassLocation 上课场馆
type ClassLocation struct {
	Name string `gorm:"column:location_name;type:varchar(100);not null" json:"name"`
}

// GymClass 课程模板表 — 对应 gym_classes
// 0 ≤ CurrentCapacity ≤ MaxCapacity 由数据库 CHECK 约束与座位账本共同保证
type GymClass struct {
	ClassID         string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name            string        `gorm:"type:varchar(100);not null"                     json:"name"`
	Discipline      string        `gorm:"type:varchar(100);not null;default:''"          json:"discipline"`
	Description     string        `gorm:"type:text;not null;default:''"                  json:"description"`
	MaxCapacity     int           `gorm:"not null"                                       json:"maxCapacity"`
	CurrentCapacity int           `gorm:"not null;default:0"                             json:"currentCapacity"`
	Schedule        Schedule      `gorm:"embedded"                                       json:"schedule"`
	Location        ClassLocation `gorm:"embedded"                                       json:"location"`
	Professor       string        `gorm:"type:varchar(100);not null;default:''"          json:"professor"`
	DurationMinutes int           `gorm:"not null;default:0"                             json:"durationMinutes"`
	VersionedModel
}

// TableName 指定表名
func (GymClass) TableName() string { return "gym_classes" }

// AvailableSeats 剩余座位数
func (c *GymClass) AvailableSeats() int {
	if n := c.MaxCapacity - c.CurrentCapacity; n > 0 {
		return n
	}
	return 0
}

// IsFull 是否已满员
func (c *GymClass) IsFull() bool {
	return c.CurrentCapacity >= c.MaxCapacity
}
