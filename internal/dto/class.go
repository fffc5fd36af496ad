package dto

// ── 课程模块 DTO ──

// ClassListQuery 课程列表筛选参数
type ClassListQuery struct {
	Location   string `form:"location"   binding:"omitempty,max=100"`
	Discipline string `form:"discipline" binding:"omitempty,max=100"`
	Date       string `form:"date"       binding:"omitempty,datetime=2006-01-02"` // 按该日期的星期筛选
}

// ScheduleRequest 上课时段
type ScheduleRequest struct {
	Weekday   string `json:"weekday"   binding:"required,weekday"`
	StartTime string `json:"startTime" binding:"required,hhmm"`
	EndTime   string `json:"endTime"   binding:"required,hhmm"`
}

// LocationRequest 场馆
type LocationRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateClassRequest 创建课程（管理员）
type CreateClassRequest struct {
	Name            string          `json:"name"            binding:"required,max=100"`
	Discipline      string          `json:"discipline"      binding:"omitempty,max=100"` // 默认与 name 相同
	Description     string          `json:"description"     binding:"omitempty,max=2000"`
	MaxCapacity     int             `json:"maxCapacity"     binding:"required,min=1,max=1000"`
	Schedule        ScheduleRequest `json:"schedule"        binding:"required"`
	Location        LocationRequest `json:"location"        binding:"required"`
	Professor       string          `json:"professor"       binding:"omitempty,max=100"`
	DurationMinutes int             `json:"durationMinutes" binding:"omitempty,min=1,max=1440"` // 默认为结束减开始
}

// UpdateClassRequest 更新课程（管理员，部分字段）
type UpdateClassRequest struct {
	Name            *string          `json:"name"            binding:"omitempty,max=100"`
	Discipline      *string          `json:"discipline"      binding:"omitempty,max=100"`
	Description     *string          `json:"description"     binding:"omitempty,max=2000"`
	MaxCapacity     *int             `json:"maxCapacity"     binding:"omitempty,min=1,max=1000"`
	Schedule        *ScheduleRequest `json:"schedule"`
	Location        *LocationRequest `json:"location"`
	Professor       *string          `json:"professor"       binding:"omitempty,max=100"`
	DurationMinutes *int             `json:"durationMinutes" binding:"omitempty,min=1,max=1440"`
	Version         int              `json:"version"         binding:"required,min=1"`
}

// ScheduleResponse 上课时段
type ScheduleResponse struct {
	Weekday   string `json:"weekday"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// LocationResponse 场馆
type LocationResponse struct {
	Name string `json:"name"`
}

// ClassResponse 课程信息，附带下一场次日期
type ClassResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Discipline      string           `json:"discipline"`
	Description     string           `json:"description"`
	MaxCapacity     int              `json:"maxCapacity"`
	CurrentCapacity int              `json:"currentCapacity"`
	AvailableSeats  int              `json:"availableSeats"`
	Schedule        ScheduleResponse `json:"schedule"`
	Location        LocationResponse `json:"location"`
	Professor       string           `json:"professor,omitempty"`
	DurationMinutes int              `json:"durationMinutes"`
	ClassDate       string           `json:"classDate,omitempty"` // YYYY-MM-DD，无法解析星期时为空
	Version         int              `json:"version"`
}

// FiltersResponse 筛选项
type FiltersResponse struct {
	Locations   []string `json:"locations"`
	Disciplines []string `json:"disciplines"`
}
