package model

import "time"

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 会员表 — 对应 users
type User struct {
	UserID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email        string     `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null;default:''"          json:"-"`
	OTPHash      *string    `gorm:"column:otp_hash;type:varchar(255)"              json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at"                          json:"-"`
	OTPAttempts  int        `gorm:"column:otp_attempts;not null;default:0"         json:"-"`
	IsVerified   bool       `gorm:"not null;default:false"                         json:"isVerified"`
	Name         *string    `gorm:"type:varchar(100)"                              json:"name,omitempty"`
	LastName     *string    `gorm:"type:varchar(100)"                              json:"lastName,omitempty"`
	MemberNumber *string    `gorm:"type:varchar(20)"                               json:"memberNumber,omitempty"`
	BirthDate    *time.Time `gorm:"type:date"                                      json:"birthDate,omitempty"`
	PhoneNumber  *string    `gorm:"type:varchar(40)"                               json:"phoneNumber,omitempty"`
	Address      *string    `gorm:"type:varchar(255)"                              json:"address,omitempty"`
	PhotoURL     *string    `gorm:"column:photo_url;type:varchar(500)"             json:"photo,omitempty"`
	Role         string     `gorm:"type:varchar(20);not null;default:'user'"       json:"role"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
