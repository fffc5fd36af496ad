package dto

// ── 个人资料 DTO ──

// ProfileResponse 会员资料（脱敏）
type ProfileResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	MemberNumber string `json:"memberNumber,omitempty"`
	BirthDate    string `json:"birthDate,omitempty"` // YYYY-MM-DD
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Address      string `json:"address,omitempty"`
	Photo        string `json:"photo,omitempty"`
	Role         string `json:"role"`
	IsVerified   bool   `json:"isVerified"`
}

// UpdateProfileRequest 更新资料（字段均可选，空字符串表示清空）
type UpdateProfileRequest struct {
	Name        *string `json:"name"        binding:"omitempty,max=100"`
	LastName    *string `json:"lastName"    binding:"omitempty,max=100"`
	BirthDate   *string `json:"birthDate"   binding:"omitempty,datetime=2006-01-02"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=40"`
	Address     *string `json:"address"     binding:"omitempty,max=255"`
	Photo       *string `json:"photo"       binding:"omitempty,url,max=500"`
}
