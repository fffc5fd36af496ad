package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/repository"
)

// ProfileService 会员资料业务接口（仅本人可读写）
type ProfileService interface {
	Get(ctx context.Context, userID, callerID string) (*dto.ProfileResponse, error)
	Update(ctx context.Context, userID string, req *dto.UpdateProfileRequest, callerID string) (*dto.ProfileResponse, error)
}

type profileService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewProfileService 创建 ProfileService 实例
func NewProfileService(repo *repository.Repository, logger *zap.Logger) ProfileService {
	return &profileService{repo: repo, logger: logger}
}

func (s *profileService) Get(ctx context.Context, userID, callerID string) (*dto.ProfileResponse, error) {
	if userID != callerID {
		return nil, ErrForbidden
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询会员资料失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeError(err)
	}

	resp := toProfileResponse(user)
	return &resp, nil
}

func (s *profileService) Update(ctx context.Context, userID string, req *dto.UpdateProfileRequest, callerID string) (*dto.ProfileResponse, error) {
	if userID != callerID {
		return nil, ErrForbidden
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询会员资料失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeError(err)
	}

	// 未提供的字段保持不变，空字符串清空
	user.Name = mergeOptional(user.Name, req.Name)
	user.LastName = mergeOptional(user.LastName, req.LastName)
	user.PhoneNumber = mergeOptional(user.PhoneNumber, req.PhoneNumber)
	user.Address = mergeOptional(user.Address, req.Address)
	user.PhotoURL = mergeOptional(user.PhotoURL, req.Photo)
	if req.BirthDate != nil {
		if *req.BirthDate == "" {
			user.BirthDate = nil
		} else {
			d, err := time.Parse(dateLayout, *req.BirthDate)
			if err != nil {
				return nil, ErrInvalidDate
			}
			user.BirthDate = &d
		}
	}
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("更新会员资料失败", zap.String("user_id", userID), zap.Error(err))
		return nil, storeError(err)
	}

	resp := toProfileResponse(user)
	return &resp, nil
}

func mergeOptional(current, incoming *string) *string {
	if incoming == nil {
		return current
	}
	v := strings.TrimSpace(*incoming)
	if v == "" {
		return nil
	}
	return &v
}
