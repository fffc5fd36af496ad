package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/dto"
	"ritmofit/backend/internal/model"
	"ritmofit/backend/internal/repository"
	pkgerrors "ritmofit/backend/pkg/errors"
	"ritmofit/backend/pkg/jwt"
)

// ── 认证模块业务错误 ──

var (
	ErrUserNotFound           = errors.New("用户不存在")
	ErrEmailAlreadyRegistered = errors.New("该邮箱已注册并完成验证")
	ErrInvalidCredentials     = errors.New("邮箱或密码错误，或账号尚未验证")
	ErrInvalidOTP             = errors.New("验证码错误或已过期")
	ErrInvalidRefreshToken    = errors.New("Refresh Token 无效或已失效")
	ErrOTPDelivery            = errors.New("验证码邮件发送失败")
)

// TokenBlacklist JWT 黑名单（由 Redis 实现，可为 nil）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// AuthService 认证业务接口（邮箱 + 密码 + 一次性验证码）
type AuthService interface {
	RegisterSendOTP(ctx context.Context, req *dto.SendOTPRequest) error
	LoginSendOTP(ctx context.Context, req *dto.SendOTPRequest) error
	VerifyOTPAndLogin(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.TokenResponse, error)
	RequestPasswordReset(ctx context.Context, req *dto.PasswordResetRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, claims *jwt.Claims) error
}

type authService struct {
	cfg       *config.AuthConfig
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	notifier  Notifier
	clock     Clock
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.AuthConfig,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	notifier Notifier,
	clock Clock,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ────────────────────── RegisterSendOTP ──────────────────────

func (s *authService) RegisterSendOTP(ctx context.Context, req *dto.SendOTPRequest) error {
	email := normalizeEmail(req.Email)

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(req.Password)), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	code, otpHash, err := s.newOTP()
	if err != nil {
		return err
	}
	expiresAt := s.clock().Add(s.cfg.OTPTTL)

	err = s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		user, err := tx.User.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if user != nil && user.IsVerified {
			return ErrEmailAlreadyRegistered
		}

		if user == nil {
			memberNumber, err := tx.User.NextMemberNumber(ctx)
			if err != nil {
				return err
			}
			user = &model.User{
				Email:        email,
				MemberNumber: &memberNumber,
				Role:         model.RoleUser,
			}
		}
		user.PasswordHash = string(passwordHash)
		user.OTPHash = &otpHash
		user.OTPExpiresAt = &expiresAt
		user.OTPAttempts = 0
		user.IsVerified = false

		if user.UserID == "" {
			err = tx.User.Create(ctx, user)
		} else {
			err = tx.User.Update(ctx, user)
		}
		if pkgerrors.IsUniqueViolation(err) {
			return ErrEmailAlreadyRegistered
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyRegistered) {
			return err
		}
		s.logger.Error("注册失败", zap.String("email", email), zap.Error(err))
		return storeError(err)
	}

	return s.deliverOTP(ctx, email, code, OTPPurposeRegister)
}

// ────────────────────── LoginSendOTP ──────────────────────

func (s *authService) LoginSendOTP(ctx context.Context, req *dto.SendOTPRequest) error {
	email := normalizeEmail(req.Email)

	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return storeError(err)
	}
	if !user.IsVerified || user.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(strings.TrimSpace(req.Password))); err != nil {
		return ErrInvalidCredentials
	}

	code, err := s.issueOTP(ctx, user)
	if err != nil {
		return err
	}
	return s.deliverOTP(ctx, email, code, OTPPurposeLogin)
}

// ────────────────────── VerifyOTPAndLogin ──────────────────────

func (s *authService) VerifyOTPAndLogin(ctx context.Context, req *dto.VerifyOTPRequest) (*dto.TokenResponse, error) {
	user, err := s.consumeOTP(ctx, normalizeEmail(req.Email), req.OTP, func(u *model.User) {
		u.IsVerified = true
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("会员登录", zap.String("user_id", user.UserID))
	return s.issueTokens(user)
}

// ────────────────────── Password reset ──────────────────────

func (s *authService) RequestPasswordReset(ctx context.Context, req *dto.PasswordResetRequest) error {
	email := normalizeEmail(req.Email)

	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return storeError(err)
	}

	code, err := s.issueOTP(ctx, user)
	if err != nil {
		return err
	}
	return s.deliverOTP(ctx, email, code, OTPPurposeReset)
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(req.NewPassword)), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}

	user, err := s.consumeOTP(ctx, normalizeEmail(req.Email), req.OTP, func(u *model.User) {
		u.PasswordHash = string(passwordHash)
	})
	if err != nil {
		return err
	}

	s.logger.Info("密码已重置", zap.String("user_id", user.UserID))
	return nil
}

// ────────────────────── Refresh / Logout ──────────────────────

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrInvalidRefreshToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, storeError(err)
	}

	// 旧 Refresh Token 轮换作废
	s.revoke(ctx, claims)
	return s.issueTokens(user)
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	s.revoke(ctx, claims)
	s.logger.Info("会员登出", zap.String("user_id", claims.UserID))
	return nil
}

func (s *authService) revoke(ctx context.Context, claims *jwt.Claims) {
	if s.blacklist == nil || claims == nil || claims.ID == "" {
		return
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, claims.Remaining(s.clock())); err != nil {
		s.logger.Warn("Token 加入黑名单失败", zap.String("jti", claims.ID), zap.Error(err))
	}
}

// ── OTP 辅助 ──

// newOTP 生成数字验证码，返回明文与 bcrypt 哈希
func (s *authService) newOTP() (code, hash string, err error) {
	length := s.cfg.OTPLength
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	code = string(digits)

	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return code, string(h), nil
}

// issueOTP 为已有用户生成并保存新的验证码
func (s *authService) issueOTP(ctx context.Context, user *model.User) (string, error) {
	code, hash, err := s.newOTP()
	if err != nil {
		s.logger.Error("生成验证码失败", zap.Error(err))
		return "", err
	}
	expiresAt := s.clock().Add(s.cfg.OTPTTL)
	user.OTPHash = &hash
	user.OTPExpiresAt = &expiresAt
	user.OTPAttempts = 0

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("保存验证码失败", zap.String("user_id", user.UserID), zap.Error(err))
		return "", storeError(err)
	}
	return code, nil
}

// consumeOTP 校验验证码，通过后清除验证码并应用 mutate
// 输错会累加 otp_attempts，达到上限后验证码作废，需重新申请
func (s *authService) consumeOTP(ctx context.Context, email, code string, mutate func(u *model.User)) (*model.User, error) {
	var (
		user  *model.User
		wrong bool
	)
	err := s.repo.Tx.WithinTx(ctx, func(tx *repository.Repository) error {
		wrong = false
		found, err := tx.User.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidOTP
			}
			return err
		}
		// 锁定会员行，并发猜测的计数不会丢失
		u, err := tx.User.GetByIDForUpdate(ctx, found.UserID)
		if err != nil {
			return err
		}
		if u.OTPHash == nil || u.OTPExpiresAt == nil || !u.OTPExpiresAt.After(s.clock()) {
			return ErrInvalidOTP
		}
		if bcrypt.CompareHashAndPassword([]byte(*u.OTPHash), []byte(strings.TrimSpace(code))) != nil {
			// 计数需要提交，因此这里不返回错误
			u.OTPAttempts++
			if u.OTPAttempts >= s.cfg.OTPMaxAttempts {
				u.OTPHash = nil
				u.OTPExpiresAt = nil
				s.logger.Warn("验证码输错次数过多，已作废",
					zap.String("user_id", u.UserID),
					zap.Int("attempts", u.OTPAttempts),
				)
			}
			wrong = true
			return tx.User.Update(ctx, u)
		}

		u.OTPHash = nil
		u.OTPExpiresAt = nil
		u.OTPAttempts = 0
		mutate(u)
		if err := tx.User.Update(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err == nil && wrong {
		err = ErrInvalidOTP
	}
	if err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			return nil, err
		}
		s.logger.Error("校验验证码失败", zap.Error(err))
		return nil, storeError(err)
	}
	return user, nil
}

func (s *authService) deliverOTP(ctx context.Context, email, code string, purpose OTPPurpose) error {
	if err := s.notifier.SendOTP(ctx, email, code, purpose, s.cfg.OTPTTL); err != nil {
		s.logger.Error("验证码邮件发送失败", zap.String("email", email), zap.String("purpose", string(purpose)), zap.Error(err))
		return ErrOTPDelivery
	}
	return nil
}

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         toProfileResponse(user),
	}, nil
}
