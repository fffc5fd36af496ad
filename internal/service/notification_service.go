package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ritmofit/backend/internal/model"
	"ritmofit/backend/pkg/mailer"
)

// OTPPurpose 验证码用途
type OTPPurpose string

const (
	OTPPurposeRegister OTPPurpose = "register"
	OTPPurposeLogin    OTPPurpose = "login"
	OTPPurposeReset    OTPPurpose = "reset"
)

// Notifier 会员通知
// 除验证码外均为尽力而为：发送失败只记录日志，不影响主流程
type Notifier interface {
	SendOTP(ctx context.Context, to, code string, purpose OTPPurpose, ttl time.Duration) error
	BookingConfirmed(ctx context.Context, to string, class *model.GymClass, classDate time.Time)
	BookingCancelled(ctx context.Context, to string, class *model.GymClass, classDate time.Time)
	ClassReminder(ctx context.Context, to string, class *model.GymClass, classDate time.Time)
	ClassRemoved(ctx context.Context, to string, class *model.GymClass, classDate time.Time)
}

type mailNotifier struct {
	sender mailer.Sender
	locale string
	logger *zap.Logger
}

// NewNotifier 基于邮件的通知实现
func NewNotifier(sender mailer.Sender, locale string, logger *zap.Logger) Notifier {
	return &mailNotifier{sender: sender, locale: locale, logger: logger}
}

type mailTemplate struct {
	subject string
	body    string
}

var otpTemplates = map[string]map[OTPPurpose]mailTemplate{
	model.LocaleES: {
		OTPPurposeRegister: {"RitmoFit - Código de registro", "Tu código de verificación es %s. Vence en %d minutos."},
		OTPPurposeLogin:    {"RitmoFit - Código de ingreso", "Tu código de ingreso es %s. Vence en %d minutos."},
		OTPPurposeReset:    {"RitmoFit - Recuperar contraseña", "Tu código para restablecer la contraseña es %s. Vence en %d minutos."},
	},
	model.LocaleEN: {
		OTPPurposeRegister: {"RitmoFit - Sign-up code", "Your verification code is %s. It expires in %d minutes."},
		OTPPurposeLogin:    {"RitmoFit - Login code", "Your login code is %s. It expires in %d minutes."},
		OTPPurposeReset:    {"RitmoFit - Password reset", "Your password reset code is %s. It expires in %d minutes."},
	},
}

type classNotice int

const (
	noticeConfirmed classNotice = iota
	noticeCancelled
	noticeReminder
	noticeRemoved
)

// 参数依次为：课程名、星期、日期、开始时间、场馆
var classTemplates = map[string]map[classNotice]mailTemplate{
	model.LocaleES: {
		noticeConfirmed: {"RitmoFit - Reserva confirmada", "Reservaste %s el %s %s a las %s en %s."},
		noticeCancelled: {"RitmoFit - Reserva cancelada", "Cancelaste tu reserva de %s del %s %s a las %s en %s."},
		noticeReminder:  {"RitmoFit - Recordatorio de clase", "Tu clase %s es el %s %s a las %s en %s. ¡Te esperamos!"},
		noticeRemoved:   {"RitmoFit - Clase suspendida", "La clase %s del %s %s a las %s en %s fue dada de baja y tu reserva quedó cancelada."},
	},
	model.LocaleEN: {
		noticeConfirmed: {"RitmoFit - Booking confirmed", "You booked %s on %s %s at %s in %s."},
		noticeCancelled: {"RitmoFit - Booking cancelled", "You cancelled %s on %s %s at %s in %s."},
		noticeReminder:  {"RitmoFit - Class reminder", "Your class %s is on %s %s at %s in %s. See you there!"},
		noticeRemoved:   {"RitmoFit - Class removed", "The class %s on %s %s at %s in %s was removed and your booking was cancelled."},
	},
}

func (n *mailNotifier) templates() string {
	if _, ok := classTemplates[n.locale]; ok {
		return n.locale
	}
	return model.LocaleES
}

func (n *mailNotifier) SendOTP(ctx context.Context, to, code string, purpose OTPPurpose, ttl time.Duration) error {
	tpl, ok := otpTemplates[n.templates()][purpose]
	if !ok {
		return fmt.Errorf("未知的验证码用途: %s", purpose)
	}
	body := fmt.Sprintf(tpl.body, code, int(ttl.Minutes()))
	if err := n.sender.Send(ctx, to, tpl.subject, body); err != nil {
		return fmt.Errorf("发送验证码邮件失败: %w", err)
	}
	return nil
}

func (n *mailNotifier) BookingConfirmed(ctx context.Context, to string, class *model.GymClass, classDate time.Time) {
	n.sendClassNotice(ctx, noticeConfirmed, to, class, classDate)
}

func (n *mailNotifier) BookingCancelled(ctx context.Context, to string, class *model.GymClass, classDate time.Time) {
	n.sendClassNotice(ctx, noticeCancelled, to, class, classDate)
}

func (n *mailNotifier) ClassReminder(ctx context.Context, to string, class *model.GymClass, classDate time.Time) {
	n.sendClassNotice(ctx, noticeReminder, to, class, classDate)
}

func (n *mailNotifier) ClassRemoved(ctx context.Context, to string, class *model.GymClass, classDate time.Time) {
	n.sendClassNotice(ctx, noticeRemoved, to, class, classDate)
}

func (n *mailNotifier) sendClassNotice(ctx context.Context, kind classNotice, to string, class *model.GymClass, classDate time.Time) {
	if to == "" || class == nil {
		return
	}
	locale := n.templates()
	tpl := classTemplates[locale][kind]
	body := fmt.Sprintf(tpl.body,
		class.Name,
		model.Weekday(classDate.Weekday()).Display(locale),
		classDate.Format("02/01/2006"),
		classDate.Format("15:04"),
		class.Location.Name,
	)
	if err := n.sender.Send(ctx, to, tpl.subject, body); err != nil {
		n.logger.Warn("发送通知邮件失败",
			zap.String("to", to),
			zap.String("subject", tpl.subject),
			zap.Error(err),
		)
	}
}
