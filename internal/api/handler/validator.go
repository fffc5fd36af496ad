package handler

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"ritmofit/backend/internal/model"
)

// RegisterValidators 在 gin 的校验引擎上注册自定义规则
//
//	hhmm:    24 小时制 "HH:MM"
//	weekday: 西语或英语星期名称，忽略大小写与重音
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("不支持的校验引擎: %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return model.IsClock(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseWeekday(fl.Field().String())
		return ok
	})
}
