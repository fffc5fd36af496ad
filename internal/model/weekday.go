package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weekday 星期枚举，Sunday=0 与 time.Weekday 对齐
// 数据库中以西班牙语小写无重音名称存储（lunes、miercoles...）
type Weekday int

// WeekdayInvalid 无法识别的星期名称
const WeekdayInvalid Weekday = -1

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// 支持的展示语言
const (
	LocaleES = "es"
	LocaleEN = "en"
)

var weekdayTokens = map[string][7]string{
	LocaleES: {"domingo", "lunes", "martes", "miercoles", "jueves", "viernes", "sabado"},
	LocaleEN: {"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
}

// 带重音的展示名称
var weekdayDisplayES = [7]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var weekdayLookup = func() map[string]Weekday {
	m := make(map[string]Weekday, 14)
	for _, tokens := range weekdayTokens {
		for i, tok := range tokens {
			m[tok] = Weekday(i)
		}
	}
	return m
}()

// FoldToken 去除首尾空白、转小写并剥离变音符号（"Miércoles" → "miercoles"）
func FoldToken(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.ToLower(folded)
}

// ParseWeekday 解析西班牙语或英语星期名称，大小写与重音不敏感
func ParseWeekday(name string) (Weekday, bool) {
	d, ok := weekdayLookup[FoldToken(name)]
	if !ok {
		return WeekdayInvalid, false
	}
	return d, true
}

// Valid 是否为合法星期
func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// Token 指定语言下的规范化名称；未知语言回退到西班牙语
func (d Weekday) Token(locale string) string {
	if !d.Valid() {
		return ""
	}
	tokens, ok := weekdayTokens[locale]
	if !ok {
		tokens = weekdayTokens[LocaleES]
	}
	return tokens[d]
}

// Display 面向用户的名称（西班牙语带重音，英语首字母大写）
func (d Weekday) Display(locale string) string {
	if !d.Valid() {
		return ""
	}
	if locale == LocaleEN {
		tok := weekdayTokens[LocaleEN][d]
		return strings.ToUpper(tok[:1]) + tok[1:]
	}
	return weekdayDisplayES[d]
}

func (d Weekday) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return d.Token(LocaleES)
}

// Scan 数据库读取边界：统一规范化，无法识别的名称得到 WeekdayInvalid 而不是报错，
// 由业务层返回 InvalidSchedule
func (d *Weekday) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*d = WeekdayInvalid
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("Weekday.Scan: unsupported type %T", src)
	}
	parsed, _ := ParseWeekday(s)
	*d = parsed
	return nil
}

// Value 以西班牙语规范名称写入数据库
func (d Weekday) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("Weekday.Value: invalid weekday %d", int(d))
	}
	return d.Token(LocaleES), nil
}

// MarshalText JSON 序列化为规范名称
func (d Weekday) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 接受任意支持语言的星期名称
func (d *Weekday) UnmarshalText(b []byte) error {
	parsed, ok := ParseWeekday(string(b))
	if !ok {
		return fmt.Errorf("无法识别的星期: %q", string(b))
	}
	*d = parsed
	return nil
}
