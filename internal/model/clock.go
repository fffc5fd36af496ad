package model

import (
	"strconv"
	"strings"
)

// ParseClock 解析 24 小时制 "HH:MM"
// 任一分量缺失或越界时该分量按 0 处理，ok 为 false
func ParseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	ok = len(parts) == 2

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		hour, ok = 0, false
	}
	if len(parts) == 2 {
		minute, err = strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			minute, ok = 0, false
		}
	}
	return hour, minute, ok
}

// IsClock 是否为严格的 "HH:MM" 格式
func IsClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	_, _, ok := ParseClock(s)
	return ok
}

// ClockMinutes "HH:MM" 对应的当日分钟数，非法分量按 0 处理
func ClockMinutes(s string) int {
	h, m, _ := ParseClock(s)
	return h*60 + m
}
