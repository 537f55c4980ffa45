// Package sl 提供 slog 的常用字段构造函数
package sl

import "log/slog"

// Err 返回 key 为 "error" 的日志字段
//
//	log.Error("failed to settle credits", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
