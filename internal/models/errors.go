package models

import (
	"errors"
	"fmt"
)

// 容器级错误: 终止当前容器的解析
var (
	ErrLayoutMismatch = errors.New("页面结构不匹配,未找到链接表格")
	ErrGateTimeout    = errors.New("安全验证等待超时")
)

// 单条链接错误: 在该链接上记为 "ERROR",不影响其他链接
var (
	ErrPopupTimeout = errors.New("等待弹窗超时")
	ErrLoadTimeout  = errors.New("弹窗页面加载超时")
	ErrResolution   = errors.New("链接解析失败")
)

// ErrStore 存储层错误,始终向调用方传播
var ErrStore = errors.New("存储操作失败")

// GateKind 安全验证类型
type GateKind string

const (
	GatePassword GateKind = "password" // 密码保护
	GateCaptcha  GateKind = "captcha"  // 验证码
)

// GateError 安全验证未在限定时间内解除
type GateError struct {
	Kind GateKind
}

// Error 实现error接口
func (e *GateError) Error() string {
	return fmt.Sprintf("%v: %s", ErrGateTimeout, e.Kind)
}

// Unwrap 支持errors.Is(err, ErrGateTimeout)
func (e *GateError) Unwrap() error {
	return ErrGateTimeout
}

// IsPassFatal 判断错误是否应终止整个容器
func IsPassFatal(err error) bool {
	return errors.Is(err, ErrLayoutMismatch) || errors.Is(err, ErrGateTimeout) || errors.Is(err, ErrStore)
}
