package evaluator

import (
	"errors"
	"fmt"
)

// TransientError 瞬态集成错误（超时、暂时不可达）
//
// 控制器带退避重试，直到重试上限后升级为活动失败。
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError 永久集成错误（变异负载畸形，评估器直接拒绝）
//
// 只有该变异被标记 failed，活动继续。
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Transient 包装一个瞬态错误
func Transient(err error) error {
	return &TransientError{Err: err}
}

// Permanent 包装一个永久错误
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
