package response

import "errors"

// AppError 业务错误：业务码 + 消息键 + 原始错误
type AppError struct {
	Code int
	Key  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Key
	}
	return e.Key + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, key string, err error) *AppError {
	return &AppError{Code: code, Key: key, Err: err}
}

// AsAppError 提取错误链中的 AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
