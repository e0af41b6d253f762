package errs

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorType 标准错误类型
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"  // 数据验证错误
	ErrorTypeAuth        ErrorType = "AUTH_ERROR"        // 认证错误
	ErrorTypePermission  ErrorType = "PERMISSION_ERROR"  // 权限错误
	ErrorTypeResource    ErrorType = "RESOURCE_ERROR"    // 资源未找到
	ErrorTypeMethod      ErrorType = "METHOD_ERROR"      // 方法不允许
	ErrorTypeInput       ErrorType = "INPUT_ERROR"       // 其他客户端错误
	ErrorTypeInternal    ErrorType = "INTERNAL_ERROR"    // 内部服务器错误
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE_ERROR" // 服务不可用
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT_ERROR"  // 限流错误
	ErrorTypeTimeout     ErrorType = "TIMEOUT_ERROR"     // 超时错误
)

// APIError is the body written by the default error handlers.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"type":"INTERNAL_ERROR","code":500,"message":"Error serializing error response"}`)
	}
	return data
}

func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func NewInternalError(message string) *APIError {
	if message == "" {
		message = http.StatusText(http.StatusInternalServerError)
	}
	return &APIError{Type: ErrorTypeInternal, Code: http.StatusInternalServerError, Message: message}
}

// NewErrorFromStatus maps a status code onto an APIError. An empty
// message falls back to the standard status text.
func NewErrorFromStatus(statusCode int, message string) *APIError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	var typ ErrorType
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		typ = ErrorTypeValidation
	case http.StatusUnauthorized:
		typ = ErrorTypeAuth
	case http.StatusForbidden:
		typ = ErrorTypePermission
	case http.StatusNotFound:
		typ = ErrorTypeResource
	case http.StatusMethodNotAllowed:
		typ = ErrorTypeMethod
	case http.StatusRequestTimeout:
		typ = ErrorTypeTimeout
	case http.StatusTooManyRequests:
		typ = ErrorTypeRateLimit
	case http.StatusServiceUnavailable:
		typ = ErrorTypeUnavailable
	default:
		if statusCode >= 500 {
			typ = ErrorTypeInternal
		} else {
			typ = ErrorTypeInput
		}
	}
	return &APIError{Type: typ, Code: statusCode, Message: message}
}

// WrapError returns err itself when it is, or wraps, an *APIError.
// A body cut off by http.MaxBytesReader is a 413. Anything else becomes an opaque internal error so that messages of
// unexpected failures never reach the client.
func WrapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewErrorFromStatus(http.StatusRequestEntityTooLarge, "")
	}
	return NewInternalError("")
}
