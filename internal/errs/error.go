package errs

import (
	"errors"
	"fmt"
)

var (
	// registry errors
	ErrNotInRegistry = errors.New("registry: 没有匹配类型的对象")
	errNilEntry      = errors.New("registry: 对象不能为 nil")
	errNilSupplier   = errors.New("registry: 延迟构造函数不能为 nil")

	// context errors
	ErrResponseCommitted = errors.New("web: 响应已经发送")
	ErrNoSuchRenderer    = errors.New("web: 没有可用的 renderer")
	errInputNil          = errors.New("web: 输入不能为 nil")
	errBodyNil           = errors.New("web: body 为 nil")
	errKeyNil            = errors.New("web: key 不存在")
	errTemplateEngineNil = errors.New("web: 未注册模板引擎")
	errNoResponseSent    = errors.New("web: 处理链结束但没有发送响应")
	ErrPanicked          = errors.New("web: handler panic")

	// path binding errors
	errTokenNameEmpty    = errors.New("web: 非法路径，路径参数名不能为空")
	errTokenDuplicate    = errors.New("web: 非法路径，路径参数重复")
	errOptionalNotLast   = errors.New("web: 非法路径，可选参数之后只能是可选参数")
	errRegularExpression = errors.New("web: 正则表达式错误")

	// session errors
	ErrSessionKeyNotFound = errors.New("session: 找不到 key")
	ErrSessionNotFound    = errors.New("session: id 对应的 session 不存在")
)

func ErrNotInRegistryType(typ string) error {
	return fmt.Errorf("%w [%s]", ErrNotInRegistry, typ)
}

func ErrNilEntry(typ string) error {
	return fmt.Errorf("%w [%s]", errNilEntry, typ)
}

func ErrNilSupplier(typ string) error {
	return fmt.Errorf("%w [%s]", errNilSupplier, typ)
}

func ErrNoRendererFor(typ string) error {
	return fmt.Errorf("%w [%s]", ErrNoSuchRenderer, typ)
}

func ErrInputNil() error {
	return fmt.Errorf("%w", errInputNil)
}

func ErrBodyNil() error {
	return fmt.Errorf("%w", errBodyNil)
}

func ErrKeyNil() error {
	return fmt.Errorf("%w", errKeyNil)
}

func ErrTemplateEngineNil() error {
	return fmt.Errorf("%w", errTemplateEngineNil)
}

func ErrNoResponseSent(method, path string) error {
	return fmt.Errorf("%w, %s %s", errNoResponseSent, method, path)
}

func ErrHandlerPanic(val any) error {
	if err, ok := val.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanicked, err)
	}
	return fmt.Errorf("%w: %v", ErrPanicked, val)
}

func ErrTokenNameEmpty(pattern string) error {
	return fmt.Errorf("%w [%s]", errTokenNameEmpty, pattern)
}

func ErrTokenDuplicate(name, pattern string) error {
	return fmt.Errorf("%w，参数 %s，路径 [%s]", errTokenDuplicate, name, pattern)
}

func ErrOptionalNotLast(pattern string) error {
	return fmt.Errorf("%w [%s]", errOptionalNotLast, pattern)
}

func ErrRegularExpression(err error) error {
	return fmt.Errorf("%w %w", errRegularExpression, err)
}

func ErrKeyNotFound(key string) error {
	return fmt.Errorf("%w, key %s", ErrSessionKeyNotFound, key)
}

func ErrIdSessionNotFound(id string) error {
	return fmt.Errorf("%w, id %s", ErrSessionNotFound, id)
}
