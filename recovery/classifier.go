package recovery

import (
	"context"
	"errors"
	"io/fs"
	"net"

	"github.com/BaSui01/agentcore/recovery/circuitbreaker"
	"github.com/BaSui01/agentcore/types"
)

// Category 失败类别
type Category string

const (
	CategoryTransient  Category = "TRANSIENT"
	CategoryPermission Category = "PERMISSION"
	CategoryDependency Category = "DEPENDENCY"
	CategoryValidation Category = "VALIDATION"
	CategoryUnknown    Category = "UNKNOWN"
)

// Action 类别对应的恢复动作
type Action int

const (
	// ActionRetry 退避重试
	ActionRetry Action = iota
	// ActionAbort 立即放弃，不重试
	ActionAbort
	// ActionTrip 打开依赖的熔断器后放弃
	ActionTrip
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionAbort:
		return "abort"
	case ActionTrip:
		return "trip"
	default:
		return "unknown"
	}
}

// ActionFor 返回类别对应的恢复动作
func ActionFor(c Category) Action {
	switch c {
	case CategoryPermission, CategoryValidation:
		return ActionAbort
	case CategoryDependency:
		return ActionTrip
	default:
		return ActionRetry
	}
}

// CountsTowardBreaker 客户端错误（权限、校验）不计入熔断失败
func CountsTowardBreaker(c Category) bool {
	return c != CategoryPermission && c != CategoryValidation
}

// categorized 携带显式类别的错误
type categorized struct {
	category   Category
	dependency string
	err        error
}

func (e *categorized) Error() string {
	if e.dependency != "" {
		return string(e.category) + " (" + e.dependency + "): " + e.err.Error()
	}
	return string(e.category) + ": " + e.err.Error()
}

func (e *categorized) Unwrap() error { return e.err }

// Category 实现类别载体接口
func (e *categorized) Category() Category { return e.category }

// DependencyName 返回出错的依赖名
func (e *categorized) DependencyName() string { return e.dependency }

func wrap(c Category, dep string, err error) error {
	if err == nil {
		err = errors.New(string(c))
	}
	return &categorized{category: c, dependency: dep, err: err}
}

// Transient 标记 err 为暂时性错误
func Transient(err error) error { return wrap(CategoryTransient, "", err) }

// Permission 标记 err 为权限错误
func Permission(err error) error { return wrap(CategoryPermission, "", err) }

// Validation 标记 err 为输入校验错误
func Validation(err error) error { return wrap(CategoryValidation, "", err) }

// Dependency 标记 err 为依赖 name 不可用，name 为空时熔断任务自身
func Dependency(name string, err error) error { return wrap(CategoryDependency, name, err) }

// Classify 对错误分类，纯函数。nil 返回空类别。
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	// 显式类别载体优先
	var carrier interface{ Category() Category }
	if errors.As(err, &carrier) {
		return carrier.Category()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, fs.ErrPermission) {
		return CategoryPermission
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		switch typed.Code {
		case types.ErrTimeout, types.ErrRateLimited, types.ErrServiceUnavailable:
			return CategoryTransient
		case types.ErrUnauthorized, types.ErrForbidden, types.ErrAuthentication:
			return CategoryPermission
		case types.ErrInvalidRequest, types.ErrValidation:
			return CategoryValidation
		case types.ErrDependency, types.ErrUpstreamError:
			return CategoryDependency
		}
		if typed.Retryable {
			return CategoryTransient
		}
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return CategoryDependency
	}

	return CategoryUnknown
}

// DependencyOf 返回错误中命名的依赖，未命名时返回空串
func DependencyOf(err error) string {
	var named interface{ DependencyName() string }
	if errors.As(err, &named) && named.DependencyName() != "" {
		return named.DependencyName()
	}
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed.Dependency
	}
	return ""
}
