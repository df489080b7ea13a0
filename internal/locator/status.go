package locator

import "github.com/pkg/errors"

// Status 描述资源根目录在初始化时检测到的状态。
type Status int

const (
	Unknown Status = iota
	FirstRun
	FirstUpdate
	Updating
	Initialized
)

func (s Status) String() string {
	switch s {
	case FirstRun:
		return "first_run"
	case FirstUpdate:
		return "first_update"
	case Updating:
		return "updating"
	case Initialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// Initialize 返回的错误总是包装下列哨兵之一，可用 errors.Is 判定。
var (
	ErrCannotCreateLocation = errors.New("cannot create resource location")
	ErrLocationReadOnly     = errors.New("resource location is read-only")
	ErrCannotSynchronizeDb  = errors.New("cannot synchronize cache database")
	ErrCannotInitializeDb   = errors.New("cannot initialize cache database")
)

// 资源查询错误。
var (
	ErrStorageNotRegistered = errors.New("storage not registered")
	ErrResourceNotFound     = errors.New("resource not found")
)

// ItemError 记录批量操作中单个条目的失败，不中断循环。
type ItemError struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

func (e ItemError) String() string {
	return e.Item + ": " + e.Reason
}

// Observer 接收人类可读的进度消息，不影响控制流。
type Observer func(message string)
