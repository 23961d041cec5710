package boot

import "errors"

var (
	// ErrDuplicateApplication 表示进程内已存在应用实例。一个进程只
	// 允许定义一个应用，这是致命配置错误。
	ErrDuplicateApplication = errors.New("application instance already exists")

	// ErrAlreadyInitialized 表示 InitializeOnce 被第二次调用。这是
	// 一次性守卫而非幂等：重复调用是错误，不是空操作。
	ErrAlreadyInitialized = errors.New("application already initialized")
)
