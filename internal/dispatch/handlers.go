package dispatch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
)

var (
	handlersMu sync.RWMutex
	handlers   = make(map[string]fiber.Handler)
)

// RegisterHandler 注册一个命名处理器，路由定义通过 Handler 字段按名
// 引用。重复键返回错误。
func RegisterHandler(key string, h fiber.Handler) error {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return fmt.Errorf("handler key is required")
	}
	if h == nil {
		return fmt.Errorf("handler %s is nil", normalized)
	}

	handlersMu.Lock()
	defer handlersMu.Unlock()

	if _, exists := handlers[normalized]; exists {
		return fmt.Errorf("handler %s already registered", normalized)
	}
	handlers[normalized] = h
	return nil
}

// MustRegisterHandler 在注册失败时 panic，适合组件 init() 中调用。
func MustRegisterHandler(key string, h fiber.Handler) {
	if err := RegisterHandler(key, h); err != nil {
		panic(err)
	}
}

// ResolveHandler 返回指定键的处理器。
func ResolveHandler(key string) (fiber.Handler, bool) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	h, ok := handlers[strings.ToLower(strings.TrimSpace(key))]
	return h, ok
}
