package contributor

import (
	"fmt"
	"strings"
	"sync"
)

var globalRegistry = newRegistry()

// registry 按注册顺序保存贡献者，注册顺序即初始化顺序。
type registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Contributor
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]Contributor)}
}

// Register 将贡献者加入全局注册表，重复键会返回错误。
func Register(c Contributor) error {
	return globalRegistry.register(c)
}

// MustRegister 在注册失败时 panic，适合组件 init() 中调用。
func MustRegister(c Contributor) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的贡献者。
func Resolve(key string) (Contributor, bool) {
	return globalRegistry.resolve(key)
}

// List 按注册顺序返回所有贡献者；该顺序决定贡献阶段初始化器的执行顺序。
func List() []Contributor {
	return globalRegistry.list()
}

// Keys 返回所有已注册贡献者的键值，供调试或诊断使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, c := range items {
		result[i] = c.Key()
	}
	return result
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(c Contributor) error {
	if c == nil {
		return fmt.Errorf("contributor is required")
	}
	key := r.normalizeKey(c.Key())
	if key == "" {
		return fmt.Errorf("contributor key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("contributor %s already registered", key)
	}
	r.entries[key] = c
	r.order = append(r.order, key)
	return nil
}

func (r *registry) resolve(key string) (Contributor, bool) {
	if key == "" {
		return nil, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.entries[normalized]
	return c, ok
}

func (r *registry) list() []Contributor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil
	}

	result := make([]Contributor, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.entries[key])
	}
	return result
}
