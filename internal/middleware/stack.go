package middleware

import (
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v3"
)

// Constructor 延迟构造一个处理段；Build 之前不产生任何副作用。
type Constructor func() fiber.Handler

// Entry 是有序处理链中的一个命名段。Args 仅作诊断展示，真正的参数
// 由 Constructor 闭包捕获。
type Entry struct {
	Name        string
	Args        []any
	Constructor Constructor
}

// StageNotFoundError 表示相对插入/删除引用了不存在的段名。
type StageNotFoundError struct {
	Stage string
}

func (e StageNotFoundError) Error() string {
	return fmt.Sprintf("middleware stage %s not found", e.Stage)
}

// ErrStackFrozen 表示栈已 Build 定格，不允许继续修改。
var ErrStackFrozen = fmt.Errorf("middleware stack already built")

// Stack 按声明顺序维护处理段序列。请求进入时从前到后穿过各段，返回
// 时从后到前折返（经典嵌套中间件语义），因此顺序直接决定正确性：
// cookie 解析必须先于会话处理，异常呈现必须包住所有可能出错的段。
type Stack struct {
	mu      sync.Mutex
	entries []Entry
	built   bool
}

// NewStack 创建空栈。
func NewStack() *Stack {
	return &Stack{}
}

// Use 追加一个段到末尾。
func (s *Stack) Use(name string, ctor Constructor, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return ErrStackFrozen
	}
	s.entries = append(s.entries, Entry{Name: name, Args: args, Constructor: ctor})
	return nil
}

// InsertBefore 在目标段之前插入；目标不存在时返回 StageNotFoundError
// 且栈保持不变。
func (s *Stack) InsertBefore(target, name string, ctor Constructor, args ...any) error {
	return s.insertAt(target, 0, Entry{Name: name, Args: args, Constructor: ctor})
}

// InsertAfter 在目标段之后插入，失配语义同 InsertBefore。
func (s *Stack) InsertAfter(target, name string, ctor Constructor, args ...any) error {
	return s.insertAt(target, 1, Entry{Name: name, Args: args, Constructor: ctor})
}

func (s *Stack) insertAt(target string, offset int, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return ErrStackFrozen
	}
	idx := s.indexOfLocked(target)
	if idx < 0 {
		return StageNotFoundError{Stage: target}
	}
	at := idx + offset
	s.entries = append(s.entries, Entry{})
	copy(s.entries[at+1:], s.entries[at:])
	s.entries[at] = entry
	return nil
}

// Delete 移除指定段；不存在时返回 StageNotFoundError。
func (s *Stack) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return ErrStackFrozen
	}
	idx := s.indexOfLocked(name)
	if idx < 0 {
		return StageNotFoundError{Stage: name}
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	return nil
}

// Swap 用新段原位替换目标段。
func (s *Stack) Swap(target, name string, ctor Constructor, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return ErrStackFrozen
	}
	idx := s.indexOfLocked(target)
	if idx < 0 {
		return StageNotFoundError{Stage: target}
	}
	s.entries[idx] = Entry{Name: name, Args: args, Constructor: ctor}
	return nil
}

// Names 返回当前段名序列，供日志与测试断言。
func (s *Stack) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.entries))
	for i, e := range s.entries {
		result[i] = e.Name
	}
	return result
}

// Built 返回栈是否已定格。
func (s *Stack) Built() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built
}

// Build 实例化全部段并定格栈，整个进程恰好调用一次；重复调用或
// 定格后修改都是错误。
func (s *Stack) Build() ([]fiber.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built {
		return nil, ErrStackFrozen
	}
	s.built = true

	handlers := make([]fiber.Handler, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Constructor == nil {
			return nil, fmt.Errorf("middleware stage %s has no constructor", entry.Name)
		}
		handlers = append(handlers, entry.Constructor())
	}
	return handlers, nil
}

func (s *Stack) indexOfLocked(name string) int {
	for i, e := range s.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
