package logging

import "strings"

// BacktraceCleaner 过滤 panic 堆栈中的噪音帧，只留下与业务代码相关
// 的行，便于启动失败时快速定位出错的初始化器。
type BacktraceCleaner struct {
	silencers []string
}

// NewBacktraceCleaner 以若干前缀创建过滤器，含这些前缀的帧会被丢弃。
func NewBacktraceCleaner(silencers ...string) *BacktraceCleaner {
	return &BacktraceCleaner{silencers: silencers}
}

// Clean 将原始堆栈文本过滤为干净的行列表。
func (b *BacktraceCleaner) Clean(stack string) []string {
	var result []string
	for _, line := range strings.Split(stack, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if b.silenced(trimmed) {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func (b *BacktraceCleaner) silenced(line string) bool {
	for _, prefix := range b.silencers {
		if strings.Contains(line, prefix) {
			return true
		}
	}
	return false
}
