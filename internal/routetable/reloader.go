package routetable

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/logging"
)

// Reloader 监视一组路由声明文件，在变更时驱动整表重建。进程内单例，
// 生命周期与进程一致。互斥锁保证两次重建不会交错各自的
// Clearing/Repopulating 状态迁移。
type Reloader struct {
	mu     sync.Mutex
	table  *Table
	logger *logrus.Logger

	paths    []string
	lastSeen map[string]time.Time
}

// NewReloader 绑定路由表与日志器，此时不做任何 IO。
func NewReloader(table *Table, logger *logrus.Logger) *Reloader {
	return &Reloader{
		table:    table,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
	}
}

// SetLogger 绑定日志器。重载器先于进程日志器创建，故允许后补。
func (r *Reloader) SetLogger(logger *logrus.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterPath 追加一个声明文件，重建按注册顺序重放。重复注册忽略。
func (r *Reloader) RegisterPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.paths {
		if existing == path {
			return
		}
	}
	r.paths = append(r.paths, path)
}

// Paths 返回注册顺序的声明文件列表。
func (r *Reloader) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.paths))
	copy(result, r.paths)
	return result
}

// Reload 执行一次完整重建：置抑制标志并清表，按注册顺序重放每个
// 声明文件，成功后释放标志并触发（可能被推迟的）定版。
//
// 抑制标志在所有退出路径上释放，包括某个文件解码失败的情况；失败时
// 表处于已清空且未定版的已知状态，修复文件后可直接重试。
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked()
}

func (r *Reloader) reloadLocked() (err error) {
	r.table.SetSuppression(true)
	r.table.Clear()
	defer func() {
		r.table.SetSuppression(false)
		if err == nil {
			r.table.Finalize()
		}
	}()

	for _, path := range r.paths {
		defs, loadErr := LoadDeclarationFile(path)
		if loadErr != nil {
			err = fmt.Errorf("重放 %s 失败: %w", path, loadErr)
			return err
		}
		r.table.Append(defs...)
		if r.logger != nil {
			r.logger.WithFields(logging.ReloadFields("routes_reload", path, len(defs))).Debug("声明文件已重放")
		}
	}

	r.snapshotMTimesLocked()
	return nil
}

// CheckAndReloadIfChanged 轮询所有声明文件的修改时间，与上次快照
// 不同才触发 Reload。重载次数等于观察到的时间戳变更次数，而非检查
// 次数。适合按固定节奏（例如开发模式下每个请求）调用。
func (r *Reloader) CheckAndReloadIfChanged() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(map[string]time.Time, len(r.paths))
	changed := false
	for _, path := range r.paths {
		info, err := os.Stat(path)
		if err != nil {
			return false, fmt.Errorf("检查 %s 失败: %w", path, err)
		}
		current[path] = info.ModTime()
		if r.lastSeen[path] != info.ModTime() {
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	// 先推进快照再重建：失败的重建不会让同一次变更反复触发。
	r.lastSeen = current
	if err := r.reloadLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// snapshotMTimesLocked 在成功重建后记录当前时间戳基线。Stat 失败的
// 文件跳过，下次检查会再次报错。
func (r *Reloader) snapshotMTimesLocked() {
	for _, path := range r.paths {
		if info, err := os.Stat(path); err == nil {
			r.lastSeen[path] = info.ModTime()
		}
	}
}
