package routetable

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch 以事件驱动方式补充轮询：收到声明文件的写入/创建事件后调用
// CheckAndReloadIfChanged；interval 大于零时再叠加一条固定节奏的
// 定时检查，覆盖不产生写入事件的变更（例如仅 mtime 前移）。时间戳
// 判定始终是唯一的重载依据，事件与定时只是把检查提前。ctx 取消后
// 停止并释放 watcher。
func (r *Reloader) Watch(ctx context.Context, interval time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监视器失败: %w", err)
	}

	for _, path := range r.Paths() {
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("监视 %s 失败: %w", path, err)
		}
	}

	// 日志器在锁内取一次快照，循环无锁使用。
	r.mu.Lock()
	logger := r.logger
	r.mu.Unlock()

	go r.watchLoop(ctx, watcher, logger, interval)
	return nil
}

func (r *Reloader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, logger *logrus.Logger, interval time.Duration) {
	defer watcher.Close()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			reloaded, err := r.CheckAndReloadIfChanged()
			if logger == nil {
				continue
			}
			if err != nil {
				logger.WithField("action", "routes_poll").WithError(err).Error("路由重载失败")
				continue
			}
			if reloaded {
				logger.WithField("action", "routes_poll").Info("检测到声明变更，路由表已重建")
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := r.CheckAndReloadIfChanged()
			if logger == nil {
				continue
			}
			fields := logrus.Fields{
				"action": "routes_watch",
				"path":   event.Name,
			}
			if err != nil {
				logger.WithFields(fields).WithError(err).Error("路由重载失败")
				continue
			}
			if reloaded {
				logger.WithFields(fields).Info("检测到声明变更，路由表已重建")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if logger != nil {
				logger.WithField("action", "routes_watch").WithError(err).Warn("文件监视器错误")
			}
		}
	}
}
