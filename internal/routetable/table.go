package routetable

import "sync"

// RouteDef 是一条路由定义：请求模式与调度处理器键的映射。
type RouteDef struct {
	Name    string `mapstructure:"Name"`
	Method  string `mapstructure:"Method"`
	Path    string `mapstructure:"Path"`
	Handler string `mapstructure:"Handler"`
}

// FinalizeHook 在调度子系统就绪后收到定版的路由快照。
type FinalizeHook func([]RouteDef)

// Table 是派生的路由表。重建期间经历 Stable → Clearing → Repopulating
// → Finalizing 四个状态；Clearing 窗口内由抑制标志阻止提前定版。
//
// 已知并被接受的竞态：重建互斥锁之外的读者在 Clearing 窗口内可能
// 观察到空表。除非外层调度被全局锁串行化，否则这里不提供原子切换。
type Table struct {
	mu   sync.RWMutex
	defs []RouteDef

	// disableClearAndFinalize 抑制重建窗口内由嵌套加载触发的定版。
	disableClearAndFinalize bool
	finalized               bool

	// 定版被推迟到调度子系统就绪；ready 前的 Finalize 只记下待办。
	dispatcherReady bool
	pendingFinalize bool
	onFinalize      FinalizeHook
}

// NewTable 创建空表，初始状态为 Stable。
func NewTable() *Table {
	return &Table{}
}

// Append 追加路由定义，声明文件重放与程序化注册共用此入口。
func (t *Table) Append(defs ...RouteDef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defs = append(t.defs, defs...)
}

// Clear 丢弃全部路由定义并撤销定版状态。
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defs = nil
	t.finalized = false
}

// SetSuppression 设置或释放抑制标志。重建方必须保证在所有退出路径上
// 释放，否则后续 Finalize 永远被吞掉。
func (t *Table) SetSuppression(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disableClearAndFinalize = on
}

// SuppressionSet 返回抑制标志当前值，供重载方与测试断言。
func (t *Table) SuppressionSet() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.disableClearAndFinalize
}

// Finalize 让当前表可对外服务。抑制标志置位时静默跳过（这正是该
// 标志存在的意义）；调度子系统尚未就绪时记为待办，就绪后补发。
func (t *Table) Finalize() {
	t.mu.Lock()
	if t.disableClearAndFinalize {
		t.mu.Unlock()
		return
	}
	t.finalized = true
	if !t.dispatcherReady || t.onFinalize == nil {
		t.pendingFinalize = true
		t.mu.Unlock()
		return
	}
	t.pendingFinalize = false
	hook := t.onFinalize
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	hook(snapshot)
}

// MarkDispatcherReady 声明调度子系统可用并注册定版回调。若此前有被
// 推迟的定版，立即补发一次。
func (t *Table) MarkDispatcherReady(hook FinalizeHook) {
	t.mu.Lock()
	t.dispatcherReady = true
	t.onFinalize = hook
	fire := t.pendingFinalize && hook != nil
	t.pendingFinalize = false
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	if fire {
		hook(snapshot)
	}
}

// Finalized 返回当前表是否处于可服务状态。
func (t *Table) Finalized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finalized
}

// Snapshot 返回路由定义的浅拷贝。Clearing 窗口内可能返回空表，见
// 类型注释中的竞态说明。
func (t *Table) Snapshot() []RouteDef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Table) snapshotLocked() []RouteDef {
	if len(t.defs) == 0 {
		return nil
	}
	result := make([]RouteDef, len(t.defs))
	copy(result, t.defs)
	return result
}
