package boot

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/config"
	"github.com/modboot/modboot/internal/contributor"
	"github.com/modboot/modboot/internal/logging"
	"github.com/modboot/modboot/internal/middleware"
	"github.com/modboot/modboot/internal/routetable"
)

// appSingleton 是进程级应用槽位：创建时写入，仅进程退出时销毁。
var appSingleton struct {
	mu       sync.Mutex
	instance *Application
}

// beforeConfiguration 在应用创建前由外部代码注册，创建成功后立刻
// 以新实例为参数触发，让外部在任何配置被读取前完成准备。
var beforeConfiguration struct {
	mu    sync.Mutex
	hooks []func(*Application)
}

// OnBeforeConfiguration 注册一个应用创建时机的回调。
func OnBeforeConfiguration(f func(*Application)) {
	beforeConfiguration.mu.Lock()
	defer beforeConfiguration.mu.Unlock()
	beforeConfiguration.hooks = append(beforeConfiguration.hooks, f)
}

// Application 是被初始化管线驱动的进程对象，实现 contributor.Host。
type Application struct {
	tree     *config.Tree
	settings *config.Settings
	logger   *logrus.Logger
	stack    *middleware.Stack
	table    *routetable.Table
	reloader *routetable.Reloader

	loadPaths []string
	backtrace *logging.BacktraceCleaner

	// env 在首次访问时合并一次，进程生命周期内缓存。
	envOnce sync.Once
	env     map[string]any

	initMu      sync.Mutex
	initialized bool

	hookMu          sync.Mutex
	afterInitialize []contributor.Action
	toPrepare       []func() error
	prepareDisabled bool
}

var _ contributor.Host = (*Application)(nil)

// NewApplication 构造唯一的应用实例并登记为进程级应用。第二次调用
// 返回 ErrDuplicateApplication，已登记的实例保持不变。约定的 lib
// 目录（相对配置文件所在目录）若存在则并入模块搜索路径。
func NewApplication(tree *config.Tree) (*Application, error) {
	appSingleton.mu.Lock()
	if appSingleton.instance != nil {
		appSingleton.mu.Unlock()
		return nil, ErrDuplicateApplication
	}

	app := &Application{
		tree:  tree,
		stack: middleware.NewStack(),
		table: routetable.NewTable(),
	}
	app.reloader = routetable.NewReloader(app.table, nil)

	if lib := filepath.Join(filepath.Dir(tree.Path()), "lib"); isDir(lib) {
		app.loadPaths = append(app.loadPaths, lib)
	}

	appSingleton.instance = app
	appSingleton.mu.Unlock()

	beforeConfiguration.mu.Lock()
	hooks := make([]func(*Application), len(beforeConfiguration.hooks))
	copy(hooks, beforeConfiguration.hooks)
	beforeConfiguration.mu.Unlock()
	for _, hook := range hooks {
		hook(app)
	}

	return app, nil
}

// Instance 返回已登记的进程级应用，未创建时为 nil。
func Instance() *Application {
	appSingleton.mu.Lock()
	defer appSingleton.mu.Unlock()
	return appSingleton.instance
}

// InitializeOnce 执行完整的初始化管线，进程内恰好一次；第二次调用
// 返回 ErrAlreadyInitialized。守卫先于执行置位，初始化器内的重入
// 调用同样被拒绝。任何初始化器出错立即中止并向上传播。
func (a *Application) InitializeOnce() error {
	a.initMu.Lock()
	if a.initialized {
		a.initMu.Unlock()
		return ErrAlreadyInitialized
	}
	a.initialized = true
	a.initMu.Unlock()

	inits, err := BuildOrderedInitializers()
	if err != nil {
		return err
	}
	return Execute(a, inits)
}

// Config 实现 contributor.Host。
func (a *Application) Config() *config.Tree { return a.tree }

// Settings 返回已物化的配置快照，配置加载初始化器运行前为 nil。
func (a *Application) Settings() *config.Settings { return a.settings }

// Logger 返回进程日志器，日志初始化器运行前为 nil。
func (a *Application) Logger() *logrus.Logger { return a.logger }

// Middleware 返回中间件栈构建器。
func (a *Application) Middleware() *middleware.Stack { return a.stack }

// Routes 返回派生路由表。
func (a *Application) Routes() *routetable.Table { return a.table }

// Reloader 返回进程级路由重载器。
func (a *Application) Reloader() *routetable.Reloader { return a.reloader }

// LoadPaths 返回附加的模块搜索路径。
func (a *Application) LoadPaths() []string {
	result := make([]string, len(a.loadPaths))
	copy(result, a.loadPaths)
	return result
}

// Env 合并一次进程级派生环境：参数过滤规则、密钥、资源路径标记。
func (a *Application) Env() map[string]any {
	a.envOnce.Do(func() {
		a.env = map[string]any{}
		if s := a.settings; s != nil {
			a.env["filter_parameters"] = append([]string(nil), s.FilterParameters...)
			a.env["secret_token"] = s.SecretToken
			a.env["asset_path"] = s.AssetPath
		}
	})
	return a.env
}

// AfterInitialize 注册在 Finisher 阶段最后运行的回调。初始化完成后
// 再注册的回调不会被执行。
func (a *Application) AfterInitialize(action contributor.Action) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.afterInitialize = append(a.afterInitialize, action)
}

// ToPrepare 注册每次代码/路由重载前运行的回调；启动结束时也会整体
// 运行一次。
func (a *Application) ToPrepare(f func() error) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.toPrepare = append(a.toPrepare, f)
}

// RunToPrepare 依序运行全部 to_prepare 回调。类缓存开启时依赖重载
// 被禁用，此处直接跳过。
func (a *Application) RunToPrepare() error {
	a.hookMu.Lock()
	disabled := a.prepareDisabled
	hooks := make([]func() error, len(a.toPrepare))
	copy(hooks, a.toPrepare)
	a.hookMu.Unlock()

	if disabled {
		return nil
	}
	for _, hook := range hooks {
		if err := hook(); err != nil {
			return err
		}
	}
	return nil
}

// EagerLoadAll 依注册顺序触发每个贡献者的 eager load 能力。
func (a *Application) EagerLoadAll() error {
	for _, c := range contributorSource() {
		if err := c.EagerLoad(a); err != nil {
			return err
		}
	}
	return nil
}

// LoadTasks 依注册顺序加载所有贡献者的任务绑定。
func (a *Application) LoadTasks() error {
	for _, c := range contributorSource() {
		if err := c.LoadTasks(a); err != nil {
			return err
		}
	}
	return nil
}

// LoadGenerators 依注册顺序加载所有贡献者的生成器绑定。
func (a *Application) LoadGenerators() error {
	for _, c := range contributorSource() {
		if err := c.LoadGenerators(a); err != nil {
			return err
		}
	}
	return nil
}

// LoadConsole 依注册顺序加载所有贡献者的控制台绑定。
func (a *Application) LoadConsole() error {
	for _, c := range contributorSource() {
		if err := c.LoadConsole(a); err != nil {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// resetSingleton 仅供测试回收进程级槽位。
func resetSingleton() {
	appSingleton.mu.Lock()
	appSingleton.instance = nil
	appSingleton.mu.Unlock()

	beforeConfiguration.mu.Lock()
	beforeConfiguration.hooks = nil
	beforeConfiguration.mu.Unlock()
}
