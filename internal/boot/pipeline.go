package boot

import (
	"fmt"
	"runtime/debug"

	"github.com/modboot/modboot/internal/contributor"
	"github.com/modboot/modboot/internal/logging"
	"github.com/modboot/modboot/internal/middleware"
)

// contributorSource 提供贡献者枚举，测试用桩件替换。
var contributorSource = contributor.List

// BuildOrderedInitializers 产出固定拼接顺序的初始化序列：Bootstrap
// 阶段内建项、按注册顺序排列的全部贡献者声明项、Finisher 阶段内建项。
//
// 排序语义是纯拼接：Before/After 只在单个声明列表内部做注册期相对
// 插入（与中间件栈同一机制），不做跨阶段、跨贡献者的拓扑排序。同一
// 次执行内名字必须唯一。
func BuildOrderedInitializers() ([]contributor.Initializer, error) {
	bootstrap, err := orderPhase(bootstrapInitializers())
	if err != nil {
		return nil, err
	}

	var contributed []contributor.Initializer
	for _, c := range contributorSource() {
		own, err := orderPhase(c.Initializers())
		if err != nil {
			return nil, fmt.Errorf("contributor %s: %w", c.Key(), err)
		}
		for _, init := range own {
			init.Phase = contributor.PhaseContributed
			contributed = append(contributed, init)
		}
	}

	finisher, err := orderPhase(finisherInitializers())
	if err != nil {
		return nil, err
	}

	result := make([]contributor.Initializer, 0, len(bootstrap)+len(contributed)+len(finisher))
	result = append(result, bootstrap...)
	result = append(result, contributed...)
	result = append(result, finisher...)

	seen := make(map[string]struct{}, len(result))
	for _, init := range result {
		if _, dup := seen[init.Name]; dup {
			return nil, fmt.Errorf("duplicate initializer name: %s", init.Name)
		}
		seen[init.Name] = struct{}{}
	}
	return result, nil
}

// orderPhase 按声明顺序放置初始化器，Before/After 触发相对插入。
// 引用不存在的名字是配置错误。
func orderPhase(inits []contributor.Initializer) ([]contributor.Initializer, error) {
	var ordered []contributor.Initializer
	for _, init := range inits {
		at := len(ordered)
		switch {
		case init.Before != "":
			idx := indexOf(ordered, init.Before)
			if idx < 0 {
				return nil, fmt.Errorf("initializer %s: before target %s not found", init.Name, init.Before)
			}
			at = idx
		case init.After != "":
			idx := indexOf(ordered, init.After)
			if idx < 0 {
				return nil, fmt.Errorf("initializer %s: after target %s not found", init.Name, init.After)
			}
			at = idx + 1
		}
		ordered = append(ordered, contributor.Initializer{})
		copy(ordered[at+1:], ordered[at:])
		ordered[at] = init
	}
	return ordered, nil
}

func indexOf(inits []contributor.Initializer, name string) int {
	for i, init := range inits {
		if init.Name == name {
			return i
		}
	}
	return -1
}

// Execute 同步、按序执行初始化器，每个动作收到同一个应用实例。
// 首个错误立即中止剩余管线；动作内的 panic 被转换为错误，堆栈经
// 过滤后写入日志再向上传播——半初始化的进程绝不对外服务。
func Execute(app *Application, inits []contributor.Initializer) error {
	for _, init := range inits {
		if logger := app.Logger(); logger != nil {
			logger.WithFields(logging.BootFields(init.Phase.String(), init.Name)).Debug("运行初始化器")
		}
		if err := runInitializer(app, init); err != nil {
			return fmt.Errorf("initializer %s failed: %w", init.Name, err)
		}
	}
	return nil
}

func runInitializer(app *Application, init contributor.Initializer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			if app.backtrace != nil && app.Logger() != nil {
				for _, line := range app.backtrace.Clean(stack) {
					app.Logger().WithFields(logging.BootFields(init.Phase.String(), init.Name)).Error(line)
				}
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if init.Action == nil {
		return nil
	}
	return init.Action(app)
}

// bootstrapInitializers 是进程类型固有的 Bootstrap 阶段内建项。
func bootstrapInitializers() []contributor.Initializer {
	return []contributor.Initializer{
		{
			Name:  "load_config_defaults",
			Phase: contributor.PhaseBootstrap,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				settings, err := app.tree.Settings()
				if err != nil {
					return err
				}
				app.settings = settings
				return nil
			},
		},
		{
			Name:  "initialize_logger",
			Phase: contributor.PhaseBootstrap,
			After: "load_config_defaults",
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				logger, err := logging.InitLogger(app.settings)
				if err != nil {
					return err
				}
				app.logger = logger
				app.reloader.SetLogger(logger)
				return nil
			},
		},
		{
			Name:  "setup_load_paths",
			Phase: contributor.PhaseBootstrap,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				seen := map[string]struct{}{}
				var deduped []string
				for _, p := range app.loadPaths {
					if _, dup := seen[p]; dup {
						continue
					}
					seen[p] = struct{}{}
					deduped = append(deduped, p)
				}
				app.loadPaths = deduped
				return nil
			},
		},
		{
			Name:  "register_reload_hooks",
			Phase: contributor.PhaseBootstrap,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				for _, path := range app.settings.RoutePaths {
					app.reloader.RegisterPath(path)
				}
				return nil
			},
		},
		{
			Name:  "prepare_eager_load",
			Phase: contributor.PhaseBootstrap,
			Action: func(host contributor.Host) error {
				// 此处只确认能力存在；真正的 eager load 在 Finisher 阶段。
				for _, c := range contributorSource() {
					if c == nil {
						return fmt.Errorf("registry contains nil contributor")
					}
				}
				return nil
			},
		},
		{
			Name:  "initialize_secret_token",
			Phase: contributor.PhaseBootstrap,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				if app.settings.SessionConfigured() && app.settings.SecretToken == "" {
					return fmt.Errorf("session store requires a secret token")
				}
				return nil
			},
		},
		{
			Name:  "initialize_backtrace_cleaner",
			Phase: contributor.PhaseBootstrap,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				app.backtrace = logging.NewBacktraceCleaner(
					"runtime.",
					"runtime/debug",
					"github.com/gofiber/",
					"github.com/valyala/",
				)
				return nil
			},
		},
	}
}

// finisherInitializers 是进程类型固有的 Finisher 阶段内建项。
func finisherInitializers() []contributor.Initializer {
	return []contributor.Initializer{
		{
			Name:  "build_middleware_stack",
			Phase: contributor.PhaseFinisher,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				if len(app.stack.Names()) > 0 {
					// 某个贡献者已自行组装，尊重其结果。
					return nil
				}
				return middleware.BuildDefault(app.stack, middleware.DefaultOptions{
					Settings: app.settings,
					Logger:   app.logger,
					Prepare:  app.RunToPrepare,
					Check:    app.reloader.CheckAndReloadIfChanged,
				})
			},
		},
		{
			Name:  "set_default_locale",
			Phase: contributor.PhaseFinisher,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				env := app.Env()
				if _, exists := env["default_locale"]; !exists {
					env["default_locale"] = "en"
				}
				return nil
			},
		},
		{
			Name:  "run_eager_load",
			Phase: contributor.PhaseFinisher,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				if !app.settings.EagerLoad {
					return nil
				}
				return app.EagerLoadAll()
			},
		},
		{
			Name:  "load_routes",
			Phase: contributor.PhaseFinisher,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				if len(app.reloader.Paths()) == 0 {
					return nil
				}
				return app.reloader.Reload()
			},
		},
		{
			Name:  "disable_dependency_reloading",
			Phase: contributor.PhaseFinisher,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				if app.settings.CacheClasses {
					app.hookMu.Lock()
					app.prepareDisabled = true
					app.hookMu.Unlock()
				}
				return nil
			},
		},
		{
			Name:   "wire_to_prepare",
			Phase:  contributor.PhaseFinisher,
			Before: "disable_dependency_reloading",
			Action: func(host contributor.Host) error {
				// 启动收尾时整体跑一次 to_prepare，与每请求路径共用同一实现。
				app := host.(*Application)
				return app.RunToPrepare()
			},
		},
		{
			Name:  "run_after_initialize",
			Phase: contributor.PhaseFinisher,
			Action: func(host contributor.Host) error {
				app := host.(*Application)
				app.hookMu.Lock()
				hooks := make([]contributor.Action, len(app.afterInitialize))
				copy(hooks, app.afterInitialize)
				app.hookMu.Unlock()
				for _, hook := range hooks {
					if err := hook(app); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
