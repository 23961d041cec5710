package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/boot"
	"github.com/modboot/modboot/internal/config"
	_ "github.com/modboot/modboot/internal/contrib/health"
	"github.com/modboot/modboot/internal/dispatch"
	"github.com/modboot/modboot/internal/logging"
	"github.com/modboot/modboot/internal/routetable"
	"github.com/modboot/modboot/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	tree := config.NewTree(opts.configPath)

	if opts.checkOnly {
		settings, err := tree.Settings()
		if err != nil {
			fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
			return 1
		}
		if err := settings.Validate(); err != nil {
			fmt.Fprintf(stdErr, "配置校验失败: %v\n", err)
			return 1
		}
		routes := 0
		for _, path := range settings.RoutePaths {
			defs, err := routetable.LoadDeclarationFile(path)
			if err != nil {
				fmt.Fprintf(stdErr, "路由声明校验失败: %v\n", err)
				return 1
			}
			routes += len(defs)
		}
		logger, err := logging.InitLogger(settings)
		if err != nil {
			fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
			return 1
		}
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["route_paths"] = len(settings.RoutePaths)
		fields["routes"] = routes
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := boot.NewApplication(tree)
	if err != nil {
		fmt.Fprintf(stdErr, "创建应用失败: %v\n", err)
		return 1
	}
	if err := app.InitializeOnce(); err != nil {
		fmt.Fprintf(stdErr, "初始化失败: %v\n", err)
		return 1
	}

	settings := app.Settings()
	logger := app.Logger()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = settings.ListenPort
	fields["route_paths"] = len(settings.RoutePaths)
	fields["cache_classes"] = settings.CacheClasses
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("初始化管线完成")

	if err := startHTTPServer(app); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("modboot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 MODBOOT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("MODBOOT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// startHTTPServer 定格中间件链、组装 Fiber 应用并开始监听。类缓存
// 关闭时另起协程监听路由声明文件的写入事件，与请求前轮询互为补充。
func startHTTPServer(app *boot.Application) error {
	settings := app.Settings()
	logger := app.Logger()

	chain, err := app.Middleware().Build()
	if err != nil {
		return err
	}

	httpApp, err := dispatch.NewApp(dispatch.AppOptions{
		Logger:     logger,
		Chain:      chain,
		Table:      app.Routes(),
		ListenPort: settings.ListenPort,
	})
	if err != nil {
		return err
	}

	if settings.CodeReloadingEnabled() && len(app.Reloader().Paths()) > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := app.Reloader().Watch(ctx, settings.ReloadInterval.DurationValue()); err != nil {
			logger.WithFields(logrus.Fields{
				"action": "route_watch",
				"error":  err.Error(),
			}).Warn("路由声明监听未启动")
		}
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   settings.ListenPort,
	}).Info("Fiber 服务启动")

	return httpApp.Listen(fmt.Sprintf(":%d", settings.ListenPort))
}
