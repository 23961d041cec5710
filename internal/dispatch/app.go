package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/routetable"
)

// AppOptions 控制调度应用的组装方式。
type AppOptions struct {
	Logger     *logrus.Logger
	Chain      []fiber.Handler
	Table      *routetable.Table
	ListenPort int
}

// NewApp 用定格后的中间件链与路由表组装 Fiber 应用。应用建成即代表
// 调度子系统可用，此处向路由表声明就绪，补发此前被推迟的定版。
//
// 请求按路由表当前快照匹配，重建后的表无需重新向 Fiber 注册路由。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Table == nil {
		return nil, errors.New("route table is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	for _, h := range opts.Chain {
		app.Use(h)
	}

	app.All("/*", func(c fiber.Ctx) error {
		def, params, ok := matchRoute(opts.Table.Snapshot(), c.Method(), string(c.Request().URI().Path()))
		if !ok {
			return renderRouteUnmapped(c, opts.Logger)
		}
		for key, value := range params {
			c.Locals("route_param_"+key, value)
		}
		handler, found := ResolveHandler(def.Handler)
		if !found {
			opts.Logger.WithFields(logrus.Fields{
				"action":  "dispatch",
				"route":   def.Name,
				"handler": def.Handler,
			}).Error("处理器未注册")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "handler_missing",
			})
		}
		return handler(c)
	})

	opts.Table.MarkDispatcherReady(func(defs []routetable.RouteDef) {
		opts.Logger.WithFields(logrus.Fields{
			"action": "routes_finalized",
			"routes": len(defs),
		}).Info("路由表已定版")
	})

	return app, nil
}

func renderRouteUnmapped(c fiber.Ctx, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "dispatch",
		"method": c.Method(),
		"path":   string(c.Request().URI().Path()),
	}).Warn("路由未命中")
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "route_unmapped",
	})
}

// matchRoute 在快照中寻找第一条方法与路径都匹配的定义。路径段以
// ":" 开头时作为命名参数匹配任意单段。
func matchRoute(defs []routetable.RouteDef, method, path string) (routetable.RouteDef, map[string]string, bool) {
	for _, def := range defs {
		if def.Method != method {
			continue
		}
		if params, ok := matchPath(def.Path, path); ok {
			return def, params, true
		}
	}
	return routetable.RouteDef{}, nil, false
}

func matchPath(pattern, path string) (map[string]string, bool) {
	patternSegs := splitPath(pattern)
	pathSegs := splitPath(path)
	if len(patternSegs) != len(pathSegs) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range patternSegs {
		if strings.HasPrefix(seg, ":") {
			if params == nil {
				params = map[string]string{}
			}
			params[seg[1:]] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
