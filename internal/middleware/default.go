package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/config"
)

// 默认栈的段名。相对插入与替换均以这些名字为锚点。
const (
	StageResponseCache   = "response_cache"
	StageStaticFiles     = "static_files"
	StageGlobalLock      = "global_lock"
	StageRequestTiming   = "request_timing"
	StageRequestLogging  = "request_logging"
	StageExceptions      = "exceptions"
	StageRemoteIP        = "remote_ip"
	StageSendfile        = "sendfile"
	StageReloadGuard     = "reload_guard"
	StageCookieParser    = "cookie_parser"
	StageSession         = "session"
	StageFlash           = "flash"
	StageParamsParser    = "params_parser"
	StageMethodOverride  = "method_override"
	StageHeadNormalizer  = "head_normalizer"
	StageStandardsHeader = "standards_header"
)

// DefaultOptions 汇集默认栈的外部协作者。
type DefaultOptions struct {
	Settings *config.Settings
	Logger   *logrus.Logger
	// Prepare 运行 to_prepare 回调，Check 轮询路由声明变更。
	// reload_guard 段在类缓存关闭或 ReloadRoutesOnRequest 开启时进
	// 栈；Check 只在 ReloadRoutesOnRequest 开启时按请求消费。
	Prepare func() error
	Check   func() (bool, error)
}

// BuildDefault 按固定顺序组装默认处理链，每一段受对应配置开关控制。
// 顺序即正确性：cookie 解析先于会话，异常呈现包住其后所有段。
func BuildDefault(stack *Stack, opts DefaultOptions) error {
	s := opts.Settings

	if s.PerformCaching {
		if err := stack.Use(StageResponseCache, func() fiber.Handler {
			return cache.New(cache.Config{Expiration: 5 * time.Minute})
		}); err != nil {
			return err
		}
	}

	if s.ServeStatic {
		root := s.StaticRoot
		if err := stack.Use(StageStaticFiles, func() fiber.Handler {
			return static.New(root)
		}, root); err != nil {
			return err
		}
	}

	if !s.AllowConcurrency {
		if err := stack.Use(StageGlobalLock, GlobalLock); err != nil {
			return err
		}
	}

	if err := stack.Use(StageRequestTiming, RequestTiming); err != nil {
		return err
	}

	logger := opts.Logger
	if err := stack.Use(StageRequestLogging, func() fiber.Handler {
		return RequestLogging(logger)
	}); err != nil {
		return err
	}

	if err := stack.Use(StageExceptions, func() fiber.Handler {
		return recover.New()
	}); err != nil {
		return err
	}

	proxies := s.TrustedProxies
	if err := stack.Use(StageRemoteIP, func() fiber.Handler {
		return RemoteIP(proxies)
	}, proxies); err != nil {
		return err
	}

	if err := stack.Use(StageSendfile, Sendfile); err != nil {
		return err
	}

	if s.CodeReloadingEnabled() || s.ReloadRoutesOnRequest {
		prepare, check := opts.Prepare, opts.Check
		if !s.ReloadRoutesOnRequest {
			// 路由声明只由监视器/定时轮询驱动，请求路径仅跑 to_prepare。
			check = nil
		}
		if err := stack.Use(StageReloadGuard, func() fiber.Handler {
			return ReloadGuard(prepare, check)
		}); err != nil {
			return err
		}
	}

	if err := stack.Use(StageCookieParser, CookieParser); err != nil {
		return err
	}

	if s.SessionConfigured() {
		sessionKey := s.SessionKey
		if err := stack.Use(StageSession, func() fiber.Handler {
			return SessionStore(sessionKey)
		}, sessionKey); err != nil {
			return err
		}
		if err := stack.Use(StageFlash, func() fiber.Handler {
			return Flash(sessionKey + "_flash")
		}); err != nil {
			return err
		}
	}

	if err := stack.Use(StageParamsParser, ParamsParser); err != nil {
		return err
	}
	if err := stack.Use(StageMethodOverride, MethodOverride); err != nil {
		return err
	}
	if err := stack.Use(StageHeadNormalizer, HeadNormalizer); err != nil {
		return err
	}

	if s.StandardsHeader {
		if err := stack.Use(StageStandardsHeader, StandardsHeader); err != nil {
			return err
		}
	}

	return nil
}
