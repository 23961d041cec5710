package middleware

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Locals 键名集中定义，避免各段魔法字符串漂移。
const (
	localRequestID = "_modboot_request_id"
	localStartedAt = "_modboot_started_at"
	localRemoteIP  = "_modboot_remote_ip"
	localCookies   = "_modboot_cookies"
	localSessionID = "_modboot_session_id"
	localFlash     = "_modboot_flash"
	localParams    = "_modboot_params"
	localHead      = "_modboot_head_request"
)

// GlobalLock 把整条下游链包进一把进程级互斥锁，用于线程不安全部署
// 下的单请求串行化。锁在一次请求的完整处理期间持有。
func GlobalLock() fiber.Handler {
	var mu sync.Mutex
	return func(c fiber.Ctx) error {
		mu.Lock()
		defer mu.Unlock()
		return c.Next()
	}
}

// RequestTiming 生成请求 ID 并记录起始时间，返回途中写出 X-Request-ID
// 与 X-Runtime 头。
func RequestTiming() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(localRequestID, reqID)
		c.Locals(localStartedAt, time.Now())
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		if started, ok := c.Locals(localStartedAt).(time.Time); ok {
			c.Set("X-Runtime", time.Since(started).String())
		}
		return err
	}
}

// RequestLogging 在响应折返时输出一条结构化访问日志。
func RequestLogging(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()

		fields := logrus.Fields{
			"action":     "request",
			"method":     c.Method(),
			"path":       string(c.Request().URI().Path()),
			"status":     c.Response().StatusCode(),
			"request_id": RequestID(c),
		}
		if ip, ok := c.Locals(localRemoteIP).(string); ok {
			fields["remote_ip"] = ip
		}
		if err != nil {
			logger.WithFields(fields).WithError(err).Error("请求处理失败")
		} else {
			logger.WithFields(fields).Info("请求完成")
		}
		return err
	}
}

// RemoteIP 按可信代理列表解析真实客户端地址：X-Forwarded-For 从右向
// 左剥掉可信跳，剩下的第一个地址即客户端。
func RemoteIP(trustedProxies []string) fiber.Handler {
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, p := range trustedProxies {
		trusted[strings.TrimSpace(p)] = struct{}{}
	}

	return func(c fiber.Ctx) error {
		ip := c.IP()
		if raw := c.Request().Header.Peek("X-Forwarded-For"); len(raw) > 0 {
			hops := strings.Split(string(raw), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				candidate := strings.TrimSpace(hops[i])
				if candidate == "" {
					continue
				}
				if _, ok := trusted[candidate]; ok {
					continue
				}
				if net.ParseIP(candidate) != nil {
					ip = candidate
				}
				break
			}
		}
		c.Locals(localRemoteIP, ip)
		return c.Next()
	}
}

// Sendfile 把处理器写出的 X-Sendfile 响应头转换为真实的文件发送。
func Sendfile() fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if path := c.Response().Header.Peek("X-Sendfile"); len(path) > 0 {
			target := string(path)
			c.Response().Header.Del("X-Sendfile")
			return c.SendFile(target)
		}
		return nil
	}
}

// ReloadGuard 在每个请求进入前运行 to_prepare 回调并检查路由声明
// 是否变更。类缓存关闭或 ReloadRoutesOnRequest 开启时进入默认栈，
// 两个回调均可为 nil。
func ReloadGuard(prepare func() error, check func() (bool, error)) fiber.Handler {
	return func(c fiber.Ctx) error {
		if prepare != nil {
			if err := prepare(); err != nil {
				return err
			}
		}
		if check != nil {
			if _, err := check(); err != nil {
				return err
			}
		}
		return c.Next()
	}
}

// CookieParser 把请求 Cookie 头解析为 map 暂存，供会话/flash 段消费。
func CookieParser() fiber.Handler {
	return func(c fiber.Ctx) error {
		cookies := map[string]string{}
		c.Request().Header.VisitAllCookie(func(key, value []byte) {
			cookies[string(key)] = string(value)
		})
		c.Locals(localCookies, cookies)
		return c.Next()
	}
}

// SessionStore 维护 cookie 承载的会话标识：缺失时生成并下发。
// 必须排在 CookieParser 之后。
func SessionStore(cookieName string) fiber.Handler {
	return func(c fiber.Ctx) error {
		sessionID := ""
		if cookies, ok := c.Locals(localCookies).(map[string]string); ok {
			sessionID = cookies[cookieName]
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     cookieName,
				Value:    sessionID,
				HTTPOnly: true,
				Path:     "/",
			})
		}
		c.Locals(localSessionID, sessionID)
		return c.Next()
	}
}

// Flash 取出一次性 flash cookie 暴露给处理器，响应时清除。
func Flash(cookieName string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if cookies, ok := c.Locals(localCookies).(map[string]string); ok {
			if msg, exists := cookies[cookieName]; exists && msg != "" {
				c.Locals(localFlash, msg)
				c.Cookie(&fiber.Cookie{
					Name:    cookieName,
					Value:   "",
					Expires: time.Unix(0, 0),
					Path:    "/",
				})
			}
		}
		return c.Next()
	}
}

// ParamsParser 把查询参数物化为 map 暂存；请求体解析不在本层职责内。
func ParamsParser() fiber.Handler {
	return func(c fiber.Ctx) error {
		params := map[string]string{}
		c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})
		c.Locals(localParams, params)
		return c.Next()
	}
}

// MethodOverride 允许 POST 请求通过 X-HTTP-Method-Override 头或
// _method 参数改写动词，便于仅支持 GET/POST 的客户端。
func MethodOverride() fiber.Handler {
	allowed := map[string]struct{}{
		"PUT": {}, "PATCH": {}, "DELETE": {},
	}
	return func(c fiber.Ctx) error {
		if c.Method() == fiber.MethodPost {
			override := string(c.Request().Header.Peek("X-HTTP-Method-Override"))
			if override == "" {
				override = string(c.Request().URI().QueryArgs().Peek("_method"))
			}
			override = strings.ToUpper(strings.TrimSpace(override))
			if _, ok := allowed[override]; ok {
				c.Request().Header.SetMethod(override)
			}
		}
		return c.Next()
	}
}

// HeadNormalizer 把 HEAD 当作 GET 路由处理，折返时丢弃响应体。
func HeadNormalizer() fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Method() != fiber.MethodHead {
			return c.Next()
		}
		c.Locals(localHead, true)
		c.Request().Header.SetMethod(fiber.MethodGet)

		err := c.Next()

		c.Request().Header.SetMethod(fiber.MethodHead)
		c.Response().ResetBody()
		return err
	}
}

// StandardsHeader 注入标准兼容头，提示老式浏览器使用最新渲染引擎。
func StandardsHeader() fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()
		c.Set("X-UA-Compatible", "IE=Edge,chrome=1")
		return err
	}
}

// RequestID 返回计时段写入的请求标识，未经过该段时为空串。
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(localRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// SessionID 返回会话段写入的会话标识。
func SessionID(c fiber.Ctx) string {
	if value := c.Locals(localSessionID); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// Params 返回参数段物化的查询参数。
func Params(c fiber.Ctx) map[string]string {
	if value := c.Locals(localParams); value != nil {
		if params, ok := value.(map[string]string); ok {
			return params
		}
	}
	return nil
}
