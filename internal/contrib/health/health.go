// Package health 是内置的诊断贡献者，注册 health 处理器供路由声明引用。
package health

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/modboot/modboot/internal/contributor"
	"github.com/modboot/modboot/internal/dispatch"
	"github.com/modboot/modboot/internal/version"
)

var startedAt = time.Now()

func init() {
	contributor.MustRegister(&healthContributor{})
	dispatch.MustRegisterHandler("health", Handler)
}

// Handler 返回进程诊断信息，路由声明中以 Handler = "health" 引用。
func Handler(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"contributors":   contributor.Keys(),
	})
}

type healthContributor struct {
	contributor.Base
}

func (h *healthContributor) Key() string { return "health" }

func (h *healthContributor) Initializers() []contributor.Initializer {
	return []contributor.Initializer{
		{
			Name: "health.announce",
			Action: func(host contributor.Host) error {
				if logger := host.Logger(); logger != nil {
					logger.WithField("handler", "health").Debug("诊断端点已注册")
				}
				return nil
			},
		},
	}
}
