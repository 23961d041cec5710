package config

import (
	"errors"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (s *Settings) Validate() error {
	if s == nil {
		return errors.New("配置为空")
	}

	if s.ListenPort <= 0 || s.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(s.LogLevel) == "" {
		return newFieldError("LogLevel", "不能为空")
	}
	if s.ServeStatic && strings.TrimSpace(s.StaticRoot) == "" {
		return newFieldError("StaticRoot", "启用 ServeStatic 时不能为空")
	}
	if s.SessionConfigured() {
		if s.SessionStore != "cookie" {
			return newFieldError("SessionStore", "仅支持 cookie 存储")
		}
		if strings.TrimSpace(s.SessionKey) == "" {
			return newFieldError("SessionKey", "配置会话存储时不能为空")
		}
		if strings.TrimSpace(s.SecretToken) == "" {
			return newFieldError("SecretToken", "配置会话存储时不能为空")
		}
	}
	if s.ReloadInterval.DurationValue() < 0 {
		return newFieldError("ReloadInterval", "不能为负数")
	}

	seen := map[string]struct{}{}
	for _, p := range s.RoutePaths {
		if strings.TrimSpace(p) == "" {
			return newFieldError("RoutePaths", "包含空路径")
		}
		if _, dup := seen[p]; dup {
			return newFieldError("RoutePaths", "路径重复: "+p)
		}
		seen[p] = struct{}{}
	}

	return nil
}
