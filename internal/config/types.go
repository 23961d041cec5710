package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Settings 是启动核心读取的全部配置项，初始化完成前只读一次。
type Settings struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// 并发与重载开关，决定中间件栈中全局锁与重载回调是否启用。
	AllowConcurrency      bool `mapstructure:"AllowConcurrency"`
	CacheClasses          bool `mapstructure:"CacheClasses"`
	ReloadRoutesOnRequest bool `mapstructure:"ReloadRoutesOnRequest"`
	EagerLoad             bool `mapstructure:"EagerLoad"`

	// 中间件默认栈的逐段开关。
	PerformCaching  bool     `mapstructure:"PerformCaching"`
	ServeStatic     bool     `mapstructure:"ServeStatic"`
	StaticRoot      string   `mapstructure:"StaticRoot"`
	SessionStore    string   `mapstructure:"SessionStore"`
	SessionKey      string   `mapstructure:"SessionKey"`
	TrustedProxies  []string `mapstructure:"TrustedProxies"`
	StandardsHeader bool     `mapstructure:"StandardsHeader"`

	// 进程级派生环境，初始化后合并一次并缓存。
	SecretToken      string   `mapstructure:"SecretToken"`
	FilterParameters []string `mapstructure:"FilterParameters"`
	AssetPath        string   `mapstructure:"AssetPath"`

	// 路由声明文件，按此处列出的顺序注册并重放。
	RoutePaths     []string `mapstructure:"RoutePaths"`
	ReloadInterval Duration `mapstructure:"ReloadInterval"`
}

// SessionConfigured 表示是否配置了会话存储，决定 session/flash 段是否进入默认栈。
func (s *Settings) SessionConfigured() bool {
	return strings.TrimSpace(s.SessionStore) != ""
}

// CodeReloadingEnabled 表示类缓存关闭时进入开发式重载模式。
func (s *Settings) CodeReloadingEnabled() bool {
	return !s.CacheClasses
}
