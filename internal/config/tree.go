package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Tree 是配置树的惰性视图：首次读取时才解析文件，且进程内只物化一次。
// 启动核心全程把它当作只读输入，Finisher 阶段之前必须完成首次读取。
type Tree struct {
	path string

	once     sync.Once
	settings *Settings
	err      error
}

// NewTree 绑定配置文件路径，但不触发任何 IO。
func NewTree(path string) *Tree {
	if path == "" {
		path = "config.toml"
	}
	return &Tree{path: path}
}

// Path 返回绑定的配置文件路径，供日志与诊断使用。
func (t *Tree) Path() string {
	return t.path
}

// Settings 物化配置树并返回类型化结果。重复调用返回同一份快照，
// 首次解析失败的错误同样被缓存，不会重试。
func (t *Tree) Settings() (*Settings, error) {
	t.once.Do(func() {
		t.settings, t.err = t.materialize()
	})
	return t.settings, t.err
}

func (t *Tree) materialize() (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(t.path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	// 路由声明文件统一换算为绝对路径，保证重载快照键稳定。
	base := filepath.Dir(t.path)
	for i, p := range settings.RoutePaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("无法解析路由声明路径 %s: %w", p, err)
		}
		settings.RoutePaths[i] = abs
	}

	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)

	v.SetDefault("AllowConcurrency", true)
	v.SetDefault("CacheClasses", true)
	v.SetDefault("ReloadRoutesOnRequest", false)
	v.SetDefault("EagerLoad", false)

	v.SetDefault("PerformCaching", false)
	v.SetDefault("ServeStatic", false)
	v.SetDefault("StaticRoot", "./public")
	v.SetDefault("SessionStore", "")
	v.SetDefault("SessionKey", "_modboot_session")
	v.SetDefault("StandardsHeader", true)

	v.SetDefault("FilterParameters", []string{"password"})
	v.SetDefault("AssetPath", "/assets")
	v.SetDefault("ReloadInterval", "1s")
}
