package routetable

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// declFile 映射一个 TOML 路由声明文件的整体结构，若干 [[Route]] 条目。
type declFile struct {
	Routes []RouteDef `mapstructure:"Route"`
}

// LoadDeclarationFile 重放一个路由声明文件：解码全部条目并按文件内
// 顺序返回。任何一条非法即整个文件失败，由调用方中止本次重建。
func LoadDeclarationFile(path string) ([]RouteDef, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取路由声明失败: %w", err)
	}

	var file declFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("解析路由声明失败: %w", err)
	}

	for i := range file.Routes {
		if err := normalizeRoute(&file.Routes[i]); err != nil {
			return nil, fmt.Errorf("第 %d 条路由非法: %w", i+1, err)
		}
	}
	return file.Routes, nil
}

func normalizeRoute(def *RouteDef) error {
	def.Method = strings.ToUpper(strings.TrimSpace(def.Method))
	if def.Method == "" {
		def.Method = "GET"
	}
	switch def.Method {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
	default:
		return fmt.Errorf("不支持的方法: %s", def.Method)
	}

	def.Path = strings.TrimSpace(def.Path)
	if def.Path == "" || !strings.HasPrefix(def.Path, "/") {
		return fmt.Errorf("路径必须以 / 开头: %q", def.Path)
	}

	def.Handler = strings.TrimSpace(def.Handler)
	if def.Handler == "" {
		return fmt.Errorf("缺少 Handler")
	}

	if def.Name == "" {
		def.Name = strings.ToLower(def.Method) + strings.ReplaceAll(def.Path, "/", "_")
	}
	return nil
}
