package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// BootFields 提供初始化阶段的公共字段，供启动管线日志复用。
func BootFields(phase, initializer string) logrus.Fields {
	return logrus.Fields{
		"action":      "boot",
		"phase":       phase,
		"initializer": initializer,
	}
}

// ReloadFields 提供路由重载日志字段，path 为触发重载的声明文件。
func ReloadFields(action, path string, routes int) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"path":   path,
		"routes": routes,
	}
}
