package contributor

import (
	"github.com/sirupsen/logrus"

	"github.com/modboot/modboot/internal/config"
	"github.com/modboot/modboot/internal/middleware"
	"github.com/modboot/modboot/internal/routetable"
)

// Phase 描述初始化器所属阶段，三个阶段按固定顺序拼接执行。
type Phase int

const (
	PhaseBootstrap Phase = iota
	PhaseContributed
	PhaseFinisher
)

// String 输出日志字段使用的阶段名。
func (p Phase) String() string {
	switch p {
	case PhaseBootstrap:
		return "bootstrap"
	case PhaseContributed:
		return "contributed"
	case PhaseFinisher:
		return "finisher"
	default:
		return "unknown"
	}
}

// Host 是初始化器动作看到的应用实例视图。核心只通过该接口访问
// 应用，使贡献者包不依赖具体的 Application 类型。
type Host interface {
	// Config 返回配置树；Bootstrap 阶段负责触发首次物化。
	Config() *config.Tree
	// Settings 返回已物化的配置快照，配置加载前为 nil。
	Settings() *config.Settings
	Logger() *logrus.Logger
	Middleware() *middleware.Stack
	Routes() *routetable.Table
	Reloader() *routetable.Reloader
	// LoadPaths 返回附加的模块搜索路径（含约定的 lib 目录）。
	LoadPaths() []string
}

// Action 是一个初始化动作，接收同一个应用实例，出错即中止启动。
type Action func(Host) error

// Initializer 是一个命名的启动单元，进程内恰好执行一次。
// Before/After 引用同阶段内另一初始化器的名字，用于注册期相对插入。
type Initializer struct {
	Name   string
	Phase  Phase
	Before string
	After  string
	Action Action
}

// Contributor 是插件组件必须实现的固定能力接口。核心统一遍历该
// 接口，从不反射具体类型。
type Contributor interface {
	// Key 返回全局唯一的组件标识。
	Key() string
	// Initializers 返回组件声明顺序排列的初始化器列表。
	Initializers() []Initializer
	EagerLoad(Host) error
	LoadTasks(Host) error
	LoadGenerators(Host) error
	LoadConsole(Host) error
}

// Base 提供全部能力的空实现，组件可内嵌后只覆写需要的方法。
type Base struct{}

func (Base) Initializers() []Initializer { return nil }
func (Base) EagerLoad(Host) error        { return nil }
func (Base) LoadTasks(Host) error        { return nil }
func (Base) LoadGenerators(Host) error   { return nil }
func (Base) LoadConsole(Host) error      { return nil }
