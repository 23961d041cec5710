// Package template 提供编写新贡献者时可复制的骨架示例。
package template

import "github.com/modboot/modboot/internal/contributor"

//
// 使用方式：复制整个目录到 internal/contrib/<key>/ 并替换字段。
// - 将 TemplateContributor 重命名为实际贡献者类型，嵌入 contributor.Base
//   后只需覆盖关心的能力。
// - 在 init() 中调用 contributor.MustRegister 完成登记；登记顺序决定
//   初始化器在贡献阶段的先后。
// - 若贡献者对外提供路由处理器，在 init() 中一并调用
//   dispatch.MustRegisterHandler，再由路由声明文件按名引用。
//
// 注意：本文件仅示例声明写法，不会参与编译。
var _ = contributor.Initializer{}
