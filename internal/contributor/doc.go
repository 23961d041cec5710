// Package contributor 管理独立开发的插件组件（贡献者）及其初始化器声明。
//
// 组件作者需要：
//  1. 实现 Contributor 接口（可内嵌 Base 只覆写需要的能力）；
//  2. 在 init() 中调用 MustRegister，将组件加入全局注册表；
//  3. 通过 Initializers 按声明顺序暴露初始化器，执行顺序由注册顺序 ×
//     声明顺序共同决定。
//
// 注册表在首次初始化流程开始后视为不可变，不支持运行期卸载组件。
package contributor
