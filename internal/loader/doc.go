// Package loader 维护已知资源类型（brushes、palettes、gradients 等）的注册表。
//
// 资源类型键同时是资源根目录下子目录的名称。内置类型由 loader/builtin 在 init()
// 中注册到默认注册表；测试或嵌入方可以通过 NewRegistry 构造独立实例。
// 注册表只描述类型与文件扩展名，不解析资源内容。
package loader
