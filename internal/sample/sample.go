// Package sample 内置的DIDL示例文档，在命令行未指定标识符时使用
package sample

import _ "embed"

//go:embed didl_example.xml
var didlExample []byte

// DIDL 返回示例DIDL文档的副本
func DIDL() []byte {
	out := make([]byte, len(didlExample))
	copy(out, didlExample)
	return out
}
