package didl

import (
	"fmt"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/endpoints"
)

// DCNamespace Dublin Core命名空间
const DCNamespace = "http://purl.org/dc/elements/1.1/"

// ImageURLFunc 将页面ID和区域转换为图像URL
type ImageURLFunc func(pageID string, zone endpoints.Zone) string

// Document 表示解析后的DIDL文档
type Document struct {
	// 文档顺序中所有以 :ocr 结尾的文章引用
	References []string
	// 文档顺序中的区域组，每组为去重后的图像URL
	Groups [][]string
	// 文章引用 -> 图像URL序列，按文档顺序配对
	Index map[string][]string
	// Index的键，保持文档顺序
	Keys []string
	// 文档级OCR置信度
	Confidence float64
}

// Zones 返回指定文章的图像URL序列
func (d *Document) Zones(key string) []string {
	return d.Index[key]
}

// ExceedsThreshold 置信度是否高于阈值
func (d *Document) ExceedsThreshold(threshold float64) bool {
	return d.Confidence > threshold
}

// ParseError 表示DIDL文档格式错误或缺少置信度
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("DIDL解析失败: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("DIDL解析失败: %s", e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
