package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfidenceExceeded 文档OCR置信度高于阈值，不值得重新识别
	ErrConfidenceExceeded = errors.New("OCR confidence above threshold")
	// ErrInvalidJob 任务参数不合法
	ErrInvalidJob = errors.New("invalid fetch job")
)

// 前端使用的提示信息
const (
	UsageMessage          = "Usage: ?identifier= for example ?identifier=ddd:110564088:mpeg21:a001"
	BadIdentifierMessage  = "Error, identifier does not end with :a00[1-9]"
	confidenceErrorFormat = "OCR confidencelevel > %g"
)

// FetchError 网络获取失败
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("获取 %s 失败，状态码 %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("获取 %s 失败: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IdentifierFormatError 标识符缺失或格式不正确
type IdentifierFormatError struct {
	Identifier string
	Message    string
}

func (e *IdentifierFormatError) Error() string {
	return e.Message
}
