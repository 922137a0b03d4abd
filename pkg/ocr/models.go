package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// CharStats 文本的字符类别统计
type CharStats struct {
	TotalChars  int `json:"nr_char"`
	Letters     int `json:"nr_ascii_letters"`
	Punctuation int `json:"nr_punction"`
	Digits      int `json:"nr_digits"`
}

// Add 返回两组统计之和
func (s CharStats) Add(o CharStats) CharStats {
	return CharStats{
		TotalChars:  s.TotalChars + o.TotalChars,
		Letters:     s.Letters + o.Letters,
		Punctuation: s.Punctuation + o.Punctuation,
		Digits:      s.Digits + o.Digits,
	}
}

// FetchJob 表示一个区域的OCR任务
type FetchJob struct {
	ArticleKey string
	TargetURL  string
	ZoneIndex  int
	ZoneCount  int
}

// Status 文章的完成状态
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// AggregatedArticle 一篇文章的新旧OCR对比结果
type AggregatedArticle struct {
	OldOCR      string    `json:"old_ocr"`
	OldOCRStats CharStats `json:"old_ocr_stats"`
	NewOCR      []string  `json:"new_ocr"`
	NewOCRStats CharStats `json:"new_ocr_stats"`
	Zones       []string  `json:"zones"`
	Status      Status    `json:"status"`
	Errors      []string  `json:"errors,omitempty"`

	oldErr    error
	zoneErrs  []error
	zonesDone int
}

// ZoneErrors 返回每个区域的错误，与NewOCR平行，成功的区域为nil
func (a *AggregatedArticle) ZoneErrors() []error {
	out := make([]error, len(a.zoneErrs))
	copy(out, a.zoneErrs)
	return out
}

// OldOCRError 返回旧OCR获取错误
func (a *AggregatedArticle) OldOCRError() error {
	return a.oldErr
}

// ArticleEntry 报告中的一项，序列化为 [key, article]
type ArticleEntry struct {
	Key     string
	Article *AggregatedArticle
}

// MarshalJSON 序列化为二元数组
func (e ArticleEntry) MarshalJSON() ([]byte, error) {
	return marshalNoEscape([]any{e.Key, e.Article})
}

// Report 报告，要么是错误信息，要么是按键排序的文章列表
type Report struct {
	Error    string
	Articles []ArticleEntry
}

// MarshalJSON 错误时输出 {"error": ...}，否则输出文章数组
func (r *Report) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return marshalNoEscape(map[string]string{"error": r.Error})
	}
	articles := r.Articles
	if articles == nil {
		articles = []ArticleEntry{}
	}
	return marshalNoEscape(articles)
}

// Err 报告因置信度过高而跳过时返回包装了 ErrConfidenceExceeded 的错误
func (r *Report) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConfidenceExceeded, r.Error)
}

// Encode 写出报告JSON，不转义 <、> 和 &
// json.Marshal 会重新转义这些字符，输出报告时应使用该方法
func (r *Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// marshalNoEscape 与json.Marshal相同，但保留URL中的 & 等字符
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ProcessOptions 处理选项
type ProcessOptions struct {
	Workers     int
	MaxArticles int

	// 置信度严格大于该值时跳过处理，为0时任何正置信度都会跳过
	ConfidenceThreshold float64

	// 任务列表生成后调用一次，传入任务总数
	OnJobsPlanned func(total int)

	// 每个任务完成时调用，可用于进度显示
	OnJobDone func(job FetchJob, err error)
}

// DefaultProcessOptions 返回默认处理选项
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		Workers:             DefaultWorkers,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxArticles:         DefaultMaxArticles,
	}
}
