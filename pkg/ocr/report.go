package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/didl"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/endpoints"
)

// DefaultConfidenceThreshold 置信度高于该值的文档不再重新识别
const DefaultConfidenceThreshold = 0.8

// Fetcher 报告所需的网络访问能力，由 *Client 实现
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchText(ctx context.Context, url string) (string, error)
	FetchOldOCR(ctx context.Context, url string) (string, error)
}

// Reporter 根据DIDL文档生成对比报告
type Reporter struct {
	fetcher   Fetcher
	endpoints endpoints.Endpoints
	opts      ProcessOptions
	logger    *zap.Logger
}

// NewReporter 创建报告生成器
func NewReporter(fetcher Fetcher, ep endpoints.Endpoints, opts ProcessOptions, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		fetcher:   fetcher,
		endpoints: ep,
		opts:      opts,
		logger:    logger,
	}
}

// Assemble 选出编号在 [start, end) 内的文章，执行OCR任务并生成报告
// 置信度高于阈值时直接返回错误报告，不发起任何请求
func (r *Reporter) Assemble(ctx context.Context, doc *didl.Document, start, end int) (*Report, error) {
	if doc.ExceedsThreshold(r.opts.ConfidenceThreshold) {
		r.logger.Info("OCR置信度高于阈值，跳过处理",
			zap.Float64("confidence", doc.Confidence),
			zap.Float64("threshold", r.opts.ConfidenceThreshold))
		return &Report{Error: fmt.Sprintf(confidenceErrorFormat, r.opts.ConfidenceThreshold)}, nil
	}

	jobs := r.Jobs(doc, start, end)
	r.logger.Info("生成OCR任务",
		zap.Int("articles", len(doc.Keys)),
		zap.Int("jobs", len(jobs)),
		zap.Int("start", start),
		zap.Int("end", end))
	if r.opts.OnJobsPlanned != nil {
		r.opts.OnJobsPlanned(len(jobs))
	}

	engine := NewEngine(r.fetchOld, r.fetcher.FetchText, EngineOptions{
		Workers:   r.opts.Workers,
		Logger:    r.logger,
		OnJobDone: r.opts.OnJobDone,
	})

	records, err := engine.Run(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("执行OCR任务失败: %w", err)
	}

	return &Report{Articles: SortedEntries(records)}, nil
}

// fetchOld 以文章引用获取归档OCR
func (r *Reporter) fetchOld(ctx context.Context, key string) (string, error) {
	return r.fetcher.FetchOldOCR(ctx, r.endpoints.OldOCRURL(key))
}

// Jobs 为选中文章的每个区域生成一个任务
func (r *Reporter) Jobs(doc *didl.Document, start, end int) []FetchJob {
	var jobs []FetchJob
	for _, key := range doc.Keys {
		if !InArticleRange(key, start, end) {
			continue
		}
		zones := doc.Zones(key)
		for i, image := range zones {
			jobs = append(jobs, FetchJob{
				ArticleKey: key,
				TargetURL:  r.endpoints.NewOCRURL(image),
				ZoneIndex:  i,
				ZoneCount:  len(zones),
			})
		}
	}
	return jobs
}

// InArticleRange 文章键倒数第二段是否为 a%04d 格式且编号在 [start, end) 内
func InArticleRange(key string, start, end int) bool {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return false
	}
	seg := parts[len(parts)-2]
	if !strings.HasPrefix(seg, "a") {
		return false
	}
	n, err := strconv.Atoi(seg[1:])
	if err != nil || fmt.Sprintf("a%04d", n) != seg {
		return false
	}
	return n >= start && n < end
}
