package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/didl"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/endpoints"
)

// Processor 获取DIDL记录并生成OCR对比报告
type Processor struct {
	fetcher   Fetcher
	endpoints endpoints.Endpoints
	opts      ProcessOptions
	logger    *zap.Logger
}

// NewProcessor 创建一个新的处理器
func NewProcessor(fetcher Fetcher, ep endpoints.Endpoints, opts ProcessOptions, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = DefaultMaxArticles
	}
	return &Processor{
		fetcher:   fetcher,
		endpoints: ep,
		opts:      opts,
		logger:    logger,
	}
}

// MaxArticles 返回单次处理的文章数上限
func (p *Processor) MaxArticles() int {
	return p.opts.MaxArticles
}

// ProcessIdentifier 处理形如 ddd:110564088:mpeg21:a0001 的标识符
func (p *Processor) ProcessIdentifier(ctx context.Context, identifier string) (*Report, error) {
	id, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	start, end := id.Window(p.opts.MaxArticles)
	return p.ProcessRecord(ctx, id.RecordID, start, end)
}

// ProcessRecord 根据记录标识符从OAI获取DIDL并处理
func (p *Processor) ProcessRecord(ctx context.Context, recordID string, start, end int) (*Report, error) {
	return p.ProcessURL(ctx, p.endpoints.RecordURL(recordID), start, end)
}

// ProcessURL 直接处理OAI URL
func (p *Processor) ProcessURL(ctx context.Context, didlURL string, start, end int) (*Report, error) {
	p.logger.Info("获取DIDL记录", zap.String("url", didlURL))

	data, err := p.fetcher.Fetch(ctx, didlURL)
	if err != nil {
		p.logger.Error("获取DIDL记录失败", zap.Error(err), zap.String("url", didlURL))
		return nil, fmt.Errorf("获取DIDL记录失败: %w", err)
	}

	return p.ProcessDocument(ctx, data, start, end)
}

// ProcessDocument 处理原始DIDL文档
func (p *Processor) ProcessDocument(ctx context.Context, data []byte, start, end int) (*Report, error) {
	startTime := time.Now()
	logger := p.logger.With(zap.String("runID", uuid.New().String()))

	doc, err := didl.Extract(data, p.endpoints.ZoneImageURL)
	if err != nil {
		logger.Error("解析DIDL失败", zap.Error(err))
		return nil, err
	}
	logger.Debug("DIDL解析完成",
		zap.Int("references", len(doc.References)),
		zap.Int("groups", len(doc.Groups)),
		zap.Float64("confidence", doc.Confidence))

	reporter := NewReporter(p.fetcher, p.endpoints, p.opts, logger)
	report, err := reporter.Assemble(ctx, doc, start, end)
	if err != nil {
		logger.Error("生成报告失败", zap.Error(err))
		return nil, err
	}

	logger.Info("处理完成",
		zap.Int("articles", len(report.Articles)),
		zap.String("processTime", time.Since(startTime).String()))

	return report, nil
}
