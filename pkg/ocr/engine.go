package ocr

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers 默认并发数
const DefaultWorkers = 20

// FetchFunc 获取文本，旧OCR以文章键调用，新OCR以任务URL调用
type FetchFunc func(ctx context.Context, target string) (string, error)

// EngineOptions 引擎选项
type EngineOptions struct {
	Workers   int
	Logger    *zap.Logger
	OnJobDone func(job FetchJob, err error)
}

// Engine 并发获取新旧OCR并按文章汇总
type Engine struct {
	oldOCR    FetchFunc
	newOCR    FetchFunc
	workers   int
	logger    *zap.Logger
	onJobDone func(job FetchJob, err error)
}

// NewEngine 创建引擎
func NewEngine(oldOCR, newOCR FetchFunc, opts EngineOptions) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		oldOCR:    oldOCR,
		newOCR:    newOCR,
		workers:   workers,
		logger:    logger,
		onJobDone: opts.OnJobDone,
	}
}

// accumulator 单次Run内共享的结果表
type accumulator struct {
	mu      sync.Mutex
	records map[string]*AggregatedArticle
}

// claim 在锁内检查并创建记录，返回本任务是否负责获取旧OCR
func (a *accumulator) claim(job FetchJob) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.records[job.ArticleKey]; ok {
		return false
	}
	a.records[job.ArticleKey] = &AggregatedArticle{
		NewOCR:   make([]string, job.ZoneCount),
		Zones:    make([]string, job.ZoneCount),
		zoneErrs: make([]error, job.ZoneCount),
	}
	return true
}

// storeOld 保存旧OCR结果
func (a *accumulator) storeOld(key, text string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := a.records[key]
	if err != nil {
		rec.oldErr = err
		return
	}
	rec.OldOCR = text
	rec.OldOCRStats = Analyze(text)
}

// storeZone 按区域序号写入新OCR片段并累加统计
func (a *accumulator) storeZone(job FetchJob, text string, err error) {
	stats := Analyze(text)

	a.mu.Lock()
	defer a.mu.Unlock()

	rec := a.records[job.ArticleKey]
	rec.Zones[job.ZoneIndex] = job.TargetURL
	rec.zonesDone++
	if err != nil {
		rec.zoneErrs[job.ZoneIndex] = err
		return
	}
	rec.NewOCR[job.ZoneIndex] = text
	rec.NewOCRStats = rec.NewOCRStats.Add(stats)
}

// Run 执行所有任务，返回文章键到汇总结果的映射
// 单个获取失败只记录在对应文章中，不会中断其它任务
func (e *Engine) Run(ctx context.Context, jobs []FetchJob) (map[string]*AggregatedArticle, error) {
	if err := validateJobs(jobs); err != nil {
		return nil, err
	}

	acc := &accumulator{records: make(map[string]*AggregatedArticle)}

	var g errgroup.Group
	g.SetLimit(e.workers)

	e.logger.Debug("开始执行任务", zap.Int("jobs", len(jobs)), zap.Int("workers", e.workers))

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			e.process(ctx, acc, job)
			return nil
		})
	}
	_ = g.Wait()

	for key, rec := range acc.records {
		finalize(rec)
		if rec.Status != StatusComplete {
			e.logger.Warn("文章未完全处理",
				zap.String("article", key),
				zap.String("status", string(rec.Status)),
				zap.Strings("errors", rec.Errors))
		}
	}

	return acc.records, nil
}

// process 处理单个任务，网络请求均在锁外进行
func (e *Engine) process(ctx context.Context, acc *accumulator, job FetchJob) {
	first := acc.claim(job)

	if first {
		text, err := e.fetch(ctx, e.oldOCR, job.ArticleKey)
		if err != nil {
			e.logger.Error("获取旧OCR失败", zap.String("article", job.ArticleKey), zap.Error(err))
		}
		acc.storeOld(job.ArticleKey, text, err)
	}

	text, err := e.fetch(ctx, e.newOCR, job.TargetURL)
	if err != nil {
		e.logger.Error("获取新OCR失败",
			zap.String("article", job.ArticleKey),
			zap.Int("zone", job.ZoneIndex),
			zap.Error(err))
	}
	acc.storeZone(job, text, err)

	if e.onJobDone != nil {
		e.onJobDone(job, err)
	}
}

// fetch 调用获取函数，已取消的上下文不再发起请求
func (e *Engine) fetch(ctx context.Context, fn FetchFunc, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fn(ctx, target)
}

// finalize 根据错误情况确定状态并生成错误列表
func finalize(rec *AggregatedArticle) {
	var failedZones int
	rec.Errors = nil

	if rec.oldErr != nil {
		rec.Errors = append(rec.Errors, fmt.Sprintf("old_ocr: %v", rec.oldErr))
	}
	for i, err := range rec.zoneErrs {
		if err != nil {
			failedZones++
			rec.Errors = append(rec.Errors, fmt.Sprintf("zone %d: %v", i, err))
		}
	}

	okZones := rec.zonesDone - failedZones
	switch {
	case rec.oldErr == nil && failedZones == 0 && rec.zonesDone == len(rec.NewOCR):
		rec.Status = StatusComplete
	case rec.oldErr != nil && okZones == 0:
		rec.Status = StatusFailed
	default:
		rec.Status = StatusPartial
	}
}

// validateJobs 校验序号范围、同一文章的区域数一致且序号不重复
func validateJobs(jobs []FetchJob) error {
	counts := make(map[string]int)
	seen := make(map[string]map[int]bool)

	for i, job := range jobs {
		if job.ArticleKey == "" {
			return fmt.Errorf("%w: 任务 %d 缺少文章键", ErrInvalidJob, i)
		}
		if job.ZoneCount < 1 || job.ZoneIndex < 0 || job.ZoneIndex >= job.ZoneCount {
			return fmt.Errorf("%w: 任务 %d 区域序号 %d 超出范围 [0, %d)", ErrInvalidJob, i, job.ZoneIndex, job.ZoneCount)
		}
		if n, ok := counts[job.ArticleKey]; ok && n != job.ZoneCount {
			return fmt.Errorf("%w: 文章 %s 的区域数不一致 (%d != %d)", ErrInvalidJob, job.ArticleKey, n, job.ZoneCount)
		}
		counts[job.ArticleKey] = job.ZoneCount

		if seen[job.ArticleKey] == nil {
			seen[job.ArticleKey] = make(map[int]bool)
		}
		if seen[job.ArticleKey][job.ZoneIndex] {
			return fmt.Errorf("%w: 文章 %s 的区域 %d 重复", ErrInvalidJob, job.ArticleKey, job.ZoneIndex)
		}
		seen[job.ArticleKey][job.ZoneIndex] = true
	}
	return nil
}

// SortedEntries 按文章键排序结果
func SortedEntries(records map[string]*AggregatedArticle) []ArticleEntry {
	entries := make([]ArticleEntry, 0, len(records))
	for key, rec := range records {
		entries = append(entries, ArticleEntry{Key: key, Article: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}
