package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressTracker 进度跟踪器，可被多个goroutine同时调用
type ProgressTracker struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	out       io.Writer
	startTime time.Time
	title     string
	steps     int
	current   int
	failed    int
}

// NewProgressTracker 创建一个输出到标准错误的进度跟踪器
func NewProgressTracker(title string, steps int) *ProgressTracker {
	return NewProgressTrackerTo(os.Stderr, title, steps)
}

// NewProgressTrackerTo 创建输出到指定writer的进度跟踪器
func NewProgressTrackerTo(out io.Writer, title string, steps int) *ProgressTracker {
	pt := &ProgressTracker{
		out:       out,
		startTime: time.Now(),
		title:     title,
	}
	pt.reset(steps)
	return pt
}

func (pt *ProgressTracker) reset(steps int) {
	out := pt.out
	pt.steps = steps
	pt.current = 0
	pt.failed = 0
	pt.bar = progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", pt.title)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

// SetTotal 在任务数确定后重新设置总步数
func (pt *ProgressTracker) SetTotal(steps int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.reset(steps)
}

// Step 进度前进一步
func (pt *ProgressTracker) Step(description string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.step(description)
}

// Fail 记录一个失败的步骤，进度同样前进
func (pt *ProgressTracker) Fail(description string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.failed++
	pt.step(description)
}

func (pt *ProgressTracker) step(description string) {
	if pt.current >= pt.steps {
		return
	}
	pt.current++
	descWithTime := fmt.Sprintf("%s (%s)", description, formatDuration(time.Since(pt.startTime)))
	if pt.failed > 0 {
		descWithTime = fmt.Sprintf("%s [red]失败 %d[reset]", descWithTime, pt.failed)
	}
	pt.bar.Describe(fmt.Sprintf("[cyan]%s[reset] - %s", pt.title, descWithTime))
	pt.bar.Add(1)
}

// Complete 完成进度，返回耗时和失败步骤数
func (pt *ProgressTracker) Complete() (time.Duration, int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	elapsed := time.Since(pt.startTime)
	// 确保进度条显示完成
	for pt.current < pt.steps {
		pt.step("完成")
	}

	return elapsed, pt.failed
}

// formatDuration 以秒为精度输出耗时，负值按0处理
func formatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	hours, rest := secs/3600, secs%3600
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm%ds", hours, rest/60, rest%60)
	case rest >= 60:
		return fmt.Sprintf("%dm%ds", rest/60, rest%60)
	default:
		return fmt.Sprintf("%ds", rest)
	}
}

// PrintSummary 在标准错误打印处理摘要
func PrintSummary(articles, zones, failed int, elapsed time.Duration) {
	fmt.Fprintln(os.Stderr)
	if failed == 0 {
		fmt.Fprintln(os.Stderr, "✅ 处理完成!")
	} else {
		fmt.Fprintf(os.Stderr, "⚠️ 处理完成，%d 个请求失败\n", failed)
	}
	fmt.Fprintf(os.Stderr, "📰 文章数: %d\n", articles)
	fmt.Fprintf(os.Stderr, "🧩 区域数: %d\n", zones)
	fmt.Fprintf(os.Stderr, "⏱️ 处理时间: %s\n", formatDuration(elapsed))
	fmt.Fprintln(os.Stderr)
}

// IsTerminal 检查标准错误是否连接到终端
func IsTerminal() bool {
	fileInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
