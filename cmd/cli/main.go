package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-enhance-ocr/internal/config"
	"github.com/nerdneilsfield/go-enhance-ocr/internal/logger"
	"github.com/nerdneilsfield/go-enhance-ocr/internal/sample"
	"github.com/nerdneilsfield/go-enhance-ocr/internal/server"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/ocr"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/utils"
)

var (
	// 默认配置
	cfg *config.Config
	log *zap.Logger

	// 命令行参数
	configFile string
	logLevel   string
	workers    int
	timeout    time.Duration
	maxRetries int
	noProgress bool
)

// run命令参数
var (
	articleStart int
	articleEnd   int
	outputFile   string
)

// serve命令参数
var listenAddr string

// 配置生成相关参数
var (
	outputToFile string
)

func main() {
	rootCmd := newRootCmd()

	// 执行命令
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// 创建根命令
	rootCmd := &cobra.Command{
		Use:   "enhance-ocr",
		Short: "对比报纸文章的归档OCR与重新识别的OCR",
		Long: `从OAI获取报纸记录的DIDL，对每篇文章的每个区域调用OCR服务重新识别，
并与归档OCR一起输出字符统计对比报告（JSON）。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 跳过gen命令的配置加载
			if cmd.Name() == "gen" && cmd.Parent().Name() == "config" {
				return nil
			}
			return setup(cmd)
		},
	}

	// 生成报告命令
	runCmd := &cobra.Command{
		Use:   "run [OAI URL | ddd:标识符]",
		Short: "生成一条记录的OCR对比报告",
		Long: `参数可以是完整的OAI GetRecord URL、记录标识符（ddd:010168412:mpeg21）
或带文章编号的标识符（ddd:010168412:mpeg21:a0001）。
不带参数时处理内置的示例DIDL。`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReport,
	}

	// HTTP服务命令
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP服务，GET /?identifier=ddd:...:a0001 返回报告",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	// 配置命令
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "管理配置",
	}

	// 生成默认配置命令
	genConfigCmd := &cobra.Command{
		Use:   "gen",
		Short: "生成默认配置",
		Long:  "生成默认配置并输出到标准输出或指定文件",
		RunE:  generateConfig,
	}

	// 添加根命令标志
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "指定配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "并发请求数（默认使用配置）")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "单次请求超时时间，例如 90s（默认使用配置）")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", -1, "请求失败后的最大重试次数（默认使用配置）")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")

	// 添加run命令标志
	runCmd.Flags().IntVar(&articleStart, "start", 0, "起始文章编号（包含）")
	runCmd.Flags().IntVar(&articleEnd, "end", 0, "结束文章编号（不包含）")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "将报告写入文件而非标准输出")

	// 添加serve命令标志
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "监听地址（默认使用配置）")

	// 添加genConfig命令标志
	genConfigCmd.Flags().StringVarP(&outputToFile, "output", "o", "", "将配置输出到文件而非标准输出")

	// 添加子命令
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(genConfigCmd)

	return rootCmd
}

// setup 初始化应用程序
func setup(cmd *cobra.Command) error {
	var err error

	// 先初始化一个基本日志记录器，用于记录配置加载过程
	tempLogger, _ := zap.NewProduction()
	defer tempLogger.Sync()

	// 加载配置，优先使用命令行指定的配置文件
	if configFile != "" {
		tempLogger.Info("使用自定义配置文件", zap.String("path", configFile))
		cfg, err = loadCustomConfig(configFile)
	} else {
		tempLogger.Debug("使用默认配置文件路径")
		cfg, err = config.LoadConfig()
	}

	if err != nil {
		tempLogger.Error("加载配置失败", zap.Error(err))
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 从命令行参数更新配置
	if err := updateConfigFromFlags(cmd, tempLogger); err != nil {
		return err
	}

	// 初始化正式日志
	log, err = logger.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		tempLogger.Error("初始化日志系统失败", zap.Error(err))
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	// 记录配置加载完成
	log.Debug("配置加载完成",
		zap.String("oaiBaseURL", cfg.OAIBaseURL),
		zap.String("ocrServiceURL", cfg.OCRServiceURL),
		zap.Int("workers", cfg.Workers),
		zap.Float64("confidenceThreshold", cfg.ConfidenceThreshold),
		zap.Int("maxArticles", cfg.MaxArticles),
		zap.Duration("fetchTimeout", cfg.FetchTimeout),
		zap.Int("maxRetries", cfg.MaxRetries))

	return nil
}

// updateConfigFromFlags 根据命令行参数更新配置
func updateConfigFromFlags(cmd *cobra.Command, logger *zap.Logger) error {
	flags := cmd.Flags()
	if logLevel != "" {
		logger.Debug("从命令行参数更新日志级别", zap.String("logLevel", logLevel))
		cfg.LogLevel = logLevel
	}
	if flags.Changed("workers") {
		if workers < 1 || workers > 100 {
			return fmt.Errorf("--workers 必须在 1 到 100 之间")
		}
		cfg.Workers = workers
	}
	if flags.Changed("timeout") {
		if timeout <= 0 {
			return fmt.Errorf("--timeout 必须为正数")
		}
		cfg.FetchTimeout = timeout
	}
	if flags.Changed("max-retries") {
		if maxRetries < 0 {
			return fmt.Errorf("--max-retries 不能为负数")
		}
		cfg.MaxRetries = maxRetries
	}
	if noProgress {
		cfg.ShowProgress = false
	}
	return nil
}

// loadCustomConfig 从指定路径加载配置
func loadCustomConfig(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}
	return config.LoadConfigFromFile(configPath)
}

// newClient 按配置创建HTTP客户端
func newClient() *ocr.Client {
	client := ocr.NewClient(log)
	client.SetTimeout(cfg.FetchTimeout)
	client.SetMaxRetries(cfg.MaxRetries)
	return client
}

// generateConfig 生成默认配置
func generateConfig(cmd *cobra.Command, args []string) error {
	// 获取默认配置内容
	defaultConfig := config.GetDefaultConfig()

	if outputToFile == "" {
		// 输出到标准输出
		fmt.Println(defaultConfig)
		return nil
	}

	// 确保目录存在
	dir := filepath.Dir(outputToFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	// 写入文件
	if err := os.WriteFile(outputToFile, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	fmt.Fprintf(os.Stderr, "配置已保存到: %s\n", outputToFile)
	return nil
}

// runReport 生成报告并输出JSON
func runReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cfg.ProcessOptions()

	var tracker *utils.ProgressTracker
	if cfg.ShowProgress && utils.IsTerminal() {
		tracker = utils.NewProgressTracker("OCR", 1)
		opts.OnJobsPlanned = tracker.SetTotal
		opts.OnJobDone = func(job ocr.FetchJob, err error) {
			if err != nil {
				tracker.Fail(job.ArticleKey)
				return
			}
			tracker.Step(job.ArticleKey)
		}
	}

	processor := ocr.NewProcessor(newClient(), cfg.Endpoints(), opts, log)

	report, err := processTarget(ctx, cmd, processor, args)
	if err != nil {
		log.Error("生成报告失败", zap.Error(err))
		return err
	}

	if err := report.Err(); err != nil {
		log.Warn("记录未重新识别", zap.Error(err))
	}

	if tracker != nil {
		elapsed, failed := tracker.Complete()
		utils.PrintSummary(len(report.Articles), countZones(report), failed, elapsed)
	}

	return writeReport(report)
}

// processTarget 根据参数选择数据来源和文章范围
func processTarget(ctx context.Context, cmd *cobra.Command, processor *ocr.Processor, args []string) (*ocr.Report, error) {
	// 不带参数时使用内置示例
	if len(args) == 0 {
		start, end := articleWindow(cmd, 1, processor.MaxArticles())
		log.Info("处理内置示例DIDL", zap.Int("start", start), zap.Int("end", end))
		return processor.ProcessDocument(ctx, sample.DIDL(), start, end)
	}

	target, article, isURL, err := ocr.ParseTarget(args[0])
	if err != nil {
		return nil, err
	}
	start, end := articleWindow(cmd, article, processor.MaxArticles())

	if isURL {
		log.Info("处理OAI URL", zap.String("url", target), zap.Int("start", start), zap.Int("end", end))
		return processor.ProcessURL(ctx, target, start, end)
	}

	log.Info("处理记录", zap.String("record", target), zap.Int("start", start), zap.Int("end", end))
	return processor.ProcessRecord(ctx, target, start, end)
}

// articleWindow 默认范围为 [article, article+max)，可被 --start/--end 覆盖
func articleWindow(cmd *cobra.Command, article, limit int) (int, int) {
	start, end := ocr.Identifier{Article: article}.Window(limit)
	if cmd.Flags().Changed("start") {
		start = articleStart
		if !cmd.Flags().Changed("end") {
			end = start + limit
		}
	}
	if cmd.Flags().Changed("end") {
		end = articleEnd
	}
	return start, end
}

func countZones(report *ocr.Report) int {
	n := 0
	for _, entry := range report.Articles {
		n += len(entry.Article.Zones)
	}
	return n
}

// writeReport 将报告写到标准输出或文件
func writeReport(report *ocr.Report) error {
	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := report.Encode(out); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}
	if outputFile != "" {
		log.Info("报告已保存", zap.String("path", outputFile))
	}
	return nil
}

// serve 启动HTTP服务，直到收到中断信号
func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	processor := ocr.NewProcessor(newClient(), cfg.Endpoints(), cfg.ProcessOptions(), log)
	srv := server.New(server.Config{
		Addr:   addr,
		Logger: log,
	}, processor)

	return srv.Run(ctx)
}
