package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/didl"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/ocr"
)

// ReportService 按标识符生成报告，由 *ocr.Processor 实现
type ReportService interface {
	ProcessIdentifier(ctx context.Context, identifier string) (*ocr.Report, error)
}

// Handler 处理 GET /?identifier=... 请求
type Handler struct {
	service ReportService
	logger  *zap.Logger
}

// NewHandler 创建请求处理器
func NewHandler(service ReportService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Routes 注册路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.report)
	mux.HandleFunc("/health", h.health)
	return mux
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	// 每次请求都会触发完整的抓取流程，只接受GET
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeText(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}

	identifier := r.URL.Query().Get("identifier")
	h.logger.Info("收到报告请求", zap.String("identifier", identifier), zap.String("remote", r.RemoteAddr))

	report, err := h.service.ProcessIdentifier(r.Context(), identifier)
	if err != nil {
		h.writeFailure(w, identifier, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeFailure 按错误类型选择状态码
func (h *Handler) writeFailure(w http.ResponseWriter, identifier string, err error) {
	var (
		idErr    *ocr.IdentifierFormatError
		parseErr *didl.ParseError
		fetchErr *ocr.FetchError
	)

	switch {
	case errors.As(err, &idErr):
		// 缺少标识符时只返回用法说明
		status := http.StatusBadRequest
		if idErr.Identifier == "" {
			status = http.StatusOK
		}
		writeText(w, status, idErr.Error())
	case errors.As(err, &parseErr):
		h.logger.Warn("DIDL记录无法解析", zap.String("identifier", identifier), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &fetchErr):
		h.logger.Warn("获取DIDL记录失败", zap.String("identifier", identifier), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// 客户端已断开，无需响应
		h.logger.Debug("请求已取消", zap.String("identifier", identifier))
	default:
		h.logger.Error("生成报告失败", zap.String("identifier", identifier), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// 区域URL中的 & 原样输出
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// ErrorResponse JSON错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}
