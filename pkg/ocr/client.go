package ocr

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/didl"
)

// 错误响应体在错误信息中最多保留的字节数
const maxErrorBody = 256

// Client 访问OAI、归档OCR和OCR引擎的HTTP客户端
type Client struct {
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	logger     *zap.Logger
}

// NewClient 创建一个新的客户端，默认只请求一次
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		maxRetries: 0,
		retryDelay: time.Second,
		userAgent:  "go-enhance-ocr",
		logger:     logger,
	}
}

// SetTimeout 设置单次请求超时时间
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetMaxRetries 设置最大重试次数，0表示只请求一次
func (c *Client) SetMaxRetries(retries int) {
	if retries < 0 {
		retries = 0
	}
	c.maxRetries = retries
}

// SetRetryDelay 设置首次重试前的等待时间，之后指数增长
func (c *Client) SetRetryDelay(delay time.Duration) {
	c.retryDelay = delay
}

// Fetch 获取URL的原始响应体
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			b, err := c.fetchOnce(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("请求失败，准备重试",
				zap.String("url", url),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: url, Err: err}
	}

	return body, nil
}

// fetchOnce 执行一次GET请求
func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(&FetchError{URL: url, Err: fmt.Errorf("创建请求错误: %w", err)})
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("发送请求", zap.String("url", url))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("读取响应体错误: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := bodyBytes
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		fe := &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
		}
		// 客户端错误重试也不会成功
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(fe)
		}
		return nil, fe
	}

	c.logger.Debug("收到响应", zap.String("url", url), zap.Int("bytes", len(bodyBytes)))
	return bodyBytes, nil
}

// FetchText 获取OCR引擎返回的纯文本
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchOldOCR 获取归档OCR的XML并转换为文本
func (c *Client) FetchOldOCR(ctx context.Context, url string) (string, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	text, err := OldOCRText(body)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	return text, nil
}

// OldOCRText 取根元素每个直接子元素的首段文本，以换行连接
func OldOCRText(data []byte) (string, error) {
	dec := didl.NewDecoder(bytes.NewReader(data))

	var (
		parts     []string
		buf       strings.Builder
		depth     int
		capturing bool
		sawRoot   bool
	)

	finish := func() {
		if capturing && buf.Len() > 0 {
			parts = append(parts, buf.String())
		}
		capturing = false
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("解析归档OCR失败: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			finish()
			if depth == 0 && sawRoot {
				return "", fmt.Errorf("解析归档OCR失败: 根元素之后存在多余元素 <%s>", t.Name.Local)
			}
			depth++
			sawRoot = true
			if depth == 2 {
				capturing = true
				buf.Reset()
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return "", errors.New("解析归档OCR失败: 根元素之外存在文本")
			}
			if capturing {
				buf.Write(t)
			}
		case xml.Comment:
			finish()
		case xml.EndElement:
			finish()
			depth--
		}
	}

	if !sawRoot {
		return "", errors.New("解析归档OCR失败: 文档没有根元素")
	}
	return strings.Join(parts, "\n"), nil
}
