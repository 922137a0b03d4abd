package ocr

import (
	"strconv"
	"strings"
)

// DefaultMaxArticles 一次请求最多处理的文章数
const DefaultMaxArticles = 6

// Identifier 解析后的文章标识符
type Identifier struct {
	// 记录标识符，例如 ddd:110564088:mpeg21
	RecordID string
	// 起始文章编号
	Article int
}

// ParseIdentifier 解析形如 ddd:110564088:mpeg21:a0001 的标识符
func ParseIdentifier(identifier string) (Identifier, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Identifier{}, &IdentifierFormatError{Message: UsageMessage}
	}

	idx := strings.LastIndex(identifier, ":")
	last := identifier[idx+1:]
	if idx <= 0 || !strings.HasPrefix(last, "a") {
		return Identifier{}, &IdentifierFormatError{Identifier: identifier, Message: BadIdentifierMessage}
	}

	n, err := strconv.Atoi(last[1:])
	if err != nil || n < 0 {
		return Identifier{}, &IdentifierFormatError{Identifier: identifier, Message: BadIdentifierMessage}
	}

	return Identifier{RecordID: identifier[:idx], Article: n}, nil
}

// Window 返回文章编号范围 [Article, Article+limit)
func (id Identifier) Window(limit int) (int, int) {
	if limit <= 0 {
		limit = DefaultMaxArticles
	}
	return id.Article, id.Article + limit
}

// ParseTarget 解析命令行参数：ddd标识符（可带文章后缀）或完整URL
// 返回的isURL为true时recordOrURL是URL
func ParseTarget(arg string) (recordOrURL string, article int, isURL bool, err error) {
	if !strings.HasPrefix(arg, "ddd:") {
		return arg, 1, true, nil
	}

	parts := strings.Split(arg, ":")
	if strings.HasPrefix(parts[len(parts)-1], "a") {
		id, err := ParseIdentifier(arg)
		if err != nil {
			return "", 0, false, err
		}
		return id.RecordID, id.Article, false, nil
	}

	return arg, 1, false, nil
}
