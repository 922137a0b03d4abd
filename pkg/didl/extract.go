package didl

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/nerdneilsfield/go-enhance-ocr/pkg/endpoints"
)

const (
	confidenceTag  = "OCRConfidencelevel"
	zoningSuffix   = ":zoning"
	pageZeroMarker = ":p0"
	ocrSuffix      = ":ocr"
)

// geometry 正在收集的区域几何信息
type geometry struct {
	zone endpoints.Zone
	hasW bool
	hasH bool
	hasX bool
	hasY bool
}

func (g *geometry) complete() bool {
	return g.hasW && g.hasH && g.hasX && g.hasY
}

// extractor 单次遍历中的状态
type extractor struct {
	imageURL ImageURLFunc

	refs   []string
	groups [][]string
	seen   []map[string]bool

	pageID string
	geom   geometry

	confidence    string
	hasConfidence bool
}

// NewDecoder 创建支持非UTF-8编码声明的XML解码器
func NewDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// Extract 解析DIDL文档，提取文章引用、区域组和OCR置信度
func Extract(data []byte, imageURL ImageURLFunc) (*Document, error) {
	if imageURL == nil {
		imageURL = endpoints.Default().ZoneImageURL
	}

	x := &extractor{imageURL: imageURL}
	dec := NewDecoder(bytes.NewReader(data))

	var (
		elements   int
		depth      int
		rootClosed bool
		capturing  bool
		text       strings.Builder
	)

	// 置信度取元素的首段文本，遇到子元素或结束标签即停止
	flush := func() {
		if !capturing {
			return
		}
		capturing = false
		if text.Len() > 0 {
			x.confidence = text.String()
			x.hasConfidence = true
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Msg: "XML格式错误", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			flush()
			if rootClosed {
				return nil, &ParseError{Msg: "根元素之后存在多余元素 <" + t.Name.Local + ">"}
			}
			elements++
			depth++
			if strings.HasSuffix(t.Name.Local, confidenceTag) {
				capturing = true
				text.Reset()
			}
			x.element(t)
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, &ParseError{Msg: "根元素之外存在文本"}
			}
			if capturing {
				text.Write(t)
			}
		case xml.Comment:
			// 注释同样结束首段文本
			flush()
		case xml.EndElement:
			flush()
			depth--
			if depth == 0 {
				rootClosed = true
			}
		}
	}

	if elements == 0 {
		return nil, &ParseError{Msg: "文档没有根元素"}
	}
	if !x.hasConfidence {
		return nil, &ParseError{Msg: "缺少" + confidenceTag}
	}
	confidence, err := strconv.ParseFloat(strings.TrimSpace(x.confidence), 64)
	if err != nil {
		return nil, &ParseError{Msg: "无法解析" + confidenceTag, Err: err}
	}

	return x.document(confidence), nil
}

// element 处理单个元素的属性
func (x *extractor) element(el xml.StartElement) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Name.Space == DCNamespace && a.Name.Local == "identifier" {
			if strings.HasSuffix(a.Value, zoningSuffix) && !strings.Contains(a.Value, pageZeroMarker) {
				x.groups = append(x.groups, []string{})
				x.seen = append(x.seen, map[string]bool{})
				x.geom = geometry{}
			}
			continue
		}
		if a.Name.Space == "" {
			attrs[a.Name.Local] = a.Value
		}
	}

	if ref := attrs["ref"]; strings.HasSuffix(ref, ocrSuffix) {
		x.refs = append(x.refs, ref)
	}

	// 第一个文章区域组出现之前的几何信息全部忽略
	if len(x.groups) == 0 {
		return
	}

	if v := attrs["pageid"]; v != "" {
		x.pageID = v
	}
	if n, ok := parseDimension(attrs["width"]); ok {
		x.geom.zone.Width, x.geom.hasW = n, true
	}
	if n, ok := parseDimension(attrs["height"]); ok {
		x.geom.zone.Height, x.geom.hasH = n, true
	}
	if n, ok := parseDimension(attrs["hpos"]); ok {
		x.geom.zone.HPos, x.geom.hasX = n, true
	}
	if n, ok := parseDimension(attrs["vpos"]); ok {
		x.geom.zone.VPos, x.geom.hasY = n, true
	}

	if !x.geom.complete() || x.pageID == "" {
		return
	}

	current := len(x.groups) - 1
	url := x.imageURL(x.pageID, x.geom.zone)
	if !x.seen[current][url] {
		x.seen[current][url] = true
		x.groups[current] = append(x.groups[current], url)
	}
	x.geom = geometry{}
}

// document 将第N个文章引用与第N个区域组配对
func (x *extractor) document(confidence float64) *Document {
	doc := &Document{
		References: x.refs,
		Groups:     x.groups,
		Index:      make(map[string][]string),
		Confidence: confidence,
	}

	for i, group := range x.groups {
		if i >= len(x.refs) {
			break
		}
		ref := x.refs[i]
		if _, exists := doc.Index[ref]; !exists {
			doc.Keys = append(doc.Keys, ref)
		}
		doc.Index[ref] = group
	}

	return doc
}

// parseDimension 解析非负整数属性，空值或非法值视为缺失
func parseDimension(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
