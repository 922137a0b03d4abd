package endpoints

import (
	"fmt"
	"strings"
)

// 默认服务地址
const (
	DefaultOAIBaseURL        = "http://services.kb.nl/mdo/oai"
	DefaultImagingServiceURL = "http://imageviewer.kb.nl/ImagingService/imagingService"
	DefaultOCRServiceURL     = "http://kbresearch.nl/ocr/?lang=nld&imageurl="
	DefaultResolverURL       = "http://resolver.kb.nl/resolve?urn="
)

// Zone 表示页面图像上的一个矩形区域
type Zone struct {
	Width  int
	Height int
	HPos   int
	VPos   int
}

// Endpoints 外部服务的基础URL集合，所有方法均为纯函数
type Endpoints struct {
	OAIBaseURL        string
	ImagingServiceURL string
	OCRServiceURL     string
	ResolverURL       string
}

// Default 返回默认的服务地址
func Default() Endpoints {
	return Endpoints{
		OAIBaseURL:        DefaultOAIBaseURL,
		ImagingServiceURL: DefaultImagingServiceURL,
		OCRServiceURL:     DefaultOCRServiceURL,
		ResolverURL:       DefaultResolverURL,
	}
}

// ZoneImageURL 将页面ID和区域几何信息转换为图像渲染URL
func (e Endpoints) ZoneImageURL(pageID string, z Zone) string {
	coords := strings.ReplaceAll(pageID, ":image", ":alto")
	return fmt.Sprintf("%s?id=%s:image&coords=%s:alto&w=%d&s=1&h=%d&x=%d&y=%d",
		e.ImagingServiceURL, pageID, coords, z.Width, z.Height, z.HPos, z.VPos)
}

// OldOCRURL 返回文章已归档OCR的URL
// DIDL中的引用通常已经是resolver地址，此时原样返回
func (e Endpoints) OldOCRURL(ref string) string {
	if strings.Contains(ref, "://") {
		return ref
	}
	return e.ResolverURL + ref
}

// NewOCRURL 返回对指定图像重新执行OCR的请求URL
func (e Endpoints) NewOCRURL(imageURL string) string {
	return e.OCRServiceURL + imageURL
}

// RecordURL 返回OAI GetRecord请求地址
func (e Endpoints) RecordURL(recordID string) string {
	sep := "?"
	if strings.Contains(e.OAIBaseURL, "?") {
		sep = "&"
	}
	return e.OAIBaseURL + sep + "verb=GetRecord&metadataPrefix=didl&identifier=DDD:" + recordID
}
