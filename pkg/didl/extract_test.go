package didl

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nerdneilsfield/go-enhance-ocr/internal/sample"
	"github.com/nerdneilsfield/go-enhance-ocr/pkg/endpoints"
)

// testURL 生成便于断言的简短URL
func testURL(pageID string, z endpoints.Zone) string {
	return fmt.Sprintf("%s/%d,%d,%d,%d", pageID, z.Width, z.Height, z.HPos, z.VPos)
}

func wrapDIDL(confidence, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<didl:DIDL xmlns:didl="urn:mpeg:mpeg21:2002:02-DIDL-NS" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcx="http://krait.kb.nl/coop/tel/handbook/telterms.html">
` + confidence + body + `
</didl:DIDL>`
}

func TestExtract_SampleDocument(t *testing.T) {
	doc, err := Extract(sample.DIDL(), testURL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if doc.Confidence != 0.61 {
		t.Errorf("Confidence = %v, want 0.61", doc.Confidence)
	}
	if len(doc.References) != 3 {
		t.Fatalf("References = %d, want 3: %v", len(doc.References), doc.References)
	}
	if len(doc.Groups) != 3 {
		t.Fatalf("Groups = %d, want 3", len(doc.Groups))
	}

	wantKeys := []string{
		"http://resolver.kb.nl/resolve?urn=ddd:010168412:mpeg21:a0001:ocr",
		"http://resolver.kb.nl/resolve?urn=ddd:010168412:mpeg21:a0002:ocr",
		"http://resolver.kb.nl/resolve?urn=ddd:010168412:mpeg21:a0003:ocr",
	}
	if strings.Join(doc.Keys, ",") != strings.Join(wantKeys, ",") {
		t.Errorf("Keys = %v, want %v", doc.Keys, wantKeys)
	}

	a1 := doc.Zones(wantKeys[0])
	want1 := []string{
		"ddd:010168412:mpeg21:p001:image/1180,412,96,310",
		"ddd:010168412:mpeg21:p001:image/1180,988,96,722",
	}
	if strings.Join(a1, ",") != strings.Join(want1, ",") {
		t.Errorf("a0001 zones = %v, want %v", a1, want1)
	}

	a2 := doc.Zones(wantKeys[1])
	want2 := []string{
		"ddd:010168412:mpeg21:p001:image/1190,1630,1294,310",
		"ddd:010168412:mpeg21:p002:image/1190,702,96,140",
	}
	if strings.Join(a2, ",") != strings.Join(want2, ",") {
		t.Errorf("a0002 zones = %v, want %v", a2, want2)
	}
}

func TestExtract_DefaultImageURL(t *testing.T) {
	doc, err := Extract(sample.DIDL(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	first := doc.Zones(doc.Keys[0])[0]
	if !strings.HasPrefix(first, endpoints.DefaultImagingServiceURL+"?id=") {
		t.Errorf("unexpected default image url: %s", first)
	}
}

func TestExtract_PageZeroZoningExcluded(t *testing.T) {
	body := `
<didl:Component dc:identifier="x:p001:zoning"><dcx:zone pageid="pg" width="1" height="1" hpos="1" vpos="1"/></didl:Component>
<didl:Resource ref="x:a0001:ocr"/>
<didl:Component dc:identifier="x:a0001:zoning"><dcx:zone pageid="pg" width="2" height="2" hpos="2" vpos="2"/></didl:Component>`
	doc, err := Extract([]byte(wrapDIDL(`<dcx:OCRConfidencelevel>0.5</dcx:OCRConfidencelevel>`, body)), testURL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(doc.Groups) != 1 {
		t.Fatalf("Groups = %d, want 1", len(doc.Groups))
	}
	if got := doc.Zones("x:a0001:ocr"); len(got) != 1 || got[0] != "pg/2,2,2,2" {
		t.Errorf("zones = %v", got)
	}
}

func TestExtract_IncompleteAndDuplicateZones(t *testing.T) {
	body := `
<didl:Resource ref="x:a0001:ocr"/>
<didl:Component dc:identifier="x:a0001:zoning">
  <dcx:page pageid="pg">
    <dcx:zone width="10" height="20" hpos="30" vpos="40"/>
    <dcx:zone width="10" height="20" hpos="30" vpos="40"/>
    <dcx:zone width="11" height="21"/>
    <dcx:zone hpos="31" vpos="41"/>
    <dcx:zone width="abc" height="1" hpos="1" vpos="1"/>
  </dcx:page>
</didl:Component>`
	doc, err := Extract([]byte(wrapDIDL(`<dcx:OCRConfidencelevel>0.5</dcx:OCRConfidencelevel>`, body)), testURL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	// 第三、四个元素合并成一个完整区域；非法宽度的区域被丢弃
	want := []string{"pg/10,20,30,40", "pg/11,21,31,41"}
	got := doc.Zones("x:a0001:ocr")
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("zones = %v, want %v", got, want)
	}
}

func TestExtract_ExcessReferencesDropped(t *testing.T) {
	body := `
<didl:Resource ref="x:a0001:ocr"/>
<didl:Resource ref="x:a0002:ocr"/>
<didl:Resource ref="x:a0003:ocr"/>
<didl:Component dc:identifier="x:a0001:zoning"><dcx:zone pageid="pg" width="1" height="1" hpos="1" vpos="1"/></didl:Component>`
	doc, err := Extract([]byte(wrapDIDL(`<dcx:OCRConfidencelevel>0.5</dcx:OCRConfidencelevel>`, body)), testURL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(doc.Index) != 1 {
		t.Errorf("Index has %d keys, want 1", len(doc.Index))
	}
	if len(doc.Index) > len(doc.References) || len(doc.Index) > len(doc.Groups) {
		t.Errorf("index larger than min(refs, groups)")
	}
}

func TestExtract_ConfidenceLastWins(t *testing.T) {
	conf := `<dcx:OCRConfidencelevel>0.3</dcx:OCRConfidencelevel><dcx:OCRConfidencelevel> 0.95 </dcx:OCRConfidencelevel>`
	doc, err := Extract([]byte(wrapDIDL(conf, "")), testURL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if doc.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", doc.Confidence)
	}
	if !doc.ExceedsThreshold(0.8) {
		t.Error("expected confidence to exceed 0.8")
	}
}

func TestExtract_CommentEndsConfidenceText(t *testing.T) {
	doc, err := Extract([]byte(wrapDIDL(`<dcx:OCRConfidencelevel>0.<!-- c -->5</dcx:OCRConfidencelevel>`, "")), testURL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	// 只取注释前的文本 "0."
	if doc.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", doc.Confidence)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "malformed", data: `<didl:DIDL><unclosed></didl:DIDL>`},
		{name: "missing confidence", data: wrapDIDL("", `<didl:Resource ref="x:a0001:ocr"/>`)},
		{name: "non numeric confidence", data: wrapDIDL(`<dcx:OCRConfidencelevel>high</dcx:OCRConfidencelevel>`, "")},
		{name: "empty confidence", data: wrapDIDL(`<dcx:OCRConfidencelevel></dcx:OCRConfidencelevel>`, "")},
		{name: "trailing root", data: `<a><OCRConfidencelevel>0.5</OCRConfidencelevel></a><b/>`},
		{name: "trailing text", data: `<a><OCRConfidencelevel>0.5</OCRConfidencelevel></a>trailing`},
		{name: "leading text", data: `stray<a><OCRConfidencelevel>0.5</OCRConfidencelevel></a>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.data), testURL)
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("expected *ParseError, got %T: %v", err, err)
			}
		})
	}
}
