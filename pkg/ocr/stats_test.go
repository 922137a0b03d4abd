package ocr

import "testing"

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want CharStats
	}{
		{name: "empty", text: "", want: CharStats{}},
		{name: "letters", text: "Krant", want: CharStats{TotalChars: 5, Letters: 5}},
		{name: "mixed", text: "Den 2 Jan. 1880!", want: CharStats{TotalChars: 16, Letters: 6, Digits: 5, Punctuation: 2}},
		{name: "all punctuation", text: "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", want: CharStats{TotalChars: 32, Punctuation: 32}},
		{name: "whitespace only", text: " \n\t", want: CharStats{TotalChars: 3}},
		// é 占两个字节，不属于任何ASCII类别
		{name: "non ascii", text: "café", want: CharStats{TotalChars: 5, Letters: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Analyze(tt.text); got != tt.want {
				t.Errorf("Analyze(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAnalyze_ClassesNeverExceedTotal(t *testing.T) {
	for _, text := range []string{"abc123", "€ 12,50", "\x00\xff", "Het Nieuws van den Dag."} {
		s := Analyze(text)
		if s.Letters+s.Digits+s.Punctuation > s.TotalChars {
			t.Errorf("Analyze(%q): classified %d > total %d", text, s.Letters+s.Digits+s.Punctuation, s.TotalChars)
		}
	}
}

func TestAnalyze_AdditiveOverPartitions(t *testing.T) {
	text := "AMSTERDAM, 1 Januari. — De Koning heeft 3 besluiten genomen; zie blz. 2."
	whole := Analyze(text)

	for cut := 0; cut <= len(text); cut++ {
		sum := Analyze(text[:cut]).Add(Analyze(text[cut:]))
		if sum != whole {
			t.Fatalf("partition at %d: %+v != %+v", cut, sum, whole)
		}
	}

	var running CharStats
	for i := 0; i < len(text); i += 7 {
		end := i + 7
		if end > len(text) {
			end = len(text)
		}
		running = running.Add(Analyze(text[i:end]))
	}
	if running != whole {
		t.Errorf("chunked sum %+v != %+v", running, whole)
	}
}
