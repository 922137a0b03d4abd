package ocr

// ASCII字符分类表
var charClass [256]byte

const (
	classOther byte = iota
	classLetter
	classDigit
	classPunct
)

func init() {
	for c := 'a'; c <= 'z'; c++ {
		charClass[c] = classLetter
	}
	for c := 'A'; c <= 'Z'; c++ {
		charClass[c] = classLetter
	}
	for c := '0'; c <= '9'; c++ {
		charClass[c] = classDigit
	}
	for _, c := range "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" {
		charClass[c] = classPunct
	}
}

// Analyze 统计文本中的字母、数字、标点及总长度（按字节计）
func Analyze(text string) CharStats {
	stats := CharStats{TotalChars: len(text)}
	for i := 0; i < len(text); i++ {
		switch charClass[text[i]] {
		case classLetter:
			stats.Letters++
		case classDigit:
			stats.Digits++
		case classPunct:
			stats.Punctuation++
		}
	}
	return stats
}
