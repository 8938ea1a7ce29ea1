package common

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseCount 解析页面上的计数文本，例如 "1,234"、"1.2k"。
// 无法解析、为负数或超出 int 范围时返回 0。
func ParseCount(text string) int {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, text)
	if cleaned == "" {
		return 0
	}

	if last := cleaned[len(cleaned)-1]; last == 'k' || last == 'K' {
		num := cleaned[:len(cleaned)-1]
		if !isDecimal(num) {
			return 0
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil || f >= math.MaxInt/1000 {
			return 0
		}
		return int(f * 1000)
	}

	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// isDecimal 只接受 "12" 或 "1.25" 这种写法，排除 inf、nan、指数和十六进制
func isDecimal(s string) bool {
	digits, dot := 0, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// LeadingCount 提取文本中第一段连续数字（允许千分位逗号），
// 用于 "1,024 stars today" 这类文本。
func LeadingCount(text string) int {
	start := strings.IndexFunc(text, unicode.IsDigit)
	if start < 0 {
		return 0
	}
	end := start
	for end < len(text) && (text[end] >= '0' && text[end] <= '9' || text[end] == ',') {
		end++
	}
	return ParseCount(text[start:end])
}
