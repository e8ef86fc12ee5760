package utils

import (
	"bytes"
	"regexp"
	"strings"
)

// SplitText splits a long string into chunks of approximately 'chunkSize' characters.
// It includes an 'overlap' to preserve context at boundaries.
func SplitText(text string, chunkSize int, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks
}

var (
	pdfPageObject = regexp.MustCompile(`/Type\s*/Page[^s]`)
	pdfTextRun    = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*Tj`)
)

// CountPDFPages counts page objects in a raw PDF. Returns at least 1 for non-empty input.
func CountPDFPages(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := len(pdfPageObject.FindAll(data, -1))
	if n == 0 {
		return 1
	}
	return n
}

// ExtractPDFText pulls literal text runs out of uncompressed PDF content streams.
// Compressed streams yield nothing, in which case the raw printable bytes are used.
func ExtractPDFText(data []byte) string {
	var b strings.Builder
	for _, m := range pdfTextRun.FindAllSubmatch(data, -1) {
		b.Write(m[1])
		b.WriteByte(' ')
	}
	if b.Len() > 0 {
		return b.String()
	}
	return string(bytes.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || (r >= 0x20 && r < 0x7f) {
			return r
		}
		return -1
	}, data))
}
