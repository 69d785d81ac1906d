// Package textutil 提供 pdfqa 相关的文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 是递归分割时的分隔符优先级，从段落到句子再到单词。
// 末尾的空字符串表示按字符硬切。
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// RecursiveSplit 按分隔符优先级将文本递归分割成重叠的块。
// 优先在段落边界切分，段落超长时退化到行、句子、单词，
// 最后按字符硬切。chunkSize 与 overlap 以 Unicode 字符计。
func RecursiveSplit(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := splitRecursive(text, chunkSize, DefaultSeparators)
	return mergePieces(pieces, chunkSize, overlap)
}

// splitRecursive 将文本切成长度不超过 chunkSize 的片段，
// 依次尝试 separators 中的每个分隔符。
func splitRecursive(text string, chunkSize int, separators []string) []string {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardSplit(text, chunkSize)
	}

	sep := separators[0]
	rest := separators[1:]
	if sep == "" {
		return hardSplit(text, chunkSize)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return splitRecursive(text, chunkSize, rest)
	}

	var out []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= chunkSize {
			out = append(out, part)
		} else {
			out = append(out, splitRecursive(part, chunkSize, rest)...)
		}
	}
	return out
}

// hardSplit 按固定字符数切分，相邻块不重叠。重叠由 mergePieces 统一处理。
func hardSplit(text string, chunkSize int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergePieces 将小片段贪心合并成接近 chunkSize 的块，
// 并在相邻块之间保留 overlap 个字符的重叠。
func mergePieces(pieces []string, chunkSize, overlap int) []string {
	var chunks []string
	var buf []rune

	flush := func() {
		s := strings.TrimSpace(string(buf))
		if s != "" {
			chunks = append(chunks, s)
		}
	}

	for _, p := range pieces {
		pr := []rune(p)
		if len(buf)+len(pr) > chunkSize && len(buf) > 0 {
			flush()
			// 保留尾部 overlap 个字符作为下一块的开头
			if overlap > 0 && len(buf) > overlap {
				buf = append([]rune{}, buf[len(buf)-overlap:]...)
			} else if overlap == 0 {
				buf = buf[:0]
			}
		}
		buf = append(buf, pr...)
		// 片段本身超长时直接硬切
		for len(buf) > chunkSize {
			head := buf[:chunkSize]
			chunks = append(chunks, strings.TrimSpace(string(head)))
			keep := chunkSize - overlap
			buf = append([]rune{}, buf[keep:]...)
		}
	}
	flush()

	return chunks
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
