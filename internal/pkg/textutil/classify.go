package textutil

import "strings"

// 学术相关性关键词，命中比例决定 relevance 分值。
var academicKeywords = []string{
	"research", "study", "analysis", "method", "result", "conclusion",
	"hypothesis", "theory", "experiment", "data", "evidence", "finding",
}

// ClassifyChunkType 根据关键词将文本块归类为章节类型。
// 依次检查 summary、introduction、methodology、results、references，
// 均不命中时返回 content。
func ClassifyChunkType(text string) string {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, "abstract", "summary", "conclusion"):
		return "summary"
	case containsAny(lower, "introduction", "background", "overview"):
		return "introduction"
	case containsAny(lower, "method", "approach", "technique", "algorithm"):
		return "methodology"
	case containsAny(lower, "result", "finding", "analysis", "data"):
		return "results"
	case containsAny(lower, "reference", "citation", "bibliography"):
		return "references"
	default:
		return "content"
	}
}

// AcademicRelevance 计算文本的学术相关性分值，范围 [0, 1]。
// 分值为命中的学术关键词数与关键词总数之比。
func AcademicRelevance(text string) float64 {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range academicKeywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	score := float64(count) / float64(len(academicKeywords))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
