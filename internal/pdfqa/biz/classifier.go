package biz

import (
	"regexp"
	"strings"
)

// 查询类型。
const (
	QueryTypeGeneric   = "generic"
	QueryTypeSpecific  = "specific"
	QueryTypeNoContext = "no_context"
)

// genericPatterns 全文类查询的正则规则表。
// 命中任意一条即判定为 generic。
var genericPatterns = []*regexp.Regexp{
	// 问题生成类
	regexp.MustCompile(`generate.*questions?.*(?:from|out of|about).*pdf`),
	regexp.MustCompile(`create.*questions?.*(?:from|out of|about).*pdf`),
	regexp.MustCompile(`make.*questions?.*(?:from|out of|about).*pdf`),
	regexp.MustCompile(`list.*questions?.*(?:from|out of|about).*pdf`),
	regexp.MustCompile(`(?:give|show).*questions?.*(?:from|out of|about).*pdf`),

	// 主题/要点类
	regexp.MustCompile(`what.*(?:are|is).*(?:main|key|primary|important).*(?:topics?|subjects?|themes?|points?|ideas?|concepts?)`),
	regexp.MustCompile(`what.*(?:are|is).*(?:main|key|primary|important).*(?:questions?|issues?|problems?)`),
	regexp.MustCompile(`(?:main|key|primary|important).*(?:topics?|subjects?|themes?|points?|ideas?|concepts?)`),
	regexp.MustCompile(`(?:main|key|primary|important).*(?:questions?|issues?|problems?)`),

	// 摘要类
	regexp.MustCompile(`summarize.*(?:the|this).*pdf`),
	regexp.MustCompile(`(?:give|provide).*summary.*(?:of|about).*pdf`),
	regexp.MustCompile(`what.*(?:is|are).*(?:the|this).*pdf.*about`),
	regexp.MustCompile(`(?:overview|summary).*(?:of|about).*(?:the|this).*pdf`),

	// 内容分析类
	regexp.MustCompile(`analyze.*(?:the|this).*pdf`),
	regexp.MustCompile(`(?:analyze|examine).*(?:content|document)`),
	regexp.MustCompile(`what.*(?:does|do).*(?:the|this).*pdf.*(?:discuss|cover|contain)`),
	regexp.MustCompile(`(?:content|contents).*(?:of|in).*(?:the|this).*pdf`),

	// 全量类
	regexp.MustCompile(`(?:all|everything).*(?:about|in).*(?:the|this).*pdf`),
	regexp.MustCompile(`(?:complete|full|entire).*(?:content|analysis|overview)`),

	// 章节类
	regexp.MustCompile(`(?:list|show|give).*(?:all|every).*(?:chapters?|sections?|parts?)`),
	regexp.MustCompile(`what.*(?:chapters?|sections?|parts?).*(?:are|does).*(?:the|this).*pdf.*(?:have|contain)`),

	// 研究类
	regexp.MustCompile(`research.*(?:questions?|objectives?|goals?)`),
	regexp.MustCompile(`(?:study|research).*(?:focus|aim|purpose)`),
	regexp.MustCompile(`(?:objectives?|goals?|aims?).*(?:of|in).*(?:the|this).*(?:study|research|paper)`),

	// 方法论类
	regexp.MustCompile(`(?:methodology|methods?).*(?:used|employed|applied)`),
	regexp.MustCompile(`(?:how|what).*(?:methodology|methods?).*(?:was|were).*(?:used|employed)`),

	// 结论类
	regexp.MustCompile(`(?:findings|results|conclusions?).*(?:of|in).*(?:the|this).*(?:study|research|paper)`),
	regexp.MustCompile(`what.*(?:findings|results|conclusions?).*(?:does|do).*(?:the|this).*(?:study|research|paper)`),

	// 泛内容类
	regexp.MustCompile(`(?:discuss|cover|explain|describe).*(?:in|within).*(?:the|this).*pdf`),
	regexp.MustCompile(`what.*(?:is|are).*(?:discussed|covered|explained|described).*(?:in|within).*(?:the|this).*pdf`),
}

// genericKeywords 全文类查询的关键词表。
var genericKeywords = []string{
	"summarize", "overview", "summary", "analyze", "analysis", "content", "contents",
	"main points", "key points", "important points", "main topics", "key topics",
	"main ideas", "key ideas", "main concepts", "key concepts", "all about",
	"everything about", "complete analysis", "full analysis", "entire content",
	"whole document", "research questions", "study objectives", "research objectives",
	"generate questions", "create questions", "make questions", "list questions",
}

// numericQuestionPattern 匹配 "N questions from/about pdf" 形式的查询。
var numericQuestionPattern = regexp.MustCompile(`\d+\s+questions?.*(?:from|about|out of).*pdf`)

// questionGenPattern 判断查询本身是否为问题生成请求（用于切换提示词模板）。
var questionGenPattern = regexp.MustCompile(`\bgenerate\b.*\bquestions?\b`)

// Classifier 基于规则表判定查询需要全文上下文还是窄检索。
// 纯函数，无副作用，歧义时倾向 generic。
type Classifier struct{}

// NewClassifier 创建查询分类器。
func NewClassifier() *Classifier {
	return &Classifier{}
}

// IsGeneric 判定查询是否需要整篇文档作为上下文。
func (c *Classifier) IsGeneric(query string) bool {
	queryLower := strings.ToLower(strings.TrimSpace(query))

	for _, pattern := range genericPatterns {
		if pattern.MatchString(queryLower) {
			return true
		}
	}

	for _, keyword := range genericKeywords {
		if strings.Contains(queryLower, keyword) {
			return true
		}
	}

	return numericQuestionPattern.MatchString(queryLower)
}

// Classify 返回查询类型标签。
func (c *Classifier) Classify(query string) string {
	if c.IsGeneric(query) {
		return QueryTypeGeneric
	}
	return QueryTypeSpecific
}

// IsQuestionGeneration 判断查询是否要求生成问题。
func (c *Classifier) IsQuestionGeneration(query string) bool {
	return questionGenPattern.MatchString(strings.ToLower(query))
}
