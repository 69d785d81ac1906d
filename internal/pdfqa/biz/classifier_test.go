package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifierGenericPatterns(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"问题生成", "Generate questions from the PDF", QueryTypeGeneric},
		{"创建问题", "create 10 questions out of the pdf", QueryTypeGeneric},
		{"主题列举", "What are the main topics of this paper?", QueryTypeGeneric},
		{"摘要请求", "Summarize this PDF for me", QueryTypeGeneric},
		{"概述请求", "Give me an overview of the document", QueryTypeGeneric},
		{"内容分析", "Analyze the content of this pdf", QueryTypeGeneric},
		{"章节列举", "List all chapters in the book", QueryTypeGeneric},
		{"研究目标", "What are the research objectives of this study?", QueryTypeGeneric},
		{"数字问题", "5 questions from the pdf please", QueryTypeGeneric},
		{"事实查询", "What is the capital of France?", QueryTypeSpecific},
		{"章节细节", "What does section 2 say about embeddings?", QueryTypeSpecific},
		{"定义查询", "Define cosine similarity as used on page 3", QueryTypeSpecific},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.query))
		})
	}
}

// 关键词表中的每一项单独出现即判定为 generic。
func TestClassifierEveryKeywordTriggersGeneric(t *testing.T) {
	c := NewClassifier()

	for _, keyword := range genericKeywords {
		assert.True(t, c.IsGeneric("please "+keyword+" now"), "keyword %q should classify generic", keyword)
	}
}

// 分类器为纯函数，重复调用结果一致。
func TestClassifierDeterministic(t *testing.T) {
	c := NewClassifier()

	queries := []string{
		"Summarize this document",
		"What is attention in transformers?",
		"generate questions about the pdf",
	}

	for _, q := range queries {
		first := c.Classify(q)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, c.Classify(q))
		}
	}
}

func TestClassifierCaseInsensitive(t *testing.T) {
	c := NewClassifier()

	assert.True(t, c.IsGeneric("SUMMARIZE THE PDF"))
	assert.True(t, c.IsGeneric("  Overview of the document  "))
}

func TestIsQuestionGeneration(t *testing.T) {
	c := NewClassifier()

	assert.True(t, c.IsQuestionGeneration("Generate 10 questions from this pdf"))
	assert.True(t, c.IsQuestionGeneration("please generate some question sets"))
	assert.False(t, c.IsQuestionGeneration("Summarize the pdf"))
	assert.False(t, c.IsQuestionGeneration("What is the main question of the study?"))
}
