package biz

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miankhizer64/Quest-Gen/internal/model"
)

func newTestSynthesizer(chat *fakeChat) *Synthesizer {
	return NewSynthesizer(chat, NewClassifier(), DefaultSynthesizerConfig())
}

func TestAnswerGenericEmptyContentSkipsLLM(t *testing.T) {
	chat := &fakeChat{}
	s := newTestSynthesizer(chat)

	answer := s.AnswerGeneric(context.Background(), "Summarize this document", "", "", 0)

	// 无文档时返回固定引导文本，不调用 LLM
	assert.Contains(t, answer, "don't currently have any PDF documents loaded")
	assert.Contains(t, answer, "Summarize this document")
	assert.Equal(t, 0, chat.callCount())
}

func TestAnswerGenericTruncatesLongContent(t *testing.T) {
	chat := &fakeChat{response: "the summary"}
	s := newTestSynthesizer(chat)

	long := strings.Repeat("a", 15000)
	answer := s.AnswerGeneric(context.Background(), "Summarize this pdf", long, "big.pdf", 0)

	assert.Contains(t, answer, "the summary")
	assert.Contains(t, answer, "Source: big.pdf")

	req := chat.lastRequest()
	require.NotNil(t, req)
	assert.Contains(t, req.Prompt, "[Note: Truncated]")
	// 送入 LLM 的内容被截断到上限
	assert.Less(t, len(req.Prompt), 13000)
	assert.Equal(t, 4000, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 0.001)
}

// 多字节文本按 Unicode 字符截断，不会把字符切成非法 UTF-8
func TestAnswerGenericTruncationIsRuneSafe(t *testing.T) {
	chat := &fakeChat{response: "概要"}
	s := newTestSynthesizer(chat)

	long := strings.Repeat("数", 13000)
	s.AnswerGeneric(context.Background(), "Summarize this pdf", long, "论文.pdf", 0)

	req := chat.lastRequest()
	require.NotNil(t, req)
	assert.True(t, utf8.ValidString(req.Prompt))
	assert.Contains(t, req.Prompt, "[Note: Truncated]")
}

func TestAnswerGenericQuestionGenerationTemplate(t *testing.T) {
	chat := &fakeChat{}
	s := newTestSynthesizer(chat)

	s.AnswerGeneric(context.Background(), "generate 5 questions from the pdf", "some document text", "doc.pdf", 0)

	req := chat.lastRequest()
	require.NotNil(t, req)
	assert.Contains(t, req.Prompt, "academic exam expert")
	assert.Contains(t, req.Prompt, "**Correct Answer**")

	// 非问题生成类查询走学术分析模板
	s.AnswerGeneric(context.Background(), "Summarize this pdf", "some document text", "doc.pdf", 0)
	req = chat.lastRequest()
	assert.Contains(t, req.Prompt, "academic assistant")
	assert.NotContains(t, req.Prompt, "exam expert")
}

func TestAnswerGenericLLMErrorFallsBack(t *testing.T) {
	chat := &fakeChat{err: assert.AnError}
	s := newTestSynthesizer(chat)

	answer := s.AnswerGeneric(context.Background(), "Summarize this pdf", "document text", "doc.pdf", 0)

	// LLM 错误降级为回退文本，不向上传播
	assert.Contains(t, answer, "I apologize for encountering an issue")
	assert.Contains(t, answer, "Summarize this pdf")
}

func TestAnswerSpecificUsesStyleConfig(t *testing.T) {
	tests := []struct {
		style       string
		wantSystem  string
		wantTokens  int
		wantTemp    float64
	}{
		{StyleAcademic, "academic researcher", 2000, 0.4},
		{StyleComprehensive, "comprehensive AI assistant", 3000, 0.2},
		{StyleStandard, "professional AI assistant", 2000, 0.1},
		{"unknown", "professional AI assistant", 2000, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			chat := &fakeChat{}
			s := newTestSynthesizer(chat)

			retrieval := &RetrievalResult{
				Context: "--- SOURCE 1 ---\nsome context",
				Sources: []model.SourceRef{{Filename: "a.pdf", Page: 1, Score: 0.8}},
			}
			s.AnswerSpecific(context.Background(), "what is X?", retrieval, tt.style, 0)

			req := chat.lastRequest()
			require.NotNil(t, req)
			assert.Contains(t, req.SystemPrompt, tt.wantSystem)
			assert.Equal(t, tt.wantTokens, req.MaxTokens)
			assert.InDelta(t, tt.wantTemp, req.Temperature, 0.001)
			assert.Contains(t, req.Prompt, "Original Query: what is X?")
			assert.Contains(t, req.Prompt, "some context")
			assert.Contains(t, req.Prompt, "Found 1 relevant sources")
		})
	}
}

func TestAnswerSpecificLLMErrorFallsBack(t *testing.T) {
	chat := &fakeChat{err: assert.AnError}
	s := newTestSynthesizer(chat)

	answer := s.AnswerSpecific(context.Background(), "what is X?", &RetrievalResult{}, StyleAcademic, 0)
	assert.Contains(t, answer, "what is X?")
	assert.Contains(t, answer, "Error Details")
}

func TestAnswerNoContext(t *testing.T) {
	chat := &fakeChat{response: "best effort answer"}
	s := newTestSynthesizer(chat)

	answer := s.AnswerNoContext(context.Background(), "explain neural networks", StyleComprehensive, 0)
	assert.Equal(t, "best effort answer", answer)

	req := chat.lastRequest()
	require.NotNil(t, req)
	assert.Contains(t, req.Prompt, "Limited context available")
}

func TestFormatByStyle(t *testing.T) {
	s := newTestSynthesizer(&fakeChat{})
	sources := []model.SourceRef{
		{Filename: "a.pdf", Page: 2, Score: 0.812, ChunkType: "summary", Content: "preview text"},
	}
	stats := &model.SearchStats{TotalSources: 1, AvgScore: 0.812, BestScore: 0.812}

	academic := s.FormatByStyle("the answer", sources, stats, StyleAcademic, 1500*time.Millisecond)
	assert.Contains(t, academic, "## Academic Analysis")
	assert.Contains(t, academic, "**[1]** a.pdf - Page 2 (Relevance: 0.812, Type: summary)")
	assert.Contains(t, academic, "Processing Time: 1.50 seconds")
	assert.Contains(t, academic, "Sources Found: 1")

	comprehensive := s.FormatByStyle("the answer", sources, stats, StyleComprehensive, time.Second)
	assert.Contains(t, comprehensive, "# Comprehensive Response")
	assert.Contains(t, comprehensive, "### Source 1: a.pdf")

	standard := s.FormatByStyle("the answer", sources, stats, StyleStandard, time.Second)
	assert.Contains(t, standard, "**Sources:**")
	assert.Contains(t, standard, "1. a.pdf (Page 2) - Score: 0.812")
	assert.NotContains(t, standard, "Academic Analysis")
}

func TestMaxTokensOverride(t *testing.T) {
	chat := &fakeChat{}
	s := newTestSynthesizer(chat)

	// 调用方给定的 token 预算覆盖风格默认值
	s.AnswerSpecific(context.Background(), "q", &RetrievalResult{}, StyleAcademic, 512)
	assert.Equal(t, 512, chat.lastRequest().MaxTokens)

	s.AnswerGeneric(context.Background(), "Summarize this pdf", "text", "a.pdf", 256)
	assert.Equal(t, 256, chat.lastRequest().MaxTokens)
}

func TestFormatByStyleNoSources(t *testing.T) {
	s := newTestSynthesizer(&fakeChat{})

	out := s.FormatByStyle("raw answer", nil, nil, StyleStandard, time.Second)
	assert.Contains(t, out, "raw answer")
	assert.NotContains(t, out, "**Sources:**")
	assert.Contains(t, out, "Processing Time")
}
