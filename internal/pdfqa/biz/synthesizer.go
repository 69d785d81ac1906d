package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/miankhizer64/Quest-Gen/internal/model"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/metrics"
	"github.com/miankhizer64/Quest-Gen/internal/pkg/textutil"
	"github.com/miankhizer64/Quest-Gen/pkg/llm"
)

// 响应格式风格。
const (
	StyleAcademic      = "academic"
	StyleComprehensive = "comprehensive"
	StyleStandard      = "standard"
)

// StyleConfig 按格式风格区分的生成参数。
type StyleConfig struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// SynthesizerConfig 合成器配置。
type SynthesizerConfig struct {
	// MaxGenericContext 全文路径送入 LLM 的最大字符数。
	MaxGenericContext int
	// GenericTemperature 全文路径的生成温度。
	GenericTemperature float64
	// GenericMaxTokens 全文路径的输出上限。
	GenericMaxTokens int
	// Styles 窄检索路径各风格的生成参数。
	Styles map[string]StyleConfig
}

// DefaultSynthesizerConfig 返回默认合成配置。
func DefaultSynthesizerConfig() *SynthesizerConfig {
	return &SynthesizerConfig{
		MaxGenericContext:  12000,
		GenericTemperature: 0.3,
		GenericMaxTokens:   4000,
		Styles: map[string]StyleConfig{
			StyleAcademic: {
				SystemPrompt: "You are an expert academic researcher. Provide scholarly, well-referenced responses with proper citations and formal language.",
				Temperature:  0.4,
				MaxTokens:    2000,
			},
			StyleComprehensive: {
				SystemPrompt: "You are a comprehensive AI assistant. Provide detailed, thorough responses with clear structure and examples.",
				Temperature:  0.2,
				MaxTokens:    3000,
			},
			StyleStandard: {
				SystemPrompt: "You are a professional AI assistant. Provide clear, well-formatted responses that are easy to understand.",
				Temperature:  0.1,
				MaxTokens:    2000,
			},
		},
	}
}

// Synthesizer 负责提示词拼装与答案生成。
// 对外契约是永远返回字符串，LLM 层错误在这里降级为确定性回退文本，
// 不向调用方传播。
type Synthesizer struct {
	chat       llm.ChatProvider
	classifier *Classifier
	config     *SynthesizerConfig
	metrics    *metrics.Metrics
}

// NewSynthesizer 创建合成器实例。
func NewSynthesizer(chat llm.ChatProvider, classifier *Classifier, config *SynthesizerConfig) *Synthesizer {
	if config == nil {
		config = DefaultSynthesizerConfig()
	}
	return &Synthesizer{
		chat:       chat,
		classifier: classifier,
		config:     config,
		metrics:    metrics.Get(),
	}
}

// generate 调用 LLM 并记录调用指标。
func (s *Synthesizer) generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	start := time.Now()
	resp, err := s.chat.Generate(ctx, req)

	promptTokens, completionTokens := 0, 0
	if resp != nil && resp.TokenUsage != nil {
		promptTokens = resp.TokenUsage.PromptTokens
		completionTokens = resp.TokenUsage.CompletionTokens
	}
	s.metrics.RecordLLMCall(time.Since(start), promptTokens, completionTokens, err)
	return resp, err
}

// AnswerGeneric 全文路径：用缓存的整篇文档回答全文类查询。
// fullText 为空时返回无文档引导文本，不调用 LLM。
// maxTokens 为 0 时使用配置默认值。
func (s *Synthesizer) AnswerGeneric(ctx context.Context, query, fullText, filename string, maxTokens int) string {
	if strings.TrimSpace(fullText) == "" {
		return s.NoPDFResponse(query)
	}

	// 按 Unicode 字符截断，避免切断多字节字符
	content := textutil.TruncateString(fullText, s.config.MaxGenericContext)
	if content != fullText {
		content += "\n\n[Note: Truncated]"
	}

	var prompt string
	if s.classifier.IsQuestionGeneration(query) {
		prompt = buildQuestionGenerationPrompt(query, content, filename)
	} else {
		prompt = buildAcademicAnalysisPrompt(query, content, filename)
	}

	if maxTokens <= 0 {
		maxTokens = s.config.GenericMaxTokens
	}
	resp, err := s.generate(ctx, &llm.GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: s.config.GenericTemperature,
	})
	if err != nil {
		logger.Errorw("generic answer generation failed", "error", err.Error(), "query", query)
		return errorFallbackResponse(query, err)
	}

	return fmt.Sprintf("%s\n\n---\nSource: %s | Mode: Complete Document Analysis", resp.Content, filename)
}

// AnswerSpecific 窄检索路径：用带来源标注的检索上下文回答。
// 按风格选择人设与生成参数。
func (s *Synthesizer) AnswerSpecific(ctx context.Context, query string, retrieval *RetrievalResult, style string, maxTokens int) string {
	styleConfig, ok := s.config.Styles[style]
	if !ok {
		styleConfig = s.config.Styles[StyleStandard]
	}
	if maxTokens <= 0 {
		maxTokens = styleConfig.MaxTokens
	}

	enhanced := fmt.Sprintf(`Original Query: %s

Context Information:
%s

Source Summary:
%s

Please provide a comprehensive answer to the original query using the provided context.
Include specific references to the sources when relevant.`,
		query, retrieval.Context, sourceSummary(retrieval.Sources))

	resp, err := s.generate(ctx, &llm.GenerateRequest{
		Prompt:       enhanced,
		SystemPrompt: styleConfig.SystemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  styleConfig.Temperature,
	})
	if err != nil {
		logger.Errorw("specific answer generation failed", "error", err.Error(), "query", query)
		return errorFallbackResponse(query, err)
	}
	return resp.Content
}

// AnswerNoContext 检索无命中但无法走全文路径时的兜底生成。
// 用空上下文调用 LLM，提示其说明还需要什么信息。
func (s *Synthesizer) AnswerNoContext(ctx context.Context, query, style string, maxTokens int) string {
	styleConfig, ok := s.config.Styles[style]
	if !ok {
		styleConfig = s.config.Styles[StyleComprehensive]
	}
	if maxTokens <= 0 {
		maxTokens = styleConfig.MaxTokens
	}

	prompt := fmt.Sprintf(`Query: %s

Available Context: Limited context available

Please provide a comprehensive response to the query. If context is limited,
explain what information would be helpful and suggest how to get better results.`, query)

	resp, err := s.generate(ctx, &llm.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: styleConfig.SystemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  styleConfig.Temperature,
	})
	if err != nil {
		logger.Errorw("no-context generation failed", "error", err.Error(), "query", query)
		return errorFallbackResponse(query, err)
	}
	return resp.Content
}

// NoPDFResponse 无任何文档时的固定引导文本，不经过 LLM。
func (s *Synthesizer) NoPDFResponse(query string) string {
	return fmt.Sprintf(`I'd be happy to help with your query: **%s**

However, I don't currently have any PDF documents loaded in the system. To provide a comprehensive response, please:

1. **Upload a PDF document** first
2. **Ensure the PDF is properly processed** before asking questions
3. **Try your query again** once documents are available

If you have already uploaded documents, please check:
- The PDF processing completed successfully
- The document contains readable text content
- The system cache has the document information`, query)
}

// FormatByStyle 按风格包装答案：引用列表加处理元信息。
func (s *Synthesizer) FormatByStyle(answer string, sources []model.SourceRef, stats *model.SearchStats, style string, elapsed time.Duration) string {
	var sb strings.Builder

	switch style {
	case StyleAcademic:
		sb.WriteString("## Academic Analysis\n\n")
		sb.WriteString(answer)
		sb.WriteString("\n\n")
		if len(sources) > 0 {
			sb.WriteString("## Sources and References\n\n")
			for i, source := range sources {
				sb.WriteString(fmt.Sprintf("**[%d]** %s - Page %d (Relevance: %.3f, Type: %s)\n",
					i+1, source.Filename, source.Page, source.Score, source.ChunkType))
				sb.WriteString(fmt.Sprintf("   *Preview:* %s\n\n", source.Content))
			}
		}
	case StyleComprehensive:
		sb.WriteString("# Comprehensive Response\n\n")
		sb.WriteString(answer)
		sb.WriteString("\n\n")
		if len(sources) > 0 {
			sb.WriteString("## Detailed Source Information\n\n")
			for i, source := range sources {
				sb.WriteString(fmt.Sprintf("### Source %d: %s\n", i+1, source.Filename))
				sb.WriteString(fmt.Sprintf("- **Page:** %d\n", source.Page))
				sb.WriteString(fmt.Sprintf("- **Relevance Score:** %.3f\n", source.Score))
				sb.WriteString(fmt.Sprintf("- **Content Type:** %s\n", source.ChunkType))
				sb.WriteString(fmt.Sprintf("- **Preview:** %s\n\n", source.Content))
			}
		}
	default:
		sb.WriteString(answer)
		sb.WriteString("\n\n")
		if len(sources) > 0 {
			sb.WriteString("**Sources:**\n")
			for i, source := range sources {
				sb.WriteString(fmt.Sprintf("%d. %s (Page %d) - Score: %.3f\n",
					i+1, source.Filename, source.Page, source.Score))
			}
		}
	}

	sb.WriteString("\n---\n**Processing Information:**\n")
	sb.WriteString(fmt.Sprintf("- Processing Time: %.2f seconds\n", elapsed.Seconds()))
	if stats != nil {
		sb.WriteString(fmt.Sprintf("- Sources Found: %d\n", stats.TotalSources))
		sb.WriteString(fmt.Sprintf("- Average Relevance Score: %.3f\n", stats.AvgScore))
		sb.WriteString(fmt.Sprintf("- Best Match Score: %.3f\n", stats.BestScore))
	}
	return sb.String()
}

// sourceSummary 生成可读的来源清单。
func sourceSummary(sources []model.SourceRef) string {
	if len(sources) == 0 {
		return "No sources available"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d relevant sources:\n", len(sources)))
	for i, source := range sources {
		sb.WriteString(fmt.Sprintf("  %d. %s (Page %d) - Score: %.3f\n",
			i+1, source.Filename, source.Page, source.Score))
	}
	return sb.String()
}

// errorFallbackResponse LLM 失败时的确定性降级文本。
func errorFallbackResponse(query string, err error) string {
	return fmt.Sprintf(`I apologize for encountering an issue while processing your query: **%s**

**Error Details:** %s

**Possible Solutions:**
1. **Try rephrasing your question** in a different way
2. **Check if your PDF documents are properly loaded**
3. **Verify the document contains readable text content**
4. **Try a more specific question** if the document is very large`, query, err.Error())
}

func buildQuestionGenerationPrompt(query, content, filename string) string {
	return fmt.Sprintf(`You are an academic exam expert. Your job is to create unique, high-quality questions along with detailed answers based on the following PDF content.

**Instructions:**
- Cover multiple cognitive levels (definition, analysis, application).
- Use at least 3 different formats: MCQ, short answer, descriptive.
- Do not invent content not present in the text.
- Format as:

### Question 1
**Type**: [e.g., MCQ, Descriptive]
**Question**: ...
**Options** (if MCQ): A)... B)...
**Correct Answer**: ...
**Explanation**: ...

**Query:** %s
**PDF Document (%s):**
"""
%s
"""`, query, filename, content)
}

func buildAcademicAnalysisPrompt(query, content, filename string) string {
	return fmt.Sprintf(`You are an academic assistant. Answer the following query based solely on the provided PDF document.

**Query:** %s
**PDF Document (%s):**
"""
%s
"""

**Instructions:**
- Be precise and well-structured.
- Use formal academic language.
- Cite the source context where appropriate.`, query, filename, content)
}
