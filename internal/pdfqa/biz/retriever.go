package biz

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/miankhizer64/Quest-Gen/internal/model"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/store"
	"github.com/miankhizer64/Quest-Gen/internal/pkg/textutil"
	"github.com/miankhizer64/Quest-Gen/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 返回的结果数量上限。
	TopK int
	// ScoreThreshold 相似度下限，低于该值的命中被丢弃。
	ScoreThreshold float64
	// Collection 集合名称。
	Collection string
	// PreviewLength 来源预览的截断长度。
	PreviewLength int
}

// DefaultRetrieverConfig 返回默认检索配置。
func DefaultRetrieverConfig(collection string) *RetrieverConfig {
	return &RetrieverConfig{
		TopK:           10,
		ScoreThreshold: 0.25,
		Collection:     collection,
		PreviewLength:  100,
	}
}

// RetrievalResult 一次检索的完整产出。
type RetrievalResult struct {
	// Context 按来源分块标注的上下文文本，供提示词拼装。
	Context string
	// Sources 命中来源的溯源记录，按分数降序。
	Sources []model.SourceRef
	// Stats 聚合统计。
	Stats *model.SearchStats
}

// analyticalPatterns 分析比较类查询的规则表，命中时建议走富合成路径。
var analyticalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`compare.*with`),
	regexp.MustCompile(`analyze.*relationship`),
	regexp.MustCompile(`what.*difference`),
	regexp.MustCompile(`how.*relate`),
	regexp.MustCompile(`connection.*between`),
	regexp.MustCompile(`impact.*of`),
}

// Retriever 负责相似度检索与溯源打包。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Retrieve 向量检索并打包上下文。无命中不是错误，返回空结果集，
// 由合成器决定回退路径。
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievalResult, error) {
	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := r.store.Search(ctx, r.config.Collection, embedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// 存储层按分数降序返回，这里再卡一次阈值
	filtered := make([]*store.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= r.config.ScoreThreshold {
			filtered = append(filtered, hit)
		}
	}

	result := &RetrievalResult{
		Sources: []model.SourceRef{},
		Stats: &model.SearchStats{
			ChunkTypes: map[string]int{},
		},
	}
	if len(filtered) == 0 {
		logger.Infow("no results above threshold",
			"question", question,
			"threshold", r.config.ScoreThreshold,
		)
		return result, nil
	}

	var contextBuilder strings.Builder
	var scoreSum, relevanceSum float64

	for i, hit := range filtered {
		content := strings.TrimSpace(hit.Content)
		if content == "" {
			continue
		}

		contextBuilder.WriteString(fmt.Sprintf("\n--- SOURCE %d: %s | Page %d | Score: %.3f ---\n",
			i+1, hit.Meta.Filename, hit.Meta.Page, hit.Score))
		contextBuilder.WriteString(content)
		contextBuilder.WriteString("\n")

		result.Sources = append(result.Sources, model.SourceRef{
			Filename:   hit.Meta.Filename,
			Page:       hit.Meta.Page,
			ChunkIndex: hit.Meta.ChunkIndex,
			ChunkType:  hit.Meta.ChunkType,
			Score:      hit.Score,
			Content:    preview(content, r.config.PreviewLength),
		})

		result.Stats.ChunkTypes[hit.Meta.ChunkType]++
		scoreSum += hit.Score
		relevanceSum += hit.Meta.AcademicRelevance
		if hit.Score > result.Stats.BestScore {
			result.Stats.BestScore = hit.Score
		}
	}

	result.Context = contextBuilder.String()
	result.Stats.TotalSources = len(result.Sources)
	if n := len(result.Sources); n > 0 {
		result.Stats.AvgScore = scoreSum / float64(n)
		result.Stats.AcademicRelevance = relevanceSum / float64(n)
	}

	logger.Infow("retrieval completed",
		"question", question,
		"sources", result.Stats.TotalSources,
		"best_score", result.Stats.BestScore,
	)
	return result, nil
}

// ShouldUseDirect 判断是否建议走更充分的合成路径。
// 仅作路由建议，两条路径最终收敛到同一合成接口。
func (r *Retriever) ShouldUseDirect(question string, sources []model.SourceRef) bool {
	if len(sources) >= 3 {
		for _, source := range sources {
			if source.Score > 0.7 {
				return true
			}
		}
	}

	queryLower := strings.ToLower(question)
	for _, pattern := range analyticalPatterns {
		if pattern.MatchString(queryLower) {
			return true
		}
	}
	return false
}

// preview 截断来源内容作预览。
func preview(content string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	return textutil.TruncateString(content, maxLen) + "..."
}
