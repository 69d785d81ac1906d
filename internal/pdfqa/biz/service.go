package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/miankhizer64/Quest-Gen/internal/model"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/metrics"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/store"
	"github.com/miankhizer64/Quest-Gen/pkg/llm"
)

// minSpecificContext 检索上下文低于该字符数时视为证据不足，
// 走无上下文兜底生成。
const minSpecificContext = 100

// QueryRequest 一次查询的输入。
type QueryRequest struct {
	// Question 查询文本。
	Question string `json:"question"`
	// Document 可选的文档选择，空表示最近上传的文档。
	Document string `json:"document,omitempty"`
	// FormatStyle 响应格式风格，空表示 academic。
	FormatStyle string `json:"format_style,omitempty"`
	// MaxTokens 可选的输出 token 预算，0 表示用风格默认值。
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Service 定义 pdfqa 服务接口。
type Service interface {
	// Index 索引一个本地 PDF 文件。
	Index(ctx context.Context, path, filename string) (*model.IndexResult, error)
	// Query 执行查询，按查询类型选择全文或检索路径。
	Query(ctx context.Context, req *QueryRequest) (*model.QueryResult, error)
	// DeleteDocument 删除文档的向量与缓存，返回删除的向量数。
	DeleteDocument(ctx context.Context, filename string) (int64, error)
	// ListDocuments 列出已缓存的文档。
	ListDocuments() []DocumentInfo
	// ClearCaches 清空文档缓存与查询缓存。
	ClearCaches(ctx context.Context) (map[string]any, error)
	// Stats 获取知识库统计信息。
	Stats(ctx context.Context) (map[string]any, error)
}

// PDFQAService 组合分类、索引、检索与合成组件提供完整的问答服务。
type PDFQAService struct {
	classifier    *Classifier
	indexer       *Indexer
	retriever     *Retriever
	synthesizer   *Synthesizer
	docCache      *DocumentCache
	queryCache    *QueryCache
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	collection    string
	metrics       *metrics.Metrics
}

// ServiceConfig 服务配置。
type ServiceConfig struct {
	IndexerConfig     *IndexerConfig
	RetrieverConfig   *RetrieverConfig
	SynthesizerConfig *SynthesizerConfig
	QueryCacheConfig  *QueryCacheConfig
}

// NewPDFQAService 创建服务实例。
func NewPDFQAService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	docCache *DocumentCache,
	queryCache *QueryCache,
	indexer *Indexer,
	config *ServiceConfig,
) *PDFQAService {
	classifier := NewClassifier()
	return &PDFQAService{
		classifier:    classifier,
		indexer:       indexer,
		retriever:     NewRetriever(vectorStore, embedProvider, config.RetrieverConfig),
		synthesizer:   NewSynthesizer(chatProvider, classifier, config.SynthesizerConfig),
		docCache:      docCache,
		queryCache:    queryCache,
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		collection:    config.IndexerConfig.Collection,
		metrics:       metrics.Get(),
	}
}

// Index 索引一个本地 PDF 文件。
func (s *PDFQAService) Index(ctx context.Context, path, filename string) (*model.IndexResult, error) {
	return s.indexer.IndexFile(ctx, path, filename)
}

// Query 执行查询。LLM 与检索层的错误不会从这里传播，答案永远是字符串。
func (s *PDFQAService) Query(ctx context.Context, req *QueryRequest) (*model.QueryResult, error) {
	start := time.Now()

	style := req.FormatStyle
	if style == "" {
		style = StyleAcademic
	}

	generic := s.classifier.IsGeneric(req.Question)

	// 全文路径的缓存键使用解析后的真实文件名而非原始选择器，
	// 避免最近文档变化后命中针对旧文档的陈旧条目
	cacheDoc := req.Document
	var fullText, filename string
	if generic {
		fullText, filename = s.resolveDocument(req.Document)
		cacheDoc = filename
	}

	// 1. 查询缓存
	if s.queryCache != nil {
		cached, err := s.queryCache.Get(ctx, req.Question, style, cacheDoc)
		if err == nil && cached != nil {
			s.metrics.RecordCacheLookup(true)
			s.metrics.RecordQuery(cached.QueryType, nil)
			return cached, nil
		}
		if err == nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	var result *model.QueryResult
	if generic {
		result = s.queryGeneric(ctx, req, fullText, filename)
	} else {
		result = s.querySpecific(ctx, req, style)
	}

	result.FormatStyle = style
	result.ProcessingTime = time.Since(start).Seconds()

	// 写入查询缓存，失败不影响正常返回。
	// 无文档引导文本不缓存，上传后同一问题应立即拿到真实答案。
	if s.queryCache != nil && result.QueryType != QueryTypeNoContext {
		_ = s.queryCache.Set(ctx, req.Question, style, cacheDoc, result)
	}

	s.metrics.RecordQuery(result.QueryType, nil)
	return result, nil
}

// resolveDocument 解析全文路径要使用的文档。显式选择优先，
// 未命中时退回最近上传的文档。
func (s *PDFQAService) resolveDocument(selector string) (string, string) {
	if selector != "" {
		if text, name := s.docCache.Resolve(selector); name != "" {
			return text, name
		}
	}
	return s.docCache.MostRecent()
}

// queryGeneric 全文路径。缓存中无任何可用文档时返回固定引导文本，
// 不调用 LLM。
func (s *PDFQAService) queryGeneric(ctx context.Context, req *QueryRequest, fullText, filename string) *model.QueryResult {
	if strings.TrimSpace(fullText) == "" {
		logger.Infow("generic query with empty cache", "question", req.Question)
		return &model.QueryResult{
			Answer:    s.synthesizer.NoPDFResponse(req.Question),
			QueryType: QueryTypeNoContext,
		}
	}

	logger.Infow("generic query via document cache",
		"question", req.Question,
		"filename", filename,
	)
	return &model.QueryResult{
		Answer:    s.synthesizer.AnswerGeneric(ctx, req.Question, fullText, filename, req.MaxTokens),
		QueryType: QueryTypeGeneric,
	}
}

// querySpecific 窄检索路径。检索失败不向调用方传播，
// 降级为无上下文回答，检索为空也不是错误。
func (s *PDFQAService) querySpecific(ctx context.Context, req *QueryRequest, style string) *model.QueryResult {
	retrievalStart := time.Now()
	retrieval, err := s.retriever.Retrieve(ctx, req.Question)
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		logger.Warnw("retrieval failed, answering without context",
			"question", req.Question,
			"error", err,
		)
		return &model.QueryResult{
			Answer:    s.synthesizer.AnswerNoContext(ctx, req.Question, style, req.MaxTokens),
			QueryType: QueryTypeSpecific,
		}
	}

	usedDirect := s.retriever.ShouldUseDirect(req.Question, retrieval.Sources)

	var answer string
	if len(strings.TrimSpace(retrieval.Context)) > minSpecificContext {
		answer = s.synthesizer.AnswerSpecific(ctx, req.Question, retrieval, style, req.MaxTokens)
	} else {
		// 证据不足，空上下文兜底生成
		answer = s.synthesizer.AnswerNoContext(ctx, req.Question, style, req.MaxTokens)
	}

	formatted := s.synthesizer.FormatByStyle(answer, retrieval.Sources, retrieval.Stats, style, time.Since(retrievalStart))

	return &model.QueryResult{
		Answer:     formatted,
		QueryType:  QueryTypeSpecific,
		Sources:    retrieval.Sources,
		Stats:      retrieval.Stats,
		UsedDirect: usedDirect,
	}
}

// DeleteDocument 删除文档的向量与缓存条目。
func (s *PDFQAService) DeleteDocument(ctx context.Context, filename string) (int64, error) {
	deleted, err := s.store.DeleteByFilename(ctx, s.collection, filename)
	if err != nil {
		return 0, err
	}

	s.docCache.Delete(filename)
	s.metrics.RecordDocumentDeleted()

	logger.Infow("document deleted", "filename", filename, "vectors_removed", deleted)
	return deleted, nil
}

// ListDocuments 列出已缓存的文档。
func (s *PDFQAService) ListDocuments() []DocumentInfo {
	return s.docCache.List()
}

// ClearCaches 清空文档缓存与查询缓存。
func (s *PDFQAService) ClearCaches(ctx context.Context) (map[string]any, error) {
	removed := s.docCache.Clear()

	if s.queryCache != nil {
		if err := s.queryCache.Clear(ctx); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"documents_removed": removed,
	}, nil
}

// Stats 获取知识库统计信息。
func (s *PDFQAService) Stats(ctx context.Context) (map[string]any, error) {
	count, err := s.store.Stats(ctx, s.collection)
	if err != nil {
		return nil, err
	}

	stats := map[string]any{
		"collection":       s.collection,
		"vector_count":     count,
		"cached_documents": s.docCache.Len(),
		"embed_provider":   s.embedProvider.Name(),
		"chat_provider":    s.chatProvider.Name(),
	}

	if _, name := s.docCache.MostRecent(); name != "" {
		stats["most_recent_document"] = name
	}

	if s.queryCache != nil {
		if cacheStats, err := s.queryCache.GetStats(ctx); err == nil {
			stats["query_cache"] = cacheStats
		}
	}

	stats["metrics"] = s.metrics.Stats()
	return stats, nil
}

// 确保 PDFQAService 实现了 Service 接口。
var _ Service = (*PDFQAService)(nil)
