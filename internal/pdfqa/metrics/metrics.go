// Package metrics 提供 pdfqa 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics pdfqa 服务业务指标。
type Metrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesGeneric     uint64 // 通用类查询次数
	queriesSpecific    uint64 // 具体类查询次数
	queriesNoContext   uint64 // 无文档回退次数
	queriesCacheHits   uint64 // 查询缓存命中次数
	queriesCacheMisses uint64 // 查询缓存未命中次数
	queriesErrors      uint64 // 查询错误次数

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalDuration float64 // 检索总耗时（秒）
	retrievalErrors   uint64  // 检索错误次数

	// LLM 调用指标
	llmCallsTotal       uint64  // LLM 总调用次数
	llmCallsDuration    float64 // LLM 调用总耗时（秒）
	llmCallsErrors      uint64  // LLM 调用错误次数
	llmTokensPrompt     uint64  // Prompt tokens 总数
	llmTokensCompletion uint64  // Completion tokens 总数

	// 索引指标
	documentsIndexed uint64 // 已索引文档数
	chunksIndexed    uint64 // 已索引分块数
	indexRetries     uint64 // 批次上传重试次数
	indexErrors      uint64 // 索引错误次数
	documentsDeleted uint64 // 已删除文档数

	startTime  time.Time
	durationMu sync.Mutex
}

// 全局指标实例。
var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Get 获取全局指标实例。
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordQuery 记录查询及其分类结果。
// queryType 为 generic、specific 或 no_context。
func (m *Metrics) RecordQuery(queryType string, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	switch queryType {
	case "generic":
		atomic.AddUint64(&m.queriesGeneric, 1)
	case "specific":
		atomic.AddUint64(&m.queriesSpecific, 1)
	case "no_context":
		atomic.AddUint64(&m.queriesNoContext, 1)
	}
}

// RecordCacheLookup 记录查询缓存查找结果。
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *Metrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall 记录 LLM 调用。
func (m *Metrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()

	if promptTokens > 0 {
		atomic.AddUint64(&m.llmTokensPrompt, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.llmTokensCompletion, uint64(completionTokens))
	}
}

// RecordIndexing 记录索引操作。
func (m *Metrics) RecordIndexing(documents, chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIndexed, uint64(documents))
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
}

// RecordIndexRetry 记录批次上传重试。
func (m *Metrics) RecordIndexRetry() {
	atomic.AddUint64(&m.indexRetries, 1)
}

// RecordDocumentDeleted 记录文档删除。
func (m *Metrics) RecordDocumentDeleted() {
	atomic.AddUint64(&m.documentsDeleted, 1)
}

// counter 输出单个 counter 指标。
func counter(sb *strings.Builder, prefix, name, help string, value uint64) {
	sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
	sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
}

// gauge 输出单个 gauge 指标。
func gauge(sb *strings.Builder, prefix, name, help string, value float64) {
	sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
	sb.WriteString(fmt.Sprintf("%s_%s %.6f\n\n", prefix, name, value))
}

// Export 导出 Prometheus 格式指标。
func (m *Metrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter(&sb, prefix, "queries_total", "Total number of queries.", atomic.LoadUint64(&m.queriesTotal))
	counter(&sb, prefix, "queries_generic_total", "Number of generic document queries.", atomic.LoadUint64(&m.queriesGeneric))
	counter(&sb, prefix, "queries_specific_total", "Number of specific retrieval queries.", atomic.LoadUint64(&m.queriesSpecific))
	counter(&sb, prefix, "queries_no_context_total", "Number of queries answered without any document.", atomic.LoadUint64(&m.queriesNoContext))
	counter(&sb, prefix, "queries_cache_hits_total", "Number of query cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	counter(&sb, prefix, "queries_cache_misses_total", "Number of query cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	counter(&sb, prefix, "queries_errors_total", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	total := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}
	gauge(&sb, prefix, "cache_hit_rate", "Query cache hit rate (0-1).", cacheHitRate)

	counter(&sb, prefix, "retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	counter(&sb, prefix, "retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	gauge(&sb, prefix, "retrieval_duration_seconds_total", "Total retrieval duration.", retrievalDuration)

	counter(&sb, prefix, "llm_calls_total", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	gauge(&sb, prefix, "llm_calls_duration_seconds_total", "Total LLM call duration.", llmDuration)
	counter(&sb, prefix, "llm_calls_errors_total", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))
	counter(&sb, prefix, "llm_tokens_prompt_total", "Total prompt tokens.", atomic.LoadUint64(&m.llmTokensPrompt))
	counter(&sb, prefix, "llm_tokens_completion_total", "Total completion tokens.", atomic.LoadUint64(&m.llmTokensCompletion))

	counter(&sb, prefix, "documents_indexed_total", "Total documents indexed.", atomic.LoadUint64(&m.documentsIndexed))
	counter(&sb, prefix, "chunks_indexed_total", "Total chunks indexed.", atomic.LoadUint64(&m.chunksIndexed))
	counter(&sb, prefix, "index_retries_total", "Number of batch upload retries.", atomic.LoadUint64(&m.indexRetries))
	counter(&sb, prefix, "index_errors_total", "Number of indexing errors.", atomic.LoadUint64(&m.indexErrors))
	counter(&sb, prefix, "documents_deleted_total", "Total documents deleted.", atomic.LoadUint64(&m.documentsDeleted))

	gauge(&sb, prefix, "uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *Metrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheTotal := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"generic":        atomic.LoadUint64(&m.queriesGeneric),
			"specific":       atomic.LoadUint64(&m.queriesSpecific),
			"no_context":     atomic.LoadUint64(&m.queriesNoContext),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"errors":         atomic.LoadUint64(&m.queriesErrors),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
			"errors":              atomic.LoadUint64(&m.llmCallsErrors),
			"tokens_prompt":       atomic.LoadUint64(&m.llmTokensPrompt),
			"tokens_completion":   atomic.LoadUint64(&m.llmTokensCompletion),
		},
		"indexing": map[string]interface{}{
			"documents_indexed": atomic.LoadUint64(&m.documentsIndexed),
			"chunks_indexed":    atomic.LoadUint64(&m.chunksIndexed),
			"retries":           atomic.LoadUint64(&m.indexRetries),
			"errors":            atomic.LoadUint64(&m.indexErrors),
			"documents_deleted": atomic.LoadUint64(&m.documentsDeleted),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *Metrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesGeneric, 0)
	atomic.StoreUint64(&m.queriesSpecific, 0)
	atomic.StoreUint64(&m.queriesNoContext, 0)
	atomic.StoreUint64(&m.queriesCacheHits, 0)
	atomic.StoreUint64(&m.queriesCacheMisses, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.llmTokensPrompt, 0)
	atomic.StoreUint64(&m.llmTokensCompletion, 0)
	atomic.StoreUint64(&m.documentsIndexed, 0)
	atomic.StoreUint64(&m.chunksIndexed, 0)
	atomic.StoreUint64(&m.indexRetries, 0)
	atomic.StoreUint64(&m.indexErrors, 0)
	atomic.StoreUint64(&m.documentsDeleted, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
