package biz

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/miankhizer64/Quest-Gen/internal/model"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/metrics"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/store"
	"github.com/miankhizer64/Quest-Gen/internal/pkg/pdfutil"
	"github.com/miankhizer64/Quest-Gen/internal/pkg/textutil"
	"github.com/miankhizer64/Quest-Gen/pkg/llm"
	"github.com/miankhizer64/Quest-Gen/pkg/pool"
)

// IndexerConfig 索引管线配置。
type IndexerConfig struct {
	// ChunkSize 文本块大小（字符）。
	ChunkSize int
	// ChunkOverlap 相邻块的重叠大小（字符）。
	ChunkOverlap int
	// BatchSize 嵌入与上传的批大小。
	BatchSize int
	// Collection 集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
	// MaxUploadAttempts 单批上传的最大尝试次数。
	MaxUploadAttempts int
}

// DefaultIndexerConfig 返回默认索引配置。
func DefaultIndexerConfig(collection string) *IndexerConfig {
	return &IndexerConfig{
		ChunkSize:         1000,
		ChunkOverlap:      150,
		BatchSize:         50,
		Collection:        collection,
		EmbeddingDim:      768,
		MaxUploadAttempts: 3,
	}
}

// Indexer 文档索引管线：解析、分块、缓存写入、并行嵌入与批量上传。
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	docCache      *DocumentCache
	embedPool     *pool.Pool
	uploadPool    *pool.Pool
	config        *IndexerConfig
	metrics       *metrics.Metrics
}

// NewIndexer 创建索引管线实例。
func NewIndexer(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	docCache *DocumentCache,
	embedPool, uploadPool *pool.Pool,
	config *IndexerConfig,
) *Indexer {
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		docCache:      docCache,
		embedPool:     embedPool,
		uploadPool:    uploadPool,
		config:        config,
		metrics:       metrics.Get(),
	}
}

// IndexFile 索引一个本地 PDF 文件。
// 无可提取文本的文档视为跳过而非错误，返回零分块结果。
func (i *Indexer) IndexFile(ctx context.Context, path, filename string) (*model.IndexResult, error) {
	start := time.Now()
	logger.Infow("indexing document", "filename", filename, "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	pages, pageCount, err := pdfutil.ExtractPages(data)
	if err != nil {
		logger.Warnw("no extractable text, skipping", "filename", filename, "error", err.Error())
		return &model.IndexResult{Filename: filename, Pages: 0, Chunks: 0}, nil
	}

	chunks := i.chunkPages(pages, filename)
	if len(chunks) == 0 {
		logger.Warnw("no valid chunks created, skipping", "filename", filename)
		return &model.IndexResult{Filename: filename, Pages: pageCount, Chunks: 0}, nil
	}

	return i.IndexChunks(ctx, filename, chunks, pageCount, start)
}

// IndexChunks 索引已分块的文档。缓存写入先于任何网络调用，
// 保证向量上传缓慢或失败时全文类查询仍然可用。
func (i *Indexer) IndexChunks(ctx context.Context, filename string, chunks []model.Chunk, pageCount int, start time.Time) (*model.IndexResult, error) {
	i.docCache.Put(filename, chunks, pageCount)

	if err := i.store.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        i.config.Collection,
		Description: "pdfqa document chunks",
		Dimension:   i.config.EmbeddingDim,
	}); err != nil {
		i.metrics.RecordIndexing(0, 0, err)
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	embedStart := time.Now()
	embeddings, err := i.embedParallel(ctx, chunks)
	if err != nil {
		i.metrics.RecordIndexing(0, 0, err)
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	logger.Infow("embeddings generated",
		"filename", filename,
		"chunks", len(chunks),
		"elapsed", time.Since(embedStart).String(),
	)

	if err := i.uploadParallel(ctx, chunks, embeddings); err != nil {
		i.metrics.RecordIndexing(0, 0, err)
		return nil, fmt.Errorf("failed to upload vectors: %w", err)
	}

	elapsed := time.Since(start)
	i.metrics.RecordIndexing(1, len(chunks), nil)
	logger.Infow("document indexed",
		"filename", filename,
		"chunks", len(chunks),
		"pages", pageCount,
		"elapsed", elapsed.String(),
	)

	return &model.IndexResult{
		Filename:   filename,
		Chunks:     len(chunks),
		Pages:      pageCount,
		ElapsedSec: elapsed.Seconds(),
	}, nil
}

// chunkPages 逐页分块并附加元数据。块索引在整篇文档内连续。
func (i *Indexer) chunkPages(pages []pdfutil.Page, filename string) []model.Chunk {
	uploadStamp := strconv.FormatInt(time.Now().Unix(), 10)

	var chunks []model.Chunk
	for _, page := range pages {
		for _, text := range textutil.RecursiveSplit(page.Text, i.config.ChunkSize, i.config.ChunkOverlap) {
			chunks = append(chunks, model.Chunk{
				ID:      uuid.NewString(),
				Content: text,
				Meta: model.ChunkMeta{
					Filename:          filename,
					Page:              page.Number,
					ChunkIndex:        len(chunks),
					UploadTimestamp:   uploadStamp,
					ContentLength:     len(text),
					ChunkType:         textutil.ClassifyChunkType(text),
					AcademicRelevance: textutil.AcademicRelevance(text),
				},
			})
		}
	}
	return chunks
}

// embedParallel 并行批量生成嵌入，结果按原始块顺序重组。
func (i *Indexer) embedParallel(ctx context.Context, chunks []model.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for begin := 0; begin < len(chunks); begin += i.config.BatchSize {
		end := begin + i.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		begin, end := begin, end

		wg.Add(1)
		task := func() {
			defer wg.Done()

			texts := make([]string, end-begin)
			for j := begin; j < end; j++ {
				texts[j-begin] = chunks[j].Content
			}

			vectors, err := i.embedProvider.Embed(ctx, texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			for j, vector := range vectors {
				embeddings[begin+j] = vector
			}
		}

		if err := i.embedPool.Submit(task); err != nil {
			// 池不可用时降级为同步执行
			task()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return embeddings, nil
}

// uploadParallel 并行批量上传。每批独立重试，耗尽后整篇文档索引失败，
// 已上传批次不回滚。
func (i *Indexer) uploadParallel(ctx context.Context, chunks []model.Chunk, embeddings [][]float32) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for begin := 0; begin < len(chunks); begin += i.config.BatchSize {
		end := begin + i.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		begin, end := begin, end

		wg.Add(1)
		task := func() {
			defer wg.Done()

			records := make([]*store.Record, end-begin)
			for j := begin; j < end; j++ {
				records[j-begin] = &store.Record{
					ID:        chunks[j].ID,
					Content:   chunks[j].Content,
					Embedding: embeddings[j],
					Meta:      chunks[j].Meta,
				}
			}

			if err := i.uploadBatchWithRetry(ctx, records); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}

		if err := i.uploadPool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	return firstErr
}

// uploadBatchWithRetry 带指数退避的单批上传，初始间隔 1s，上限 8s。
func (i *Indexer) uploadBatchWithRetry(ctx context.Context, records []*store.Record) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		attempts++
		err := i.store.Insert(ctx, i.config.Collection, records)
		if err != nil {
			logger.Warnw("batch upload failed",
				"attempt", attempts,
				"batch_size", len(records),
				"error", err.Error(),
			)
			if attempts < i.config.MaxUploadAttempts {
				i.metrics.RecordIndexRetry()
			}
		}
		return err
	}

	maxRetries := uint64(i.config.MaxUploadAttempts - 1)
	return backoff.Retry(operation, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), maxRetries))
}
