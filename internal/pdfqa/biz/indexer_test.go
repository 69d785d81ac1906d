package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miankhizer64/Quest-Gen/internal/model"
	"github.com/miankhizer64/Quest-Gen/internal/pkg/pdfutil"
	"github.com/miankhizer64/Quest-Gen/pkg/pool"
)

func newTestIndexer(t *testing.T, fs *fakeStore) (*Indexer, *DocumentCache) {
	t.Helper()

	embedPool, err := pool.New("test-embed", pool.EmbeddingConfig())
	require.NoError(t, err)
	uploadPool, err := pool.New("test-upload", pool.IndexingConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		embedPool.Release()
		uploadPool.Release()
	})

	cache := NewDocumentCache()
	config := DefaultIndexerConfig("docs")
	config.BatchSize = 2
	return NewIndexer(fs, &fakeEmbedder{}, cache, embedPool, uploadPool, config), cache
}

func testChunks(filename string, n int) []model.Chunk {
	chunks := make([]model.Chunk, n)
	for i := range chunks {
		content := strings.Repeat("x", 10+i)
		chunks[i] = model.Chunk{
			ID:      "id-" + strings.Repeat("a", i+1),
			Content: content,
			Meta: model.ChunkMeta{
				Filename:   filename,
				ChunkIndex: i,
			},
		}
	}
	return chunks
}

func TestIndexChunksSuccess(t *testing.T) {
	fs := &fakeStore{}
	indexer, cache := newTestIndexer(t, fs)

	result, err := indexer.IndexChunks(context.Background(), "paper.pdf", testChunks("paper.pdf", 5), 3, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "paper.pdf", result.Filename)
	assert.Equal(t, 5, result.Chunks)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 5, fs.recordCount())

	// 缓存写穿，全文可用
	_, ok := cache.Get("paper.pdf")
	assert.True(t, ok)
}

func TestIndexChunksCacheWrittenBeforeUpload(t *testing.T) {
	// 上传永久失败，缓存仍应包含文档
	fs := &fakeStore{insertFailures: 100}
	indexer, cache := newTestIndexer(t, fs)
	indexer.config.BatchSize = 10

	_, err := indexer.IndexChunks(context.Background(), "doc.pdf", testChunks("doc.pdf", 2), 1, time.Now())
	require.Error(t, err)

	text, ok := cache.Get("doc.pdf")
	assert.True(t, ok)
	assert.NotEmpty(t, text)
}

func TestUploadRetriesThenSucceeds(t *testing.T) {
	// 前两次上传失败，第三次成功
	fs := &fakeStore{insertFailures: 2}
	indexer, _ := newTestIndexer(t, fs)
	indexer.config.BatchSize = 10

	result, err := indexer.IndexChunks(context.Background(), "doc.pdf", testChunks("doc.pdf", 3), 1, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Chunks)
	// 最终仅写入一份，无重复
	assert.Equal(t, 3, fs.recordCount())
	assert.Equal(t, 3, fs.insertCalls)
}

func TestUploadExhaustsRetries(t *testing.T) {
	fs := &fakeStore{insertFailures: 3}
	indexer, _ := newTestIndexer(t, fs)
	indexer.config.BatchSize = 10

	_, err := indexer.IndexChunks(context.Background(), "doc.pdf", testChunks("doc.pdf", 2), 1, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload vectors")
	// 三次尝试后放弃
	assert.Equal(t, 3, fs.insertCalls)
	assert.Equal(t, 0, fs.recordCount())
}

func TestChunkPagesMetadata(t *testing.T) {
	indexer, _ := newTestIndexer(t, &fakeStore{})
	indexer.config.ChunkSize = 50
	indexer.config.ChunkOverlap = 10

	pages := []pdfutil.Page{
		{Number: 1, Text: "This abstract presents a research study with experimental data and analysis."},
		{Number: 2, Text: "The references and bibliography follow."},
	}

	chunks := indexer.chunkPages(pages, "paper.pdf")
	require.NotEmpty(t, chunks)

	seen := map[string]bool{}
	for i, chunk := range chunks {
		// 块索引在整篇文档内连续
		assert.Equal(t, i, chunk.Meta.ChunkIndex)
		assert.Equal(t, "paper.pdf", chunk.Meta.Filename)
		assert.Equal(t, len(chunk.Content), chunk.Meta.ContentLength)
		assert.NotEmpty(t, chunk.Meta.ChunkType)
		assert.NotEmpty(t, chunk.Meta.UploadTimestamp)
		// 点 ID 唯一
		require.NotEmpty(t, chunk.ID)
		assert.False(t, seen[chunk.ID])
		seen[chunk.ID] = true
	}

	// 首页含 abstract 关键词
	assert.Equal(t, "summary", chunks[0].Meta.ChunkType)
	assert.Equal(t, 1, chunks[0].Meta.Page)
}

func TestChunkPagesEmptyText(t *testing.T) {
	indexer, _ := newTestIndexer(t, &fakeStore{})

	chunks := indexer.chunkPages([]pdfutil.Page{{Number: 1, Text: "   "}}, "empty.pdf")
	assert.Empty(t, chunks)
}

func TestEmbedParallelPreservesOrder(t *testing.T) {
	indexer, _ := newTestIndexer(t, &fakeStore{})
	indexer.config.BatchSize = 2

	chunks := testChunks("doc.pdf", 7)
	embeddings, err := indexer.embedParallel(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, embeddings, 7)

	// fakeEmbedder 的首维编码文本长度，借此验证顺序重组
	for i, chunk := range chunks {
		assert.Equal(t, float32(len(chunk.Content)), embeddings[i][0])
	}
}

func TestEmbedParallelErrorPropagates(t *testing.T) {
	fs := &fakeStore{}
	indexer, _ := newTestIndexer(t, fs)
	indexer.embedProvider = &fakeEmbedder{err: assert.AnError}

	_, err := indexer.IndexChunks(context.Background(), "doc.pdf", testChunks("doc.pdf", 2), 1, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate embeddings")
	assert.Equal(t, 0, fs.recordCount())
}
