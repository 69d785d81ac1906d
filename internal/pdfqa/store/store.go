package store

import (
	"context"

	"github.com/miankhizer64/Quest-Gen/internal/model"
)

// Record 表示一条待写入向量库的文档块记录。
type Record struct {
	// ID 块的唯一标识（UUID）。
	ID string
	// Content 块文本内容。
	Content string
	// Embedding 嵌入向量。
	Embedding []float32
	// Meta 块元数据，随 payload 一起写入。
	Meta model.ChunkMeta
}

// SearchResult 表示一条检索结果。
type SearchResult struct {
	// ID 块的唯一标识。
	ID string
	// Content 块文本内容。
	Content string
	// Score 余弦相似度分数。
	Score float64
	// Meta 块元数据。
	Meta model.ChunkMeta
}

// CollectionConfig 集合配置。
type CollectionConfig struct {
	// Name 集合名称。
	Name string
	// Description 集合描述。
	Description string
	// Dimension 向量维度。
	Dimension int
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// EnsureCollection 创建集合（已存在时为空操作）。
	EnsureCollection(ctx context.Context, config *CollectionConfig) error

	// Insert 批量插入文档块记录。
	Insert(ctx context.Context, collection string, records []*Record) error

	// Search 向量相似度搜索，返回按分数降序的前 topK 条结果。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// DeleteByFilename 删除指定文件名的全部块，返回删除数量。
	DeleteByFilename(ctx context.Context, collection string, filename string) (int64, error)

	// Stats 获取集合内的实体数量。
	Stats(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
