package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// MilvusConfig Milvus 连接配置。
type MilvusConfig struct {
	Address  string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvusclient.Client
}

// NewMilvusStore 连接 Milvus 并创建存储实例。
func NewMilvusStore(cfg *MilvusConfig) (*MilvusStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("milvus config is nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &MilvusStore{client: c}, nil
}

// NewMilvusStoreWithClient 使用已有客户端创建存储实例。
func NewMilvusStoreWithClient(client *milvusclient.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection 创建集合、向量索引并加载到内存。
// 主键为块 UUID（varchar），元数据字段与检索 payload 一一对应。
func (s *MilvusStore) EnsureCollection(ctx context.Context, config *CollectionConfig) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(config.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	collSchema := entity.NewSchema().
		WithName(config.Name).
		WithDescription(config.Description)

	collSchema.WithField(
		entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(config.Dimension)),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("content").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("filename").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(512),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("page").
			WithDataType(entity.FieldTypeInt64),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("chunk_index").
			WithDataType(entity.FieldTypeInt64),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("upload_timestamp").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("content_length").
			WithDataType(entity.FieldTypeInt64),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("chunk_type").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(32),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("academic_relevance").
			WithDataType(entity.FieldTypeDouble),
	)

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(config.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// 余弦相似度索引，分数即归一化相似度
	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(config.Name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(config.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// Insert 批量插入文档块记录并刷新，保证写入后立即可检索。
func (s *MilvusStore) Insert(ctx context.Context, collection string, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]string, n)
	embeddings := make([][]float32, n)
	contents := make([]string, n)
	filenames := make([]string, n)
	pages := make([]int64, n)
	chunkIndexes := make([]int64, n)
	timestamps := make([]string, n)
	contentLengths := make([]int64, n)
	chunkTypes := make([]string, n)
	relevances := make([]float64, n)

	for i, r := range records {
		ids[i] = r.ID
		embeddings[i] = r.Embedding
		contents[i] = r.Content
		filenames[i] = r.Meta.Filename
		pages[i] = int64(r.Meta.Page)
		chunkIndexes[i] = int64(r.Meta.ChunkIndex)
		timestamps[i] = r.Meta.UploadTimestamp
		contentLengths[i] = int64(r.Meta.ContentLength)
		chunkTypes[i] = r.Meta.ChunkType
		relevances[i] = r.Meta.AcademicRelevance
	}

	columns := []column.Column{
		column.NewColumnVarChar("id", ids),
		column.NewColumnFloatVector("embedding", len(embeddings[0]), embeddings),
		column.NewColumnVarChar("content", contents),
		column.NewColumnVarChar("filename", filenames),
		column.NewColumnInt64("page", pages),
		column.NewColumnInt64("chunk_index", chunkIndexes),
		column.NewColumnVarChar("upload_timestamp", timestamps),
		column.NewColumnInt64("content_length", contentLengths),
		column.NewColumnVarChar("chunk_type", chunkTypes),
		column.NewColumnDouble("academic_relevance", relevances),
	}

	if _, err := s.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

var outputFields = []string{
	"content", "filename", "page", "chunk_index",
	"upload_timestamp", "content_length", "chunk_type", "academic_relevance",
}

// Search 执行向量相似度搜索。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	searchVectors := []entity.Vector{entity.FloatVector(embedding)}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		searchVectors,
	).WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []*SearchResult{}, nil
	}

	searchResults := make([]*SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		result := &SearchResult{
			Score: float64(results[0].Scores[i]),
		}

		if idCol, ok := results[0].IDs.(*column.ColumnVarChar); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				switch col.Name() {
				case "content":
					result.Content = col.Data()[i]
				case "filename":
					result.Meta.Filename = col.Data()[i]
				case "upload_timestamp":
					result.Meta.UploadTimestamp = col.Data()[i]
				case "chunk_type":
					result.Meta.ChunkType = col.Data()[i]
				}
			case *column.ColumnInt64:
				switch col.Name() {
				case "page":
					result.Meta.Page = int(col.Data()[i])
				case "chunk_index":
					result.Meta.ChunkIndex = int(col.Data()[i])
				case "content_length":
					result.Meta.ContentLength = int(col.Data()[i])
				}
			case *column.ColumnDouble:
				if col.Name() == "academic_relevance" {
					result.Meta.AcademicRelevance = col.Data()[i]
				}
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// DeleteByFilename 按文件名删除全部块。
func (s *MilvusStore) DeleteByFilename(ctx context.Context, collection string, filename string) (int64, error) {
	expr := fmt.Sprintf(`filename == "%s"`, escapeExpr(filename))
	result, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr))
	if err != nil {
		return 0, fmt.Errorf("failed to delete by filename: %w", err)
	}
	return result.DeleteCount, nil
}

// Stats 获取集合内的实体数量。
func (s *MilvusStore) Stats(ctx context.Context, collection string) (int64, error) {
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// escapeExpr 转义过滤表达式中的引号和反斜杠。
func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
