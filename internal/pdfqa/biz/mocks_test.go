package biz

import (
	"context"
	"fmt"
	"sync"

	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/store"
	"github.com/miankhizer64/Quest-Gen/pkg/llm"
)

// fakeEmbedder 返回固定维度的确定性向量。
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

// fakeChat 记录每次生成请求，返回配置的应答或错误。
type fakeChat struct {
	mu       sync.Mutex
	requests []*llm.GenerateRequest
	response string
	err      error
}

func (f *fakeChat) Generate(_ context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	content := f.response
	if content == "" {
		content = "generated answer"
	}
	return &llm.GenerateResponse{
		Content:    content,
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeChat) lastRequest() *llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// fakeStore 内存向量库桩。insertFailures 控制 Insert 先失败几次，
// 用于验证重试策略。
type fakeStore struct {
	mu             sync.Mutex
	records        []*store.Record
	searchResults  []*store.SearchResult
	searchErr      error
	insertFailures int
	insertCalls    int
	deleted        []string
}

func (f *fakeStore) EnsureCollection(_ context.Context, _ *store.CollectionConfig) error {
	return nil
}

func (f *fakeStore) Insert(_ context.Context, _ string, records []*store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertFailures > 0 {
		f.insertFailures--
		return fmt.Errorf("transient upload failure")
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, _ int) ([]*store.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeStore) DeleteByFilename(_ context.Context, _ string, filename string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, filename)
	var remaining []*store.Record
	var removed int64
	for _, record := range f.records {
		if record.Meta.Filename == filename {
			removed++
			continue
		}
		remaining = append(remaining, record)
	}
	f.records = remaining
	return removed, nil
}

func (f *fakeStore) Stats(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.records)), nil
}

func (f *fakeStore) Close(_ context.Context) error { return nil }

func (f *fakeStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

var (
	_ store.VectorStore     = (*fakeStore)(nil)
	_ llm.EmbeddingProvider = (*fakeEmbedder)(nil)
	_ llm.ChatProvider      = (*fakeChat)(nil)
)
