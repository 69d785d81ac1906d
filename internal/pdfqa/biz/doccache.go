package biz

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/miankhizer64/Quest-Gen/internal/model"
)

// DocumentCache 进程内文档全文缓存。
// 按文件名保存分块后重组的全文，供全文类查询绕过向量检索直接取用。
// 与向量库的双写不做事务保证，属已知一致性窗口。
type DocumentCache struct {
	mu         sync.RWMutex
	docs       map[string]*model.Document
	mostRecent string
	// lastStamp 保证时间戳严格递增，避免同刻写入产生的最近者歧义。
	lastStamp time.Time
}

// DocumentInfo 缓存条目的概要信息。
type DocumentInfo struct {
	Filename   string    `json:"filename"`
	Chunks     int       `json:"chunks"`
	Pages      int       `json:"pages"`
	Characters int       `json:"characters"`
	StoredAt   time.Time `json:"stored_at"`
}

// NewDocumentCache 创建文档缓存。
func NewDocumentCache() *DocumentCache {
	return &DocumentCache{
		docs: make(map[string]*model.Document),
	}
}

// nextStamp 返回严格递增的时间戳。
func (c *DocumentCache) nextStamp() time.Time {
	now := time.Now()
	if !now.After(c.lastStamp) {
		now = c.lastStamp.Add(time.Nanosecond)
	}
	c.lastStamp = now
	return now
}

// Put 写入或覆盖一个文档。全文为分块文本的空格连接。
func (c *DocumentCache) Put(filename string, chunks []model.Chunk, pages int) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc := &model.Document{
		Filename: filename,
		FullText: strings.Join(texts, " "),
		Chunks:   chunks,
		Pages:    pages,
		StoredAt: c.nextStamp(),
	}
	c.docs[filename] = doc
	c.mostRecent = filename

	logger.Infow("document cached",
		"filename", filename,
		"chunks", len(chunks),
		"characters", len(doc.FullText),
		"cached_total", len(c.docs),
	)
}

// MostRecent 返回最近写入文档的全文和文件名。缓存为空时返回空串。
func (c *DocumentCache) MostRecent() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mostRecent == "" {
		return "", ""
	}
	doc, ok := c.docs[c.mostRecent]
	if !ok {
		return "", ""
	}
	return doc.FullText, doc.Filename
}

// Resolve 按选择器取文档全文与实际文件名。精确匹配优先，
// 未命中时回退为大小写不敏感的子串匹配，多个子串命中时
// 返回哪个不作保证。未找到返回两个空串。
func (c *DocumentCache) Resolve(selector string) (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if doc, ok := c.docs[selector]; ok {
		return doc.FullText, doc.Filename
	}

	needle := strings.ToLower(selector)
	for name, doc := range c.docs {
		if strings.Contains(strings.ToLower(name), needle) {
			return doc.FullText, doc.Filename
		}
	}
	return "", ""
}

// Get 按文件名取文档全文，匹配规则同 Resolve。
func (c *DocumentCache) Get(filename string) (string, bool) {
	text, name := c.Resolve(filename)
	return text, name != ""
}

// GetDocument 按文件名取完整缓存条目（仅精确匹配）。
func (c *DocumentCache) GetDocument(filename string) (*model.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[filename]
	return doc, ok
}

// Delete 删除指定文档。被删者恰为最近文档时，最近指针回退到
// 余下条目中时间戳最大者。
func (c *DocumentCache) Delete(filename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[filename]; !ok {
		return false
	}
	delete(c.docs, filename)

	if c.mostRecent == filename {
		c.mostRecent = ""
		var latest time.Time
		for name, doc := range c.docs {
			if doc.StoredAt.After(latest) {
				latest = doc.StoredAt
				c.mostRecent = name
			}
		}
	}
	return true
}

// Clear 清空缓存并重置最近指针。
func (c *DocumentCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.docs)
	c.docs = make(map[string]*model.Document)
	c.mostRecent = ""

	logger.Infow("document cache cleared", "removed", n)
	return n
}

// List 返回所有缓存条目的概要，按写入时间降序。
func (c *DocumentCache) List() []DocumentInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]DocumentInfo, 0, len(c.docs))
	for _, doc := range c.docs {
		infos = append(infos, DocumentInfo{
			Filename:   doc.Filename,
			Chunks:     len(doc.Chunks),
			Pages:      doc.Pages,
			Characters: len(doc.FullText),
			StoredAt:   doc.StoredAt,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StoredAt.After(infos[j].StoredAt)
	})
	return infos
}

// Len 返回缓存条目数。
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
