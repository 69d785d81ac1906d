// Package biz 提供 PDF 问答服务的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Classifier: 查询分类（全文类 / 窄检索类）
//   - DocumentCache: 全文文档缓存，维护最近上传指针
//   - Indexer: 文档索引（解析、分块、嵌入、向量写入）
//   - Retriever: 向量检索与来源标注上下文构建
//   - Synthesizer: LLM 回答生成与风格化格式输出
//   - QueryCache: Redis 查询结果缓存
//   - Service: 组合以上组件，提供统一的服务接口
package biz
