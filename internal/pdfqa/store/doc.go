// Package store 提供 pdfqa 服务的向量存储层。
//
// 该包定义了向量存储的接口抽象和基于 Milvus 的实现，
// 支持文档块的写入、相似度检索、按文件删除和统计功能。
package store
