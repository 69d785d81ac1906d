// Package options contains flags and options for initializing the pdfqa server.
package options

import (
	logopt "github.com/kart-io/logger/option"
	"github.com/spf13/pflag"

	"github.com/miankhizer64/Quest-Gen/internal/pdfqa"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// Server contains HTTP server configuration.
	Server *pdfqa.ServerOptions `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopt.LogOption `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	Milvus *pdfqa.MilvusOptions `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *pdfqa.LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *pdfqa.LLMProviderOptions `json:"chat" mapstructure:"chat"`

	// Pipeline contains indexing and retrieval configuration.
	Pipeline *pdfqa.PipelineOptions `json:"pipeline" mapstructure:"pipeline"`

	// Cache contains query cache configuration.
	Cache *pdfqa.CacheOptions `json:"cache" mapstructure:"cache"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	// 默认 embedding 配置
	embeddingOpts := pdfqa.NewLLMProviderOptions()
	embeddingOpts.Model = "nomic-embed-text"

	// 默认 chat 配置
	chatOpts := pdfqa.NewLLMProviderOptions()
	chatOpts.Model = "llama3.1:8b"

	return &ServerOptions{
		Server:    pdfqa.NewServerOptions(),
		Log:       logopt.DefaultLogOption(),
		Milvus:    pdfqa.NewMilvusOptions(),
		Embedding: embeddingOpts,
		Chat:      chatOpts,
		Pipeline:  pdfqa.NewPipelineOptions(),
		Cache:     pdfqa.NewCacheOptions(),
	}
}

// AddFlags adds all server flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.Server.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Pipeline.AddFlags(fs)
	o.Cache.AddFlags(fs)
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	if err := o.Server.Validate(); err != nil {
		return err
	}
	if err := o.Milvus.Validate(); err != nil {
		return err
	}
	if err := o.Embedding.Validate("embedding"); err != nil {
		return err
	}
	if err := o.Chat.Validate("chat"); err != nil {
		return err
	}
	if err := o.Pipeline.Validate(); err != nil {
		return err
	}
	return o.Cache.Validate()
}

// Config builds a pdfqa.Config based on ServerOptions.
func (o *ServerOptions) Config() (*pdfqa.Config, error) {
	return &pdfqa.Config{
		ServerOptions:    o.Server,
		LogOptions:       o.Log,
		MilvusOptions:    o.Milvus,
		EmbeddingOptions: o.Embedding,
		ChatOptions:      o.Chat,
		PipelineOptions:  o.Pipeline,
		CacheOptions:     o.Cache,
	}, nil
}
