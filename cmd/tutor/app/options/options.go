// Package options contains flags and options for initializing the tutor server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	tutorsvc "github.com/kart-io/tutor-x/internal/tutor"
	cliflag "github.com/kart-io/tutor-x/pkg/app/cliflag"
	dbopts "github.com/kart-io/tutor-x/pkg/options/database"
	httpopts "github.com/kart-io/tutor-x/pkg/options/http"
	llmopts "github.com/kart-io/tutor-x/pkg/options/llm"
	logopts "github.com/kart-io/tutor-x/pkg/options/logger"
	milvusopts "github.com/kart-io/tutor-x/pkg/options/milvus"
	mongoopts "github.com/kart-io/tutor-x/pkg/options/mongodb"
	natsopts "github.com/kart-io/tutor-x/pkg/options/nats"
	redisopts "github.com/kart-io/tutor-x/pkg/options/redis"
	tracingopts "github.com/kart-io/tutor-x/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	HTTPOptions     *httpopts.Options        `json:"http" mapstructure:"http"`
	LogOptions      *logopts.Options         `json:"log" mapstructure:"log"`
	TracingOptions  *tracingopts.Options     `json:"tracing" mapstructure:"tracing"`
	DatabaseOptions *dbopts.Options          `json:"database" mapstructure:"database"`
	MilvusOptions   *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	RedisOptions    *redisopts.Options       `json:"redis" mapstructure:"redis"`
	MongoDBOptions  *mongoopts.Options       `json:"mongodb" mapstructure:"mongodb"`
	NATSOptions     *natsopts.Options        `json:"nats" mapstructure:"nats"`
	LLMOptions      *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`

	IngestOptions    *tutorsvc.IngestOptions    `json:"ingest" mapstructure:"ingest"`
	RetrievalOptions *tutorsvc.RetrievalOptions `json:"retrieval" mapstructure:"retrieval"`
	ParserOptions    *tutorsvc.ParserOptions    `json:"parser" mapstructure:"parser"`
	StorageOptions   *tutorsvc.StorageOptions   `json:"storage" mapstructure:"storage"`
	HandlerOptions   *tutorsvc.HandlerOptions   `json:"api" mapstructure:"api"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		DatabaseOptions:  dbopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MongoDBOptions:   mongoopts.NewOptions(),
		NATSOptions:      natsopts.NewOptions(),
		LLMOptions:       llmopts.NewProviderOptions(),
		IngestOptions:    tutorsvc.NewIngestOptions(),
		RetrievalOptions: tutorsvc.NewRetrievalOptions(),
		ParserOptions:    tutorsvc.NewParserOptions(),
		StorageOptions:   tutorsvc.NewStorageOptions(),
		HandlerOptions:   tutorsvc.NewHandlerOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MongoDBOptions.AddFlags(fss.FlagSet("mongodb"))
	o.NATSOptions.AddFlags(fss.FlagSet("nats"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.IngestOptions.AddFlags(fss.FlagSet("ingest"))
	o.RetrievalOptions.AddFlags(fss.FlagSet("retrieval"))
	o.ParserOptions.AddFlags(fss.FlagSet("parser"))
	o.StorageOptions.AddFlags(fss.FlagSet("storage"))
	o.HandlerOptions.AddFlags(fss.FlagSet("api"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.MongoDBOptions.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if err := o.LLMOptions.Complete(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid. Backends
// that are not selected are not validated.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.NATSOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.IngestOptions.Validate()...)
	errs = append(errs, o.RetrievalOptions.Validate()...)
	errs = append(errs, o.ParserOptions.Validate()...)
	errs = append(errs, o.StorageOptions.Validate()...)
	errs = append(errs, o.HandlerOptions.Validate()...)

	if d := o.LLMOptions.Dimensions; d > 0 && d != o.MilvusOptions.Dimension {
		errs = append(errs, fmt.Errorf("llm dimensions %d does not match milvus dimension %d", d, o.MilvusOptions.Dimension))
	}
	if o.StorageOptions.NeedsRedis() {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	if o.StorageOptions.Blob == tutorsvc.BackendGridFS {
		errs = append(errs, o.MongoDBOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// Config returns the service configuration built from the options.
func (o *ServerOptions) Config() (*tutorsvc.Config, error) {
	return &tutorsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		TracingOptions:   o.TracingOptions,
		DatabaseOptions:  o.DatabaseOptions,
		MilvusOptions:    o.MilvusOptions,
		RedisOptions:     o.RedisOptions,
		MongoDBOptions:   o.MongoDBOptions,
		NATSOptions:      o.NATSOptions,
		LLMOptions:       o.LLMOptions,
		IngestOptions:    o.IngestOptions,
		RetrievalOptions: o.RetrievalOptions,
		ParserOptions:    o.ParserOptions,
		StorageOptions:   o.StorageOptions,
		HandlerOptions:   o.HandlerOptions,
	}, nil
}
