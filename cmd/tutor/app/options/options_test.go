package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tutorsvc "github.com/kart-io/tutor-x/internal/tutor"
)

func validOptions() *ServerOptions {
	o := NewServerOptions()
	o.LLMOptions.APIKey = "sk-test"
	return o
}

func TestServerOptions_Defaults(t *testing.T) {
	o := validOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())
}

func TestServerOptions_Flags(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	for _, name := range []string{"http", "log", "database", "milvus", "nats", "llm", "ingest", "retrieval", "parser", "storage", "api"} {
		assert.Contains(t, fss.Order, name)
	}
	require.NoError(t, fss.FlagSet("retrieval").Set("retrieval.alpha", "0.5"))
	assert.InDelta(t, 0.5, o.RetrievalOptions.Alpha, 1e-9)
}

func TestServerOptions_ValidateAggregates(t *testing.T) {
	o := validOptions()
	o.RetrievalOptions.Alpha = 2
	o.StorageOptions.Blob = "s3"
	o.LLMOptions.Dimensions = 768

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "s3")
	assert.Contains(t, err.Error(), "dimension")
}

func TestServerOptions_RedisOnlyWhenSelected(t *testing.T) {
	o := validOptions()
	o.RedisOptions.Host = ""
	assert.NoError(t, o.Validate())

	o.StorageOptions.Events = tutorsvc.BackendRedis
	assert.Error(t, o.Validate())
}

func TestServerOptions_Config(t *testing.T) {
	o := validOptions()
	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.HTTPOptions, cfg.HTTPOptions)
	assert.Same(t, o.StorageOptions, cfg.StorageOptions)
}
