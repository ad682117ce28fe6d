package kafkaconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "session.capacity.resync.dlq", cfg.DLQTopic("session.capacity.resync"))
}

func TestLoad_SplitsBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "a:9092, b:9092 ,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers)
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := &Config{
		ProducerCompression: "brotli",
		ProducerRequireAcks: 7,
		ConsumerStartOffset: 5,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "At least one Kafka broker is required")
	assert.Contains(t, err.Error(), "ProducerCompression")
	assert.Contains(t, err.Error(), "ProducerRequireAcks")
	assert.Contains(t, err.Error(), "ConsumerStartOffset")
}
