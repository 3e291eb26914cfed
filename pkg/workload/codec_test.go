package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCodec(t *testing.T, name string) Codec {
	t.Helper()
	codec, err := CodecByName(name)
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTripPreservesPayload(t *testing.T) {
	payload := NewGenerator(42).Payload(TierSmall)

	for _, codec := range AllCodecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(payload)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			var decoded Payload
			require.NoError(t, codec.Unmarshal(data, &decoded))
			assert.Equal(t, payload, &decoded)
		})
	}
}

func TestCodecByName(t *testing.T) {
	for _, name := range CodecNames() {
		codec := mustCodec(t, name)
		assert.Equal(t, name, codec.Name())
	}

	assert.Equal(t, "protobuf", mustCodec(t, "proto").Name())
	assert.Equal(t, "yaml", mustCodec(t, "YAML").Name())

	_, err := CodecByName("msgpack")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown codec")
}

func TestCodecUnmarshalRejectsGarbage(t *testing.T) {
	var decoded Payload

	assert.Error(t, mustCodec(t, "json").Unmarshal([]byte("{broken"), &decoded))
	assert.Error(t, mustCodec(t, "gob").Unmarshal([]byte("not a gob stream"), &decoded))
}
