package foundry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/mintforge/internal/chains"
)

func TestParser_Metadata(t *testing.T) {
	assert.Equal(t, "foundry", New().Name())
}

func TestParser_Detect(t *testing.T) {
	p := New()

	var foundry map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"abi":[],"bytecode":{"object":"0x6080"}}`), &foundry))
	assert.True(t, p.Detect(foundry))

	var hardhat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{"abi":[],"bytecode":"0x6080"}`), &hardhat))
	assert.False(t, p.Detect(hardhat))
}

func TestParser_Parse(t *testing.T) {
	p := New()

	t.Run("valid artifact", func(t *testing.T) {
		artifact := map[string]any{
			"abi":              []map[string]any{{"type": "function", "name": "mint"}},
			"bytecode":         map[string]any{"object": "0x608060405234801561001057600080fd5b50"},
			"deployedBytecode": map[string]any{"object": "0x6080604052"},
			"rawMetadata":      `{"compiler":{"version":"0.8.20+commit.a1b25a0b"},"settings":{"compilationTarget":{"src/Collection.sol":"Collection"}}}`,
		}
		data, err := json.Marshal(artifact)
		require.NoError(t, err)

		result, err := p.Parse("Collection", data)
		require.NoError(t, err)

		assert.Equal(t, "Collection", result.Name)
		assert.Equal(t, "foundry", result.Format)
		assert.Equal(t, "src/Collection.sol", result.SourcePath)
		assert.Equal(t, "0.8.20+commit.a1b25a0b", result.CompilerVersion)
		assert.Equal(t, "0x608060405234801561001057600080fd5b50", result.Bytecode)
		assert.Equal(t, "0x6080604052", result.DeployedBytecode)
		assert.NotEmpty(t, result.ABI)
	})

	t.Run("interface without bytecode", func(t *testing.T) {
		data := []byte(`{"abi":[],"bytecode":{"object":"0x"},"deployedBytecode":{"object":"0x"}}`)
		_, err := p.Parse("IThing", data)
		assert.ErrorIs(t, err, chains.ErrNoBytecode)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := p.Parse("Broken", []byte("not json"))
		assert.Error(t, err)
	})
}
