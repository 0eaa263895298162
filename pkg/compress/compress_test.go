package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = bytes.Repeat([]byte("scenario engine test payload "), 64)

func TestCompressRoundTrip(t *testing.T) {
	for name, ct := range map[string]CompressType{
		"gzip": CompressTypeGzip,
		"zstd": CompressTypeZstd,
		"br":   CompressTypeBr,
	} {
		t.Run(name, func(t *testing.T) {
			compressed, err := Compress(payload, ct)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(payload))

			decompressed, err := Decompress(compressed, ct)
			require.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}

func TestCompressNoneIsPassthrough(t *testing.T) {
	out, err := Compress(payload, CompressTypeNone)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	back, err := Decompress(out, CompressTypeNone)
	require.NoError(t, err)
	assert.Equal(t, payload, back)
}

func TestDecompressWithContentEncodeStr(t *testing.T) {
	compressed, err := Compress(payload, CompressTypeGzip)
	require.NoError(t, err)

	out, err := DecompressWithContentEncodeStr(compressed, "gzip")
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	out, err = DecompressWithContentEncodeStr(payload, "identity")
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	_, err = DecompressWithContentEncodeStr(payload, "lzma")
	assert.Error(t, err)
}

func TestDecompressCorruptGzip(t *testing.T) {
	_, err := Decompress([]byte("definitely not gzip"), CompressTypeGzip)
	assert.Error(t, err)
}
