package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, data, 0o640))
	return path
}

func TestFile_KnownVectors(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, []byte("abc"))

	pair, err := File(path)
	require.NoError(t, err)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", pair.SHA256)
	require.Equal(t, "900150983cd24fb0d6963f7d28e17f72", pair.MD5)
}

func TestFile_Deterministic(t *testing.T) {
	t.Parallel()
	data := make([]byte, 3*chunkSize+17) // spans several chunks plus a tail
	for i := range data {
		data[i] = byte(i * 31)
	}
	path := writeTemp(t, data)

	first, err := File(path)
	require.NoError(t, err)
	second, err := File(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFile_SingleByteFlipChangesSHA256(t *testing.T) {
	t.Parallel()
	data := []byte("the quick brown fox jumps over the lazy dog")
	original, err := File(writeTemp(t, data))
	require.NoError(t, err)

	data[7] ^= 0x01
	flipped, err := File(writeTemp(t, data))
	require.NoError(t, err)

	require.NotEqual(t, original.SHA256, flipped.SHA256)
	require.NotEqual(t, original.MD5, flipped.MD5)
}

func TestFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := File(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestWriter_MatchesFile(t *testing.T) {
	t.Parallel()
	data := []byte("evidence bytes as stored")
	path := writeTemp(t, data)

	w := NewWriter()
	_, err := w.Write(data)
	require.NoError(t, err)

	fromFile, err := File(path)
	require.NoError(t, err)
	require.Equal(t, fromFile, w.Sum())
	require.Equal(t, int64(len(data)), w.Size())
}

func TestCompare(t *testing.T) {
	t.Parallel()
	stored := Pair{SHA256: "aa", MD5: "bb"}

	match := Compare(stored, Pair{SHA256: "aa", MD5: "bb"})
	require.True(t, match.Match)
	require.False(t, match.MD5Anomaly())

	mismatch := Compare(stored, Pair{SHA256: "cc", MD5: "bb"})
	require.False(t, mismatch.Match)
	require.False(t, mismatch.MD5Anomaly())

	// MD5 differs while SHA-256 matches: flagged, not treated as mismatch.
	anomaly := Compare(stored, Pair{SHA256: "aa", MD5: "dd"})
	require.True(t, anomaly.Match)
	require.True(t, anomaly.MD5Anomaly())
}
