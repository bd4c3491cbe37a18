package embedtable

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_PutGet(t *testing.T) {
	table := NewInMemory()
	table.Put(Layer("subject"), "cat", []float32{1, 2, 3})

	vec, ok := table.Get(Layer("subject"), "cat")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	_, ok = table.Get(Layer("subject"), "dog")
	assert.False(t, ok)

	_, ok = table.Get(Layer("style"), "cat")
	assert.False(t, ok)

	assert.Equal(t, 1, table.VocabularySize(Layer("subject")))
	assert.Equal(t, 3, table.Dimension(Layer("subject")))
	assert.Equal(t, 0, table.VocabularySize(Layer("missing")))
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func TestLoad_RoundTripsBinaryFormat(t *testing.T) {
	var buf bytes.Buffer

	writeString(&buf, "subject")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2)) // dim
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2)) // vocab
	writeString(&buf, "cat")
	writeString(&buf, "dog")
	_ = binary.Write(&buf, binary.LittleEndian, []float32{0.1, 0.2})
	_ = binary.Write(&buf, binary.LittleEndian, []float32{0.3, 0.4})

	table, err := Load(&buf)
	require.NoError(t, err)

	vec, ok := table.Get(Layer("subject"), "cat")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, vec)

	vec, ok = table.Get(Layer("subject"), "dog")
	require.True(t, ok)
	assert.Equal(t, []float32{0.3, 0.4}, vec)

	assert.Equal(t, 2, table.VocabularySize(Layer("subject")))
	assert.Equal(t, 2, table.Dimension(Layer("subject")))
}

func TestLoad_MultipleLayers(t *testing.T) {
	var buf bytes.Buffer
	for _, layer := range []string{"subject", "style"} {
		writeString(&buf, layer)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
		writeString(&buf, "tok")
		_ = binary.Write(&buf, binary.LittleEndian, []float32{1})
	}

	table, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, table.VocabularySize(Layer("subject")))
	assert.Equal(t, 1, table.VocabularySize(Layer("style")))
}

func TestLoad_EmptyReaderYieldsEmptyTable(t *testing.T) {
	table, err := Load(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, 0, table.VocabularySize(Layer("subject")))
}
