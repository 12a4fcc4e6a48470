package progress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneByteReader forces Read to return a single byte per call.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	return o.r.Read(p[:1])
}

func TestReader_ReportsEveryInterval(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)

	var reports []int64

	pr := NewReader(oneByteReader{bytes.NewReader(data)}, int64(len(data)), 4, func(read, total int64) {
		assert.EqualValues(t, 10, total)

		reports = append(reports, read)
	})

	out, err := io.ReadAll(pr)
	require.NoError(t, err)

	assert.Equal(t, data, out)
	assert.Equal(t, []int64{4, 8}, reports)
	assert.EqualValues(t, 10, pr.BytesRead())
}

func TestReader_DisabledInterval(t *testing.T) {
	called := false

	pr := NewReader(bytes.NewReader([]byte("abc")), -1, 0, func(int64, int64) { called = true })

	_, err := io.ReadAll(pr)
	require.NoError(t, err)

	assert.False(t, called)
	assert.EqualValues(t, 3, pr.BytesRead())
}
