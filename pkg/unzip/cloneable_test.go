package unzip

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memSource struct {
	data []byte
	pos  int64
}

func newMemSource(data []byte) *memSource { return &memSource{data: data} }

func (m *memSource) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memSource) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	}
	m.pos = base + offset
	return m.pos, nil
}

func (m *memSource) Len() (int64, error) { return int64(len(m.data)), nil }

func TestCloneableSeekableReader_SeekStartThenRead(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	r := NewCloneableSeekableReader(newMemSource(data))

	_, err := r.Seek(100, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, data[100:110], buf)
}

func TestCloneableSeekableReader_CloneIndependentCursor(t *testing.T) {
	data := []byte("0123456789")
	r := NewCloneableSeekableReader(newMemSource(data))

	_, err := r.Seek(5, io.SeekStart)
	require.NoError(t, err)
	clone := r.Clone()

	// Move the parent back to the start; the clone must not move.
	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := clone.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte("56"), buf)
}

func TestCloneableSeekableReader_ReadAtEOF(t *testing.T) {
	r := NewCloneableSeekableReader(newMemSource([]byte("abc")))
	_, err := r.Seek(3, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestCloneableSeekableReader_SeekEndUsesLength(t *testing.T) {
	r := NewCloneableSeekableReader(newMemSource([]byte("0123456789")))
	pos, err := r.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(7), pos)

	buf := make([]byte, 3)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("789"), buf)
}

func TestCloneableSeekableReader_NegativeSeekFails(t *testing.T) {
	r := NewCloneableSeekableReader(newMemSource([]byte("abc")))
	_, err := r.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestCloneableSeekableReader_SeekOverflowDetected(t *testing.T) {
	r := NewCloneableSeekableReader(newMemSource([]byte("abc")))
	_, err := r.Seek(1<<62, io.SeekStart)
	require.NoError(t, err)
	_, err = r.Seek(1<<62, io.SeekCurrent)
	require.Error(t, err)
}

// TestCloneableSeekableReader_ConcurrentClonesDontCorrupt exercises many
// clones reading disjoint ranges concurrently and checks each one reads
// back exactly the underlying bytes at its own offset, regardless of
// what other clones are doing.
func TestCloneableSeekableReader_ConcurrentClonesDontCorrupt(t *testing.T) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}
	r := NewCloneableSeekableReader(newMemSource(data))

	const workers = 16
	const chunk = len(data) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			clone := r.Clone()
			start := i * chunk
			_, err := clone.Seek(int64(start), io.SeekStart)
			require.NoError(t, err)

			got := make([]byte, chunk)
			_, err = io.ReadFull(clone, got)
			require.NoError(t, err)
			require.True(t, bytes.Equal(got, data[start:start+chunk]))
		}()
	}
	wg.Wait()
}

func TestCloneableSeekableReader_ReadAtIndependentOfCursor(t *testing.T) {
	data := []byte("hello world")
	r := NewCloneableSeekableReader(newMemSource(data))
	_, err := r.Seek(2, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := r.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("world"), buf)

	// Cursor-based position is untouched by ReadAt.
	buf2 := make([]byte, 3)
	n, err = r.Read(buf2)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("llo"), buf2)
}
