package file

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dev, err := Open(Config{ID: 1, Path: filepath.Join(t.TempDir(), "dev0"), Size: 1 << 20}, 2)
	require.NoError(t, err)
	defer dev.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var writeErr error
	dev.SubmitWrite(context.Background(), 4096, []byte("hello device"), func(err error) {
		writeErr = err
		wg.Done()
	})
	wg.Wait()
	require.NoError(t, writeErr)

	buf := make([]byte, len("hello device"))
	wg.Add(1)
	var readErr error
	dev.SubmitRead(context.Background(), 4096, buf, func(err error) {
		readErr = err
		wg.Done()
	})
	wg.Wait()
	require.NoError(t, readErr)
	assert.Equal(t, "hello device", string(buf))
}

func TestIDAndSize(t *testing.T) {
	dev, err := Open(Config{ID: 7, Path: filepath.Join(t.TempDir(), "dev0"), Size: 2048}, 1)
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, uint32(7), dev.ID())
	assert.Equal(t, int64(2048), dev.Size())
}
