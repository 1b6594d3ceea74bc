package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackPair(t *testing.T) {
	a, b := NewLoopbackPair(4)
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	n, err := a.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 64)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	// 反向
	_, err = b.Write([]byte("world"))
	require.NoError(t, err)
	n, err = a.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	assert.True(t, a.Datagram())
	assert.NotEqual(t, a.RemoteID(), b.RemoteID())
}

func TestLoopbackCloseUnblocksRead(t *testing.T) {
	a, b := NewLoopbackPair(1)
	defer func() { _ = b.Close() }()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		_, err := a.Read(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after Close")
	}
}

func TestLoopbackWriteAfterClose(t *testing.T) {
	a, b := NewLoopbackPair(1)
	_ = b.Close()
	require.NoError(t, a.Close())

	_, err := a.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopbackBufferFullDrops(t *testing.T) {
	a, b := NewLoopbackPair(1)
	defer func() {
		_ = a.Close()
		_ = b.Close()
	}()

	// 缓冲深度 1：第二帧丢弃但不报错（fire-and-forget）
	_, err := a.Write([]byte("first"))
	require.NoError(t, err)
	_, err = a.Write([]byte("second"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(buf[:n]))
}
