package transport

import "sync"

// Loopback 进程内成对传输，测试与本地联调用。
// 保留报文边界，Close 解除两端挂起的 Read
type Loopback struct {
	name  string
	rx    chan []byte
	tx    chan []byte
	once  sync.Once
	done  chan struct{}
	peerD chan struct{}
}

// NewLoopbackPair 创建互联的两端。depth 为每方向缓冲深度
func NewLoopbackPair(depth int) (*Loopback, *Loopback) {
	if depth <= 0 {
		depth = 64
	}
	ab := make(chan []byte, depth)
	ba := make(chan []byte, depth)
	aDone := make(chan struct{})
	bDone := make(chan struct{})
	a := &Loopback{name: "loopback-a", rx: ba, tx: ab, done: aDone, peerD: bDone}
	b := &Loopback{name: "loopback-b", rx: ab, tx: ba, done: bDone, peerD: aDone}
	return a, b
}

// Read 取出一个报文
func (t *Loopback) Read(p []byte) (int, error) {
	select {
	case <-t.done:
		return 0, ErrClosed
	case pkt, ok := <-t.rx:
		if !ok {
			return 0, ErrClosed
		}
		return copy(p, pkt), nil
	}
}

// Write 投递一个报文；对端已关闭或缓冲满时丢弃（fire-and-forget）
func (t *Loopback) Write(p []byte) (int, error) {
	select {
	case <-t.done:
		return 0, ErrClosed
	default:
	}
	pkt := append([]byte(nil), p...)
	select {
	case <-t.peerD:
		return len(p), nil
	case t.tx <- pkt:
		return len(p), nil
	default:
		return len(p), nil
	}
}

// Close 关闭本端
func (t *Loopback) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// RemoteID 端点名称
func (t *Loopback) RemoteID() string { return t.name }

// Datagram 保留报文边界
func (t *Loopback) Datagram() bool { return true }
