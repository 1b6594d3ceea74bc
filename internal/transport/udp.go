package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// UDP 数据报传输。本地监听 + 固定对端地址；
// 对端地址为空时记住最近一个来源地址并向其回发（被动网关模式）
type UDP struct {
	conn   *net.UDPConn
	mu     sync.RWMutex
	remote *net.UDPAddr
	fixed  bool
}

// NewUDP 创建 UDP 传输。localAddr 可为 ":0"；
// remoteAddr 为空时进入被动模式
func NewUDP(localAddr, remoteAddr string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve local addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	t := &UDP{conn: conn}
	if remoteAddr != "" {
		raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("resolve remote addr: %w", err)
		}
		t.remote = raddr
		t.fixed = true
	}
	return t, nil
}

// Read 读取一个数据报。固定对端模式下过滤其它来源
func (t *UDP) Read(p []byte) (int, error) {
	for {
		n, addr, err := t.conn.ReadFromUDP(p)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return 0, ErrClosed
			}
			return 0, err
		}
		t.mu.Lock()
		if t.fixed {
			if t.remote.IP.Equal(addr.IP) && t.remote.Port == addr.Port {
				t.mu.Unlock()
				return n, nil
			}
			t.mu.Unlock()
			continue // 非约定对端的数据报直接丢弃
		}
		t.remote = addr
		t.mu.Unlock()
		return n, nil
	}
}

// Write 发送一个数据报到对端
func (t *UDP) Write(p []byte) (int, error) {
	t.mu.RLock()
	remote := t.remote
	t.mu.RUnlock()
	if remote == nil {
		return 0, fmt.Errorf("udp transport: no remote peer yet")
	}
	n, err := t.conn.WriteToUDP(p, remote)
	if err != nil && errors.Is(err, net.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

// Close 关闭套接字并解除挂起的 Read
func (t *UDP) Close() error { return t.conn.Close() }

// RemoteID 对端地址串；被动模式下尚未见到对端时返回本地地址
func (t *UDP) RemoteID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.remote != nil {
		return t.remote.String()
	}
	return t.conn.LocalAddr().String()
}

// LocalAddr 实际监听地址（":0" 场景下取真实端口）
func (t *UDP) LocalAddr() string { return t.conn.LocalAddr().String() }

// Datagram UDP 保留报文边界
func (t *UDP) Datagram() bool { return true }
