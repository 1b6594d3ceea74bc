// Package transport 提供链路层消费的字节收发抽象。
// 具体介质（UDP/串口/蓝牙 RFCOMM）对编解码层完全不透明。
package transport

import "errors"

// ErrClosed 传输已关闭
var ErrClosed = errors.New("transport closed")

// Transport 可插拔的字节收发接口。
// Read 阻塞直到有数据或传输关闭；Close 必须确定性地解除挂起的 Read，
// 释放消费协程。发送是 fire-and-forget，本层无确认/重传
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error

	// RemoteID 对端标识，作为重放保护与会话跟踪的 peerID
	RemoteID() string

	// Datagram 报文边界是否保留。true（UDP）时一次 Read 即一帧；
	// false（串口等字节流）时上层需用 StreamDecoder 切帧
	Datagram() bool
}
