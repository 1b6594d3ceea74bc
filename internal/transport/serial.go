package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Serial 串口/蓝牙 RFCOMM 设备传输：对设备路径做原始读写。
// 波特率等线路参数属于主机侧预配置（stty），不在本层范围。
// 字节流不保留报文边界，上层用 StreamDecoder 切帧
type Serial struct {
	f    *os.File
	path string
}

// NewSerial 打开设备路径（如 /dev/ttyUSB0、/dev/rfcomm0）
func NewSerial(path string) (*Serial, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial device: %w", err)
	}
	return &Serial{f: f, path: path}, nil
}

// Read 读取可用字节，阻塞直到有数据或设备关闭
func (t *Serial) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if err != nil && (errors.Is(err, fs.ErrClosed) || errors.Is(err, os.ErrClosed)) {
		return n, ErrClosed
	}
	return n, err
}

// Write 写出字节
func (t *Serial) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	if err != nil && errors.Is(err, fs.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

// Close 关闭设备并解除挂起的 Read
func (t *Serial) Close() error { return t.f.Close() }

// RemoteID 以设备路径标识对端
func (t *Serial) RemoteID() string { return t.path }

// Datagram 字节流，不保留报文边界
func (t *Serial) Datagram() bool { return false }
