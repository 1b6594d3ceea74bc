package lbeast

import "errors"

var (
	// ErrMalformedFrame 帧头/长度非法，丢弃不回应
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrChecksumMismatch None 级别帧 CRC8 校验失败
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAuthenticationFailed MAC 校验失败或解密结果非法。
	// 两种情况对外统一为同一错误，避免构成区分预言机
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrReplayRejected 重放保护拒绝（重复或超窗），低severity，乱序下偶发属预期
	ErrReplayRejected = errors.New("replay rejected")

	// ErrOversizePayload 载荷超过单帧 255 字节预算，发送前拒绝
	ErrOversizePayload = errors.New("oversize payload")

	// ErrUnknownType 类型枚举越界，静默丢弃
	ErrUnknownType = errors.New("unknown value type")

	// ErrIVExhausted 会话 IV 计数耗尽，必须换密钥重建会话
	ErrIVExhausted = errors.New("iv counter exhausted, rekey required")
)
