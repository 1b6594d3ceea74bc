package lbeast

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"sync"
)

// ctrXOR AES-128 计数器模式密钥流异或，加解密对称。
// 计数块布局：iv(4) | 0(8) | 块计数(4, 大端)。
// 载荷上限 255 字节（≤17 块），块计数不会进位到 IV 区
func ctrXOR(aesKey []byte, iv uint32, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("init aes cipher: %w", err)
	}
	var ctrBlock [aes.BlockSize]byte
	binary.BigEndian.PutUint32(ctrBlock[0:4], iv)
	out := make([]byte, len(data))
	cipher.NewCTR(block, ctrBlock[:]).XORKeyStream(out, data)
	return out, nil
}

// computeTag 计算 HMAC-SHA1 并截断为 8 字节认证标签
func computeTag(hmacKey []byte, data []byte) [TagSize]byte {
	mac := hmac.New(sha1.New, hmacKey)
	_, _ = mac.Write(data)
	var tag [TagSize]byte
	copy(tag[:], mac.Sum(nil)[:TagSize])
	return tag
}

// verifyTag 常数时间比较认证标签，避免时延预言机
func verifyTag(hmacKey []byte, data []byte, tag []byte) bool {
	expected := computeTag(hmacKey, data)
	return hmac.Equal(expected[:], tag)
}

// ivSource 会话内严格递增的 IV 计数源。
// 高16位随机前缀 + 低位递增：同一 (key, IV) 对在 CTR 下绝不允许复用，
// 所以不用逐包随机抽取。计数耗尽视为强制换密钥事件。
// 仅存于内存，不跨重启持久化
type ivSource struct {
	mu   sync.Mutex
	next uint32
}

// newIVSource 以随机高位前缀播种计数器
func newIVSource() (*ivSource, error) {
	var seed [2]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed iv counter: %w", err)
	}
	return &ivSource{next: uint32(binary.BigEndian.Uint16(seed[:])) << 16}, nil
}

// Next 取下一个 IV。计数空间耗尽返回 ErrIVExhausted，绝不回绕复用
func (s *ivSource) Next() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == ^uint32(0) {
		return 0, ErrIVExhausted
	}
	iv := s.next
	s.next++
	return iv, nil
}
