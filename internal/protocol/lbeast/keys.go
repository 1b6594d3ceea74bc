package lbeast

import "crypto/sha1"

// 密钥派生后缀。两端固件写死同样的常量，改动即破坏互通
const (
	aesDeriveSuffix  = "AES128_LBEAST_2025"
	hmacDeriveSuffix = "HMAC_LBEAST_2025"
)

const (
	// AESKeySize AES-128 密钥长度
	AESKeySize = 16
	// HMACKeySize HMAC-SHA1 密钥长度（SHA-1 摘要全长）
	HMACKeySize = 20
)

// DeriveKeys 从共享密钥串派生 AES 与 HMAC 密钥。
// AES 密钥 = SHA-1(secret ++ aesDeriveSuffix) 前 16 字节；
// HMAC 密钥 = SHA-1(secret ++ hmacDeriveSuffix) 前 20 字节。
// 派生是确定性的：两端密钥串一致则密钥一致。
// 密钥分发与轮换机制不在本层范围内。
func DeriveKeys(secret string) (aesKey [AESKeySize]byte, hmacKey [HMACKeySize]byte) {
	a := sha1.Sum([]byte(secret + aesDeriveSuffix))
	copy(aesKey[:], a[:AESKeySize])

	h := sha1.Sum([]byte(secret + hmacDeriveSuffix))
	copy(hmacKey[:], h[:HMACKeySize])
	return aesKey, hmacKey
}

// SecurityContext 会话安全上下文。初始化时派生一次，
// 密钥串变更前保持不可变；变更后重新派生并重建会话
type SecurityContext struct {
	Level   SecurityLevel
	AESKey  [AESKeySize]byte
	HMACKey [HMACKeySize]byte
}

// NewSecurityContext 派生密钥并构造安全上下文。
// SecurityNone 不需要密钥，返回零值上下文
func NewSecurityContext(secret string, level SecurityLevel) *SecurityContext {
	ctx := &SecurityContext{Level: level}
	if level != SecurityNone {
		ctx.AESKey, ctx.HMACKey = DeriveKeys(secret)
	}
	return ctx
}
