package lbeast

// CRC-8 多项式 0x07（MSB-first，初值 0x00）。
// 线缆常量：两端固件使用同一张表

var crc8Table [256]byte

func init() {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for b := 0; b < 8; b++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
		crc8Table[i] = crc
	}
}

// CRC8 计算 data 的 CRC-8 校验值
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// VerifyCRC8 验证带校验字节的完整数据（最后一字节为校验值）
func VerifyCRC8(dataWithCRC []byte) error {
	if len(dataWithCRC) < 1 {
		return ErrMalformedFrame
	}
	pos := len(dataWithCRC) - 1
	if CRC8(dataWithCRC[:pos]) != dataWithCRC[pos] {
		return ErrChecksumMismatch
	}
	return nil
}
