package ber

// encodeIntegerContent renders v as two's-complement big-endian content
// bytes, the minimum number of bytes needed, never leaving a redundant
// leading 0x00 or 0xFF byte that would flip the sign of the result.
func encodeIntegerContent(v int64) []byte {
	var buf []byte
	n := v
	for {
		b := byte(n)
		buf = append([]byte{b}, buf...)
		n >>= 8
		if (n == 0 && b&0x80 == 0) || (n == -1 && b&0x80 != 0) {
			break
		}
	}
	return buf
}

// decodeIntegerContent reconstructs the signed value from two's-complement
// big-endian content bytes, sign-extending from the top bit of the first
// byte.
func decodeIntegerContent(content []byte) int64 {
	if len(content) == 0 {
		return 0
	}
	v := int64(int8(content[0]))
	for i := 1; i < len(content); i++ {
		v = (v << 8) | int64(content[i])
	}
	return v
}

// EncodeInteger produces the full TLV encoding of an INTEGER value.
func EncodeInteger(v int64) []byte {
	content := encodeIntegerContent(v)
	out := []byte{byte(TagInteger)}
	out = append(out, EncodeLength(len(content))...)
	out = append(out, content...)
	return out
}

// DecodeInteger reads a tagged INTEGER from the front of buf. consumed is
// the total number of bytes read (tag + length + content) when err is nil.
func DecodeInteger(buf []byte, tagCheck bool) (value int64, consumed int, err error) {
	pos := 0
	if tagCheck {
		if len(buf) < 1 || Tag(buf[0]) != TagInteger {
			return 0, 0, ErrInvalidLengthOrTag
		}
		pos = 1
	}

	length, lenBytes, lerr := DecodeLength(buf[pos:])
	if lerr != nil {
		return 0, 0, lerr
	}
	pos += lenBytes

	if len(buf) < pos+length {
		return 0, 0, ErrInvalidLengthOrTag
	}
	content := buf[pos : pos+length]
	pos += length

	return decodeIntegerContent(content), pos, nil
}
