// Package leb128 decodes the variable-length integers used for instruction immediates and section framing.
//
// The Load functions operate on byte slices and report how many bytes were consumed, so the transpiler can advance its
// cursor without an io.Reader per immediate. The Decode functions read from an io.ByteReader, for the binary decoder.
package leb128

import (
	"errors"
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = maxVarintLen32
	maxVarintLen64 = 10
)

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errOverflow33 = errors.New("overflows a 33-bit integer")
	errOverflow64 = errors.New("overflows a 64-bit integer")
	errEOF        = errors.New("unexpected end of immediate")
)

// EncodeInt32 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt64(value int64) (buf []byte) {
	for {
		// Take 7 remaining low-order bits from the value into b.
		b := uint8(value & 0x7f)
		// Extract the sign bit.
		s := uint8(value & 0x40)
		value >>= 7

		// The encoding unit is a byte, so the value must be flushed until only sign bits remain.
		if (value != -1 || s == 0) && (value != 0 || s != 0) {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			break
		}
	}
	return buf
}

// EncodeUint32 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint64(value uint64) (buf []byte) {
	for {
		b := uint8(value & 0x7f)
		value >>= 7
		if value != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			break
		}
	}
	return buf
}

// LoadUint32 decodes an unsigned 32-bit integer at the start of buf.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	for shift := 0; shift < 7*maxVarintLen32; shift += 7 {
		if bytesRead >= uint64(len(buf)) {
			return 0, 0, errEOF
		}
		b := buf[bytesRead]
		bytesRead++
		ret |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			// The fifth byte only has room for the four high bits.
			if bytesRead == maxVarintLen32 && b > 0x0f {
				return 0, 0, errOverflow32
			}
			return ret, bytesRead, nil
		}
	}
	return 0, 0, errOverflow32
}

// LoadUint64 decodes an unsigned 64-bit integer at the start of buf.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	for shift := 0; shift < 7*maxVarintLen64; shift += 7 {
		if bytesRead >= uint64(len(buf)) {
			return 0, 0, errEOF
		}
		b := buf[bytesRead]
		bytesRead++
		ret |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if bytesRead == maxVarintLen64 && b > 0x01 {
				return 0, 0, errOverflow64
			}
			return ret, bytesRead, nil
		}
	}
	return 0, 0, errOverflow64
}

// LoadInt32 decodes a signed 32-bit integer at the start of buf.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if bytesRead >= uint64(len(buf)) {
			return 0, 0, errEOF
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if bytesRead == maxVarintLen32 {
			return 0, 0, errOverflow32
		}
	}

	if bytesRead == maxVarintLen32 {
		// Bits 4-6 of the last byte are unused and must repeat the sign bit (bit 3).
		if unused := b & 0x70; (b&0x08 == 0 && unused != 0) || (b&0x08 != 0 && unused != 0x70) {
			return 0, 0, errOverflow32
		}
	}

	if shift < 32 && b&0x40 != 0 {
		ret |= ^0 << shift
	}
	return ret, bytesRead, nil
}

// LoadInt33AsInt64 decodes the signed 33-bit integer used by block types at the start of buf.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-blocktype
func LoadInt33AsInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if bytesRead >= uint64(len(buf)) {
			return 0, 0, errEOF
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if bytesRead == maxVarintLen33 {
			return 0, 0, errOverflow33
		}
	}

	if bytesRead == maxVarintLen33 {
		// Bits 5-6 of the last byte are unused and must repeat the sign bit (bit 4).
		if unused := b & 0x60; (b&0x10 == 0 && unused != 0) || (b&0x10 != 0 && unused != 0x60) {
			return 0, 0, errOverflow33
		}
	}

	if b&0x40 != 0 {
		ret |= ^0 << shift
	}
	return ret, bytesRead, nil
}

// LoadInt64 decodes a signed 64-bit integer at the start of buf.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if bytesRead >= uint64(len(buf)) {
			return 0, 0, errEOF
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if bytesRead == maxVarintLen64 {
			return 0, 0, errOverflow64
		}
	}

	if bytesRead == maxVarintLen64 {
		// Only bit 0 of the tenth byte is significant; the rest must repeat it.
		if rest := b & 0x7f; rest != 0 && rest != 0x7f {
			return 0, 0, errOverflow64
		}
	}

	if shift < 64 && b&0x40 != 0 {
		ret |= ^0 << shift
	}
	return ret, bytesRead, nil
}

// DecodeUint32 reads an unsigned 32-bit integer from r.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	var buf [maxVarintLen32]byte
	n, err := readVarint(r, buf[:])
	if err != nil {
		return 0, 0, err
	}
	return LoadUint32(buf[:n])
}

// DecodeInt32 reads a signed 32-bit integer from r.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	var buf [maxVarintLen32]byte
	n, err := readVarint(r, buf[:])
	if err != nil {
		return 0, 0, err
	}
	return LoadInt32(buf[:n])
}

// DecodeInt64 reads a signed 64-bit integer from r.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var buf [maxVarintLen64]byte
	n, err := readVarint(r, buf[:])
	if err != nil {
		return 0, 0, err
	}
	return LoadInt64(buf[:n])
}

// readVarint copies one encoded integer into buf, stopping at its last byte or when buf is full. A value longer than
// buf is left for the Load functions to reject.
func readVarint(r io.ByteReader, buf []byte) (int, error) {
	for i := range buf {
		b, err := r.ReadByte()
		if err == io.EOF {
			return 0, errEOF
		} else if err != nil {
			return 0, err
		}
		buf[i] = b
		if b&0x80 == 0 {
			return i + 1, nil
		}
	}
	return len(buf), nil
}

// DecodeError annotates a decoding failure with what was being read.
func DecodeError(what string, err error) error {
	return fmt.Errorf("read %s: %w", what, err)
}
