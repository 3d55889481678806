// Package rencode implements the compact binary serialization used by the
// download daemon's native RPC protocol. The format is a tighter cousin of
// bencode: small ints, short strings, short lists and short dicts get
// single-byte type codes with the value folded in, everything else gets a
// typed prefix. Values nest arbitrarily.
package rencode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

const (
	chrList    = 59
	chrDict    = 60
	chrInt     = 61
	chrInt1    = 62
	chrInt2    = 63
	chrInt4    = 64
	chrInt8    = 65
	chrFloat32 = 66
	chrTrue    = 67
	chrFalse   = 68
	chrNone    = 69
	chrTerm    = 127
	chrFloat64 = 44

	intPosFixedStart = 0
	intPosFixedCount = 44
	intNegFixedStart = 70
	intNegFixedCount = 32
	dictFixedStart   = 102
	dictFixedCount   = 25
	strFixedStart    = 128
	strFixedCount    = 64
	listFixedStart   = 192
	listFixedCount   = 64
)

// Encode serializes v. Supported types: nil, bool, signed and unsigned
// integers, float32/float64, string, []byte, []any, and map[string]any.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteByte(chrNone)
	case bool:
		if t {
			buf.WriteByte(chrTrue)
		} else {
			buf.WriteByte(chrFalse)
		}
	case int:
		encodeInt(buf, int64(t))
	case int8:
		encodeInt(buf, int64(t))
	case int16:
		encodeInt(buf, int64(t))
	case int32:
		encodeInt(buf, int64(t))
	case int64:
		encodeInt(buf, t)
	case uint:
		encodeInt(buf, int64(t))
	case uint8:
		encodeInt(buf, int64(t))
	case uint16:
		encodeInt(buf, int64(t))
	case uint32:
		encodeInt(buf, int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return fmt.Errorf("rencode: uint64 value %d overflows int64", t)
		}
		encodeInt(buf, int64(t))
	case float32:
		buf.WriteByte(chrFloat32)
		binary.Write(buf, binary.BigEndian, t)
	case float64:
		buf.WriteByte(chrFloat64)
		binary.Write(buf, binary.BigEndian, t)
	case string:
		encodeString(buf, []byte(t))
	case []byte:
		encodeString(buf, t)
	case []any:
		return encodeList(buf, t)
	case []string:
		generic := make([]any, len(t))
		for i, s := range t {
			generic[i] = s
		}
		return encodeList(buf, generic)
	case map[string]any:
		return encodeDict(buf, t)
	default:
		return fmt.Errorf("rencode: unsupported type %T", v)
	}
	return nil
}

func encodeInt(buf *bytes.Buffer, n int64) {
	switch {
	case n >= 0 && n < intPosFixedCount:
		buf.WriteByte(byte(intPosFixedStart + n))
	case n < 0 && n >= -intNegFixedCount:
		buf.WriteByte(byte(intNegFixedStart - 1 - n))
	case n >= math.MinInt8 && n <= math.MaxInt8:
		buf.WriteByte(chrInt1)
		buf.WriteByte(byte(int8(n)))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		buf.WriteByte(chrInt2)
		binary.Write(buf, binary.BigEndian, int16(n))
	case n >= math.MinInt32 && n <= math.MaxInt32:
		buf.WriteByte(chrInt4)
		binary.Write(buf, binary.BigEndian, int32(n))
	default:
		buf.WriteByte(chrInt8)
		binary.Write(buf, binary.BigEndian, n)
	}
}

func encodeString(buf *bytes.Buffer, s []byte) {
	if len(s) < strFixedCount {
		buf.WriteByte(byte(strFixedStart + len(s)))
		buf.Write(s)
		return
	}
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.Write(s)
}

func encodeList(buf *bytes.Buffer, l []any) error {
	if len(l) < listFixedCount {
		buf.WriteByte(byte(listFixedStart + len(l)))
		for _, item := range l {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		return nil
	}
	buf.WriteByte(chrList)
	for _, item := range l {
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(chrTerm)
	return nil
}

func encodeDict(buf *bytes.Buffer, d map[string]any) error {
	if len(d) < dictFixedCount {
		buf.WriteByte(byte(dictFixedStart + len(d)))
		for k, v := range d {
			encodeString(buf, []byte(k))
			if err := encodeValue(buf, v); err != nil {
				return err
			}
		}
		return nil
	}
	buf.WriteByte(chrDict)
	for k, v := range d {
		encodeString(buf, []byte(k))
		if err := encodeValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(chrTerm)
	return nil
}

// Decode deserializes a single value from data. Integers come back as
// int64, strings as string, lists as []any, dicts as map[string]any.
// Trailing bytes after the first complete value are an error.
func Decode(data []byte) (any, error) {
	d := &decoder{data: data}
	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("rencode: %d trailing bytes after value", len(d.data)-d.pos)
	}
	return v, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("rencode: unexpected end of input at offset %d", d.pos)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fmt.Errorf("rencode: truncated input at offset %d (want %d bytes)", d.pos, n)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) decodeValue() (any, error) {
	code, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch {
	case code >= intPosFixedStart && code < intPosFixedStart+intPosFixedCount:
		return int64(code - intPosFixedStart), nil
	case code >= intNegFixedStart && code < intNegFixedStart+intNegFixedCount:
		return -1 - int64(code-intNegFixedStart), nil
	case code >= strFixedStart && code < strFixedStart+strFixedCount:
		b, err := d.readBytes(int(code - strFixedStart))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case code >= listFixedStart && int(code) < listFixedStart+listFixedCount:
		return d.decodeListN(int(code - listFixedStart))
	case code >= dictFixedStart && code < dictFixedStart+dictFixedCount:
		return d.decodeDictN(int(code - dictFixedStart))
	}

	switch code {
	case chrNone:
		return nil, nil
	case chrTrue:
		return true, nil
	case chrFalse:
		return false, nil
	case chrInt1:
		b, err := d.readBytes(1)
		if err != nil {
			return nil, err
		}
		return int64(int8(b[0])), nil
	case chrInt2:
		b, err := d.readBytes(2)
		if err != nil {
			return nil, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case chrInt4:
		b, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case chrInt8:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case chrInt:
		return d.decodeBigInt()
	case chrFloat32:
		b, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case chrFloat64:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case chrList:
		return d.decodeListTerm()
	case chrDict:
		return d.decodeDictTerm()
	}

	if code >= '0' && code <= '9' {
		d.pos-- // length prefix starts with this digit
		return d.decodeLongString()
	}

	return nil, fmt.Errorf("rencode: unknown type code 0x%02x at offset %d", code, d.pos-1)
}

func (d *decoder) decodeBigInt() (any, error) {
	start := d.pos
	for {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if b == chrTerm {
			break
		}
	}
	n, err := strconv.ParseInt(string(d.data[start:d.pos-1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("rencode: bad integer literal: %w", err)
	}
	return n, nil
}

func (d *decoder) decodeLongString() (any, error) {
	start := d.pos
	for {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' {
			return nil, fmt.Errorf("rencode: bad string length at offset %d", d.pos-1)
		}
	}
	n, err := strconv.Atoi(string(d.data[start : d.pos-1]))
	if err != nil {
		return nil, fmt.Errorf("rencode: bad string length: %w", err)
	}
	b, err := d.readBytes(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *decoder) decodeListN(n int) (any, error) {
	list := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (d *decoder) decodeListTerm() (any, error) {
	var list []any
	for {
		if d.pos < len(d.data) && d.data[d.pos] == chrTerm {
			d.pos++
			return list, nil
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
}

func (d *decoder) decodeDictN(n int) (any, error) {
	dict := make(map[string]any, n)
	for i := 0; i < n; i++ {
		if err := d.decodePair(dict); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func (d *decoder) decodeDictTerm() (any, error) {
	dict := make(map[string]any)
	for {
		if d.pos < len(d.data) && d.data[d.pos] == chrTerm {
			d.pos++
			return dict, nil
		}
		if err := d.decodePair(dict); err != nil {
			return nil, err
		}
	}
}

func (d *decoder) decodePair(dict map[string]any) error {
	k, err := d.decodeValue()
	if err != nil {
		return err
	}
	key, ok := k.(string)
	if !ok {
		return fmt.Errorf("rencode: non-string dict key of type %T", k)
	}
	v, err := d.decodeValue()
	if err != nil {
		return err
	}
	dict[key] = v
	return nil
}
