package h2

import (
	"bytes"
	"fmt"

	"golang.org/x/net/http2/hpack"
)

// headerCodec wraps the HPACK encoder/decoder pair behind the small
// surface the codec needs. Both directions are exclusively owned by one
// Codec and serialize through its single-threaded invariant.
type headerCodec struct {
	enc         *hpack.Encoder
	encBuf      bytes.Buffer
	dec         *hpack.Decoder
	encodedSize int
}

// defaultHeaderTableSize is the RFC 7541 initial dynamic table size.
const defaultHeaderTableSize = 4096

func newHeaderCodec() *headerCodec {
	hc := &headerCodec{}
	hc.enc = hpack.NewEncoder(&hc.encBuf)
	hc.dec = hpack.NewDecoder(defaultHeaderTableSize, nil)
	return hc
}

// decode decompresses a complete header block into an ordered field list.
// A truncated or malformed block yields an error; the caller maps it to
// COMPRESSION_ERROR.
func (hc *headerCodec) decode(chunks [][]byte) ([][2]string, error) {
	fields := make([][2]string, 0, 8)
	hc.dec.SetEmitFunc(func(hf hpack.HeaderField) {
		fields = append(fields, [2]string{hf.Name, hf.Value})
	})
	for _, chunk := range chunks {
		if _, err := hc.dec.Write(chunk); err != nil {
			return nil, fmt.Errorf("hpack decode error: %w", err)
		}
	}
	if err := hc.dec.Close(); err != nil {
		return nil, fmt.Errorf("hpack decode error: %w", err)
	}
	return fields, nil
}

// encode compresses an ordered field list. The returned slice is a copy
// and stays valid after the next call.
func (hc *headerCodec) encode(fields [][2]string) ([]byte, error) {
	hc.encBuf.Reset()
	for _, f := range fields {
		if err := hc.enc.WriteField(hpack.HeaderField{Name: f[0], Value: f[1]}); err != nil {
			return nil, fmt.Errorf("hpack encode error: %w", err)
		}
	}
	out := make([]byte, hc.encBuf.Len())
	copy(out, hc.encBuf.Bytes())
	hc.encodedSize = len(out)
	return out, nil
}

// setEncoderTableSize applies the peer's HEADER_TABLE_SIZE to our encoder.
func (hc *headerCodec) setEncoderTableSize(size uint32) {
	hc.enc.SetMaxDynamicTableSize(size)
}

// setDecoderMaxTableSize raises the table size our decoder permits the
// peer's encoder to use, once we advertise HEADER_TABLE_SIZE.
func (hc *headerCodec) setDecoderMaxTableSize(size uint32) {
	hc.dec.SetAllowedMaxDynamicTableSize(size)
}

// lastEncodedSize returns the HPACK-encoded length of the most recent
// encode call.
func (hc *headerCodec) lastEncodedSize() int {
	return hc.encodedSize
}

// headerBlock accumulates HEADERS/PUSH_PROMISE/CONTINUATION fragments
// until END_HEADERS. Fragments are copied on append because the feed
// buffer is only borrowed for the duration of the call.
type headerBlock struct {
	chunks [][]byte
	size   int
}

func (b *headerBlock) append(frag []byte) {
	chunk := make([]byte, len(frag))
	copy(chunk, frag)
	b.chunks = append(b.chunks, chunk)
	b.size += len(frag)
}

// take hands the accumulated chunks to the consumer and resets the block.
func (b *headerBlock) take() [][]byte {
	chunks := b.chunks
	b.chunks = nil
	b.size = 0
	return chunks
}
