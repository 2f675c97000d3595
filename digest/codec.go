// Copyright (c) 2016 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package digest

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Wire format tags. There is no magic prefix beyond this tag.
const (
	verboseEncoding = int32(1)
	compactEncoding = int32(2)

	maxVarintPayloadBytes = 5
	varintShiftCeiling    = 28
)

// ByteSize returns an upper bound on the number of bytes the verbose
// encoding of the digest will occupy.
func (d *Digest) ByteSize() int {
	return 4 + 8 + 4 + d.index.Size()*12
}

// SmallByteSize returns the exact number of bytes the compact encoding of
// the digest will occupy, computed by actually writing it into a sized
// buffer and reading back the final position.
func (d *Digest) SmallByteSize() int {
	var buf bytes.Buffer
	buf.Grow(d.ByteSize())
	_, _ = d.WriteSmallTo(&buf)
	return buf.Len()
}

// WriteTo writes the digest using the verbose encoding:
//
//	tag:i32 | compression:f64 | n:i32 | mean[0..n]:f64 | count[0..n]:i32
func (d *Digest) WriteTo(w io.Writer) (int64, error) {
	var (
		buf bytes.Buffer
		n   = d.index.Size()
	)
	buf.Grow(d.ByteSize())

	if err := binary.Write(&buf, binary.BigEndian, verboseEncoding); err != nil {
		return 0, err
	}
	if err := binary.Write(&buf, binary.BigEndian, d.compression); err != nil {
		return 0, err
	}
	if err := binary.Write(&buf, binary.BigEndian, int32(n)); err != nil {
		return 0, err
	}

	means := make([]float64, 0, n)
	counts := make([]int32, 0, n)
	it := d.index.Iterator()
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		means = append(means, c.Mean)
		counts = append(counts, int32(c.Count))
	}

	for _, m := range means {
		if err := binary.Write(&buf, binary.BigEndian, m); err != nil {
			return 0, err
		}
	}
	for _, c := range counts {
		if err := binary.Write(&buf, binary.BigEndian, c); err != nil {
			return 0, err
		}
	}

	return buf.WriteTo(w)
}

// WriteSmallTo writes the digest using the compact encoding:
//
//	tag:i32 | compression:f64 | n:i32 | delta[0..n]:f32 | count[0..n]:varint
//
// Means are delta-encoded in traversal order as 32-bit floats; counts are
// base-128 varints. Encoding a count that needs more than 5 payload bytes
// fails with ErrOverflow.
func (d *Digest) WriteSmallTo(w io.Writer) (int64, error) {
	var (
		buf bytes.Buffer
		n   = d.index.Size()
	)
	buf.Grow(d.ByteSize())

	if err := binary.Write(&buf, binary.BigEndian, compactEncoding); err != nil {
		return 0, err
	}
	if err := binary.Write(&buf, binary.BigEndian, d.compression); err != nil {
		return 0, err
	}
	if err := binary.Write(&buf, binary.BigEndian, int32(n)); err != nil {
		return 0, err
	}

	type entry struct {
		mean  float64
		count int64
	}
	entries := make([]entry, 0, n)
	it := d.index.Iterator()
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		entries = append(entries, entry{mean: c.Mean, count: c.Count})
	}

	x := 0.0
	for _, e := range entries {
		delta := e.mean - x
		x = e.mean
		if err := binary.Write(&buf, binary.BigEndian, float32(delta)); err != nil {
			return 0, err
		}
	}

	for _, e := range entries {
		if err := encodeVarint(&buf, e.count); err != nil {
			return 0, err
		}
	}

	return buf.WriteTo(w)
}

// encodeVarint writes n as an unsigned base-128 varint: 7 payload bits per
// byte, continuation bit 0x80, little-endian within the number.
func encodeVarint(buf *bytes.Buffer, n int64) error {
	if n < 0 {
		return errors.Wrap(ErrOverflow, "digest: codec: negative count")
	}
	k := 0
	for n > 0x7f {
		buf.WriteByte(byte(0x80 | (0x7f & n)))
		n >>= 7
		k++
		if k >= maxVarintPayloadBytes {
			return errors.Wrap(ErrOverflow, "digest: codec: count too large to encode")
		}
	}
	buf.WriteByte(byte(n))
	return nil
}

// decodeVarint reads an unsigned base-128 varint written by encodeVarint.
func decodeVarint(r io.ByteReader) (int64, error) {
	v, err := r.ReadByte()
	if err != nil {
		return 0, errors.Wrap(ErrTruncated, "digest: codec: truncated varint")
	}
	z := int64(v & 0x7f)
	shift := 7
	for v&0x80 != 0 {
		if shift > varintShiftCeiling {
			return 0, errors.Wrap(ErrOverflow, "digest: codec: corrupt varint")
		}
		v, err = r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(ErrTruncated, "digest: codec: truncated varint")
		}
		z += int64(v&0x7f) << shift
		shift += 7
	}
	return z, nil
}

// ReadFrom decodes a digest previously written by WriteTo or WriteSmallTo,
// using opts for everything except compression, which is taken from the
// encoded stream (the stream carries no record-all flag). Deserialization reconstructs the digest
// by replaying Add for every decoded (mean, count) pair in file order, so
// the result is a statistically equivalent digest, not a bitwise copy.
func ReadFrom(r io.Reader, opts Options) (*Digest, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufByteReader{r}
	}

	var tag int32
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated tag"))
	}

	switch tag {
	case verboseEncoding:
		return decodeVerbose(r, opts)
	case compactEncoding:
		return decodeCompact(r, br, opts)
	default:
		return nil, decodeFailure(opts, errors.Wrapf(ErrUnknownFormat, "digest: codec: tag %d", tag))
	}
}

// decodeFailure increments the codec.decode.errors counter on opts'
// metrics scope and returns err unchanged, so every decode failure path
// can report through the scope without constructing a Digest first.
func decodeFailure(opts Options, err error) error {
	newDigestMetrics(opts.MetricsScope()).incDecodeErrors()
	return err
}

// FromBytes is a convenience wrapper around ReadFrom for callers holding
// an in-memory buffer.
func FromBytes(buf []byte, opts Options) (*Digest, error) {
	return ReadFrom(bytes.NewReader(buf), opts)
}

func decodeVerbose(r io.Reader, opts Options) (*Digest, error) {
	var compression float64
	if err := binary.Read(r, binary.BigEndian, &compression); err != nil {
		return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated compression"))
	}
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated count"))
	}

	means := make([]float64, n)
	for i := range means {
		if err := binary.Read(r, binary.BigEndian, &means[i]); err != nil {
			return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated means"))
		}
	}
	counts := make([]int32, n)
	for i := range counts {
		if err := binary.Read(r, binary.BigEndian, &counts[i]); err != nil {
			return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated counts"))
		}
	}

	d, err := NewDigest(opts.SetCompression(compression))
	if err != nil {
		return nil, decodeFailure(opts, err)
	}
	for i := range means {
		if err := d.Add(means[i], int64(counts[i])); err != nil {
			return nil, decodeFailure(opts, err)
		}
	}
	return d, nil
}

func decodeCompact(r io.Reader, br io.ByteReader, opts Options) (*Digest, error) {
	var compression float64
	if err := binary.Read(r, binary.BigEndian, &compression); err != nil {
		return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated compression"))
	}
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated count"))
	}

	means := make([]float64, n)
	x := 0.0
	for i := range means {
		var delta float32
		if err := binary.Read(r, binary.BigEndian, &delta); err != nil {
			return nil, decodeFailure(opts, errors.Wrap(ErrTruncated, "digest: codec: truncated deltas"))
		}
		x += float64(delta)
		means[i] = x
	}

	counts := make([]int64, n)
	for i := range counts {
		v, err := decodeVarint(br)
		if err != nil {
			return nil, decodeFailure(opts, err)
		}
		counts[i] = v
	}

	d, err := NewDigest(opts.SetCompression(compression))
	if err != nil {
		return nil, decodeFailure(opts, err)
	}
	for i := range means {
		if err := d.Add(means[i], counts[i]); err != nil {
			return nil, decodeFailure(opts, err)
		}
	}
	return d, nil
}

// bufByteReader adapts an io.Reader without ReadByte into an io.ByteReader
// by reading a single byte at a time. Callers that care about decode
// throughput should pass a *bufio.Reader or *bytes.Reader instead, both of
// which already implement io.ByteReader directly.
type bufByteReader struct {
	io.Reader
}

func (b bufByteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.Reader, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
