package vector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// File layout, little-endian: magic "RRVI", version (4), dimensions (4), count (4),
// count*dimensions float32 values, then a CRC-32 (IEEE) of everything before it.
const (
	codecMagic   = "RRVI"
	codecVersion = uint32(1)
	floatSize    = 4

	maxDimensions = 1 << 16
)

// WriteTo serializes the index to w.
func (f *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	h := crc32.NewIEEE()
	out := io.MultiWriter(cw, h)

	header := make([]byte, 0, 16)
	header = append(header, codecMagic...)
	header = binary.LittleEndian.AppendUint32(header, codecVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(f.dimensions))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(f.vectors)))
	if _, err := out.Write(header); err != nil {
		return cw.n, fmt.Errorf("write header: %w", err)
	}
	for i, vec := range f.vectors {
		if _, err := out.Write(float32SliceToBytes(vec)); err != nil {
			return cw.n, fmt.Errorf("write vector %d: %w", i, err)
		}
	}
	if err := binary.Write(cw, binary.LittleEndian, h.Sum32()); err != nil {
		return cw.n, fmt.Errorf("write checksum: %w", err)
	}
	return cw.n, nil
}

// ReadIndex deserializes an index written by WriteTo and expects r to end right after the
// checksum. Any malformed input is ErrCorruptStore.
func ReadIndex(r io.Reader) (*FlatIndex, error) {
	h := crc32.NewIEEE()
	in := io.TeeReader(r, h)

	header := make([]byte, 16)
	if _, err := io.ReadFull(in, header); err != nil {
		return nil, corrupt("read header", err)
	}
	if string(header[:4]) != codecMagic {
		return nil, corrupt("bad magic", nil)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != codecVersion {
		return nil, corrupt(fmt.Sprintf("unsupported version %d", v), nil)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	n := int(binary.LittleEndian.Uint32(header[12:16]))
	if dim == 0 || n == 0 || dim > maxDimensions {
		return nil, corrupt(fmt.Sprintf("bad shape (dimensions %d, count %d)", dim, n), nil)
	}

	vectors := make([][]float32, 0, min(n, 1<<16))
	buf := make([]byte, dim*floatSize)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, corrupt(fmt.Sprintf("read vector %d", i), err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	want := h.Sum32()
	var got uint32
	if err := binary.Read(r, binary.LittleEndian, &got); err != nil {
		return nil, corrupt("read checksum", err)
	}
	if got != want {
		return nil, corrupt("checksum mismatch", nil)
	}
	var extra [1]byte
	if k, _ := io.ReadFull(r, extra[:]); k != 0 {
		return nil, corrupt("trailing data after checksum", nil)
	}
	return &FlatIndex{dimensions: dim, vectors: vectors}, nil
}

// WriteFile writes the index to path and syncs it to disk.
func WriteFile(path string, f *FlatIndex) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	bw := bufio.NewWriter(file)
	if _, err := f.WriteTo(bw); err != nil {
		_ = file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	return file.Close()
}

// ReadFile loads an index from path.
func ReadFile(path string) (*FlatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, corrupt("index file missing", err)
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	return ReadIndex(bufio.NewReader(file))
}

func corrupt(msg string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: vector index: %s: %w", models.ErrCorruptStore, msg, err)
	}
	return fmt.Errorf("%w: vector index: %s", models.ErrCorruptStore, msg)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func float32SliceToBytes(s []float32) []byte {
	out := make([]byte, len(s)*floatSize)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*floatSize:(i+1)*floatSize], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/floatSize)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*floatSize : (i+1)*floatSize]))
	}
	return out
}
