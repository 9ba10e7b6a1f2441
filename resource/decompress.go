package resource

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the on-disk compression of a resolved file,
// detected from magic bytes rather than the filename.
type Compression int

const (
	// CompressionNone means the file is readable as-is.
	CompressionNone Compression = iota
	// CompressionGzip is a gzip stream (magic 1f 8b).
	CompressionGzip
	// CompressionZstd is a zstd stream (magic 28 b5 2f fd).
	CompressionZstd
	// CompressionBzip2 is a bzip2 stream (magic "BZh").
	CompressionBzip2
	// CompressionZip is a zip archive (magic "PK"); the first member is
	// taken as the payload.
	CompressionZip
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionBzip2:
		return "bzip2"
	case CompressionZip:
		return "zip"
	default:
		return "none"
	}
}

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicBzh  = []byte("BZh")
	magicZip  = []byte("PK")
)

// Sniff detects the compression of a file from its leading bytes.
func Sniff(path string) (Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return CompressionNone, err
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return CompressionNone, nil
		}
		return CompressionNone, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, magicGzip):
		return CompressionGzip, nil
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZstd, nil
	case bytes.HasPrefix(head, magicBzh):
		return CompressionBzip2, nil
	case bytes.HasPrefix(head, magicZip):
		return CompressionZip, nil
	default:
		return CompressionNone, nil
	}
}

// decompressTo writes the decompressed payload of src to dst.
func decompressTo(src, dst string, kind Compression) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	var payload io.Reader
	var cleanup func() error
	switch kind {
	case CompressionGzip:
		gr, err := gzip.NewReader(in)
		if err != nil {
			return fmt.Errorf("gzip %s: %w", src, err)
		}
		payload = gr
		cleanup = gr.Close
	case CompressionZstd:
		zr, err := zstd.NewReader(in)
		if err != nil {
			return fmt.Errorf("zstd %s: %w", src, err)
		}
		payload = zr.IOReadCloser()
		cleanup = func() error { zr.Close(); return nil }
	case CompressionBzip2:
		payload = bzip2.NewReader(in)
	case CompressionZip:
		zr, err := zip.OpenReader(src)
		if err != nil {
			return fmt.Errorf("zip %s: %w", src, err)
		}
		defer zr.Close()
		if len(zr.File) == 0 {
			return fmt.Errorf("zip %s: no members", src)
		}
		member, err := zr.File[0].Open()
		if err != nil {
			return fmt.Errorf("zip %s: %w", src, err)
		}
		payload = member
		cleanup = member.Close
	default:
		return fmt.Errorf("decompress %s: not compressed", src)
	}
	if cleanup != nil {
		defer func() {
			if cerr := cleanup(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, payload); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	return out.Close()
}
