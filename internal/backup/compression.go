package backup

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	apperrors "cms-instance-sync/internal/errors"
)

// CompressionType names a compression algorithm
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionLZ4  CompressionType = "lz4"
	CompressionZstd CompressionType = "zstd"
)

// CompressionStats contains statistics about a compression run
type CompressionStats struct {
	OriginalSize     int64
	CompressedSize   int64
	CompressionRatio float64
	Algorithm        CompressionType
	Level            int
	Duration         time.Duration
}

// ParseCompressionType validates a configured algorithm name
func ParseCompressionType(s string) (CompressionType, error) {
	switch t := CompressionType(s); t {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionLZ4, CompressionZstd:
		return t, nil
	default:
		return "", apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported compression algorithm: %s", s), nil).
			WithContext("path", "backup.compression")
	}
}

// Extension returns the file suffix for the algorithm, including the dot
func (t CompressionType) Extension() string {
	switch t {
	case CompressionGzip:
		return ".gz"
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// CalculateCompressionRatio calculates the compression ratio
func CalculateCompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 1.0
	}
	return float64(compressedSize) / float64(originalSize)
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// NewCompressWriter wraps w with a streaming compressor. A level <= 0 selects
// the algorithm default.
func NewCompressWriter(w io.Writer, algorithm CompressionType, level int) (io.WriteCloser, error) {
	switch algorithm {
	case CompressionGzip:
		if level <= 0 || level > gzip.BestCompression {
			level = gzip.DefaultCompression
		}
		return gzip.NewWriterLevel(w, level)
	case CompressionLZ4:
		writer := lz4.NewWriter(w)
		if level > 0 {
			if level >= len(lz4Levels) {
				level = len(lz4Levels) - 1
			}
			if err := writer.Apply(lz4.CompressionLevelOption(lz4Levels[level])); err != nil {
				return nil, err
			}
		}
		return writer, nil
	case CompressionZstd:
		opts := []zstd.EOption{}
		if level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		return zstd.NewWriter(w, opts...)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// NewDecompressReader wraps r with a streaming decompressor
func NewDecompressReader(r io.Reader, algorithm CompressionType) (io.ReadCloser, error) {
	switch algorithm {
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// CompressFile compresses src into src+extension and removes src once the
// result has been read back. With CompressionNone it returns src untouched.
func CompressFile(src string, algorithm CompressionType, level int) (string, *CompressionStats, error) {
	if algorithm == CompressionNone || algorithm == "" {
		return src, nil, nil
	}

	start := time.Now()
	dst := src + algorithm.Extension()

	in, err := os.Open(src)
	if err != nil {
		return "", nil, apperrors.NewBackupError("compress", "failed to open backup for compression", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", nil, apperrors.NewBackupError("compress", "failed to create compressed backup", err)
	}

	writer, err := NewCompressWriter(out, algorithm, level)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return "", nil, apperrors.NewBackupError("compress", fmt.Sprintf("failed to create %s writer", algorithm), err)
	}

	original, copyErr := io.Copy(writer, in)
	closeErr := writer.Close()
	fileErr := out.Close()
	for _, e := range []error{copyErr, closeErr, fileErr} {
		if e != nil {
			os.Remove(dst)
			return "", nil, apperrors.NewBackupError("compress", fmt.Sprintf("failed to write %s data", algorithm), e)
		}
	}

	if err := verifyCompressed(dst, algorithm, original); err != nil {
		os.Remove(dst)
		return "", nil, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", nil, apperrors.NewBackupError("compress", "failed to stat compressed backup", err)
	}
	if err := os.Remove(src); err != nil {
		return "", nil, apperrors.NewBackupError("compress", "failed to remove uncompressed backup", err)
	}

	return dst, &CompressionStats{
		OriginalSize:     original,
		CompressedSize:   info.Size(),
		CompressionRatio: CalculateCompressionRatio(original, info.Size()),
		Algorithm:        algorithm,
		Level:            level,
		Duration:         time.Since(start),
	}, nil
}

// verifyCompressed reads dst back and checks it inflates to want bytes
func verifyCompressed(dst string, algorithm CompressionType, want int64) error {
	in, err := os.Open(dst)
	if err != nil {
		return apperrors.NewBackupError("compress", "failed to reopen compressed backup", err)
	}
	defer in.Close()

	reader, err := NewDecompressReader(in, algorithm)
	if err != nil {
		return apperrors.NewBackupError("compress", fmt.Sprintf("failed to create %s reader", algorithm), err)
	}
	defer reader.Close()

	got, err := io.Copy(io.Discard, reader)
	if err != nil {
		return apperrors.NewBackupError("compress", fmt.Sprintf("compressed backup is not valid %s data", algorithm), err)
	}
	if got != want {
		return apperrors.NewBackupError("compress",
			fmt.Sprintf("compressed backup inflates to %d bytes, expected %d", got, want), nil).
			WithContext("path", dst)
	}
	return nil
}
