package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Downloader saves export bytes and returns an identifier for the saved copy.
type Downloader interface {
	Download(data []byte, filename string) (string, error)
}

// Filename returns the export file name for a day.
func Filename(day time.Time) string {
	return fmt.Sprintf("browsing-history-%s.csv", day.Format("2006-01-02"))
}

// FileDownloader writes exports into Dir. The identifier is the file path.
type FileDownloader struct {
	Dir      string
	Compress bool
}

// Download writes data atomically. With Compress set the file is zstd
// compressed and gets a .zst suffix.
func (d FileDownloader) Download(data []byte, filename string) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	dest := filepath.Join(d.Dir, filepath.Base(filename))
	if d.Compress {
		dest += ".zst"
	}

	tmp, err := os.CreateTemp(d.Dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := d.write(tmp, data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("move export into place: %w", err)
	}
	return dest, nil
}

func (d FileDownloader) write(w io.Writer, data []byte) error {
	if !d.Compress {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		return nil
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := io.Copy(encoder, bytes.NewReader(data)); err != nil {
		encoder.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}
	return nil
}

// Decompress reads a zstd compressed export back.
func Decompress(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	return io.ReadAll(decoder)
}
