package download

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/gzip"
)

// maxBinarySize guards against decompression bombs.
const maxBinarySize = 512 << 20

// extractTarGz copies the regular file called name out of a gzip
// compressed tarball into dst.
func extractTarGz(r io.Reader, dst io.Writer, name string) (int64, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("not a gzip archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("archive does not contain %s", name)
		}
		if err != nil {
			return 0, fmt.Errorf("reading archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg || path.Base(header.Name) != name {
			continue
		}
		if header.Size > maxBinarySize {
			return 0, fmt.Errorf("%s is %d bytes, larger than allowed", name, header.Size)
		}
		n, err := io.Copy(dst, io.LimitReader(tr, maxBinarySize))
		if err != nil {
			return n, fmt.Errorf("extracting %s: %w", name, err)
		}
		return n, nil
	}
}
