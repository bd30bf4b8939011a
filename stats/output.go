package stats

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// output is a buffered file, optionally behind a compressor. Closing it
// flushes every layer and closes the file.
type output struct {
	*bufio.Writer
	encoder io.WriteCloser
	file    *os.File
}

// CreateOutput creates a text output file. The extension selects the
// compression: .gz, .zst, .lz4 or none.
func CreateOutput(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	o := &output{file: f}

	var sink io.Writer = f

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		o.encoder = gzip.NewWriter(f)
	case ".zst":
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}

		o.encoder = enc
	case ".lz4":
		o.encoder = lz4.NewWriter(f)
	}

	if o.encoder != nil {
		sink = o.encoder
	}

	o.Writer = bufio.NewWriter(sink)

	return o, nil
}

func (o *output) Close() error {
	errs := []error{o.Flush()}

	if o.encoder != nil {
		errs = append(errs, o.encoder.Close())
	}

	errs = append(errs, o.file.Close())

	return errors.Join(errs...)
}
