// Package trace reads memory-reference traces in the simulator's text
// format, one reference per line:
//
//	<pid> <tid> <kind> <addr> <size> <pc>
//	<pid> <tid> marker <marker type> <value>
//	<pid> <tid> thread_exit
//
// Numbers may be decimal or 0x-prefixed hex. Blank lines and lines starting
// with '#' are skipped. Files ending in .gz, .zst or .lz4 are decompressed.
package trace

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/sarchlab/cachesim/memref"
)

// ErrSyntax is returned for a line that is not a valid reference.
var ErrSyntax = errors.New("trace syntax error")

// Reader reads references one at a time.
type Reader struct {
	scanner *bufio.Scanner
	closers []io.Closer
	line    int
}

// NewReader reads an uncompressed trace from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Reader{scanner: sc}
}

// Open opens a trace file. "-" reads standard input.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}

	var (
		src     io.Reader = f
		closers           = []io.Closer{f}
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip trace: %w", err)
		}

		src = gz
		closers = append([]io.Closer{gz}, closers...)
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd trace: %w", err)
		}

		src = dec
		closers = append([]io.Closer{closerFunc(func() error {
			dec.Close()
			return nil
		})}, closers...)
	case ".lz4":
		src = lz4.NewReader(f)
	}

	r := NewReader(src)
	r.closers = closers

	return r, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Next returns the next reference, or io.EOF at the end of the trace.
func (r *Reader) Next() (memref.Ref, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}

		ref, err := Parse(text)
		if err != nil {
			return memref.Ref{}, fmt.Errorf("line %d: %w", r.line, err)
		}

		return ref, nil
	}

	if err := r.scanner.Err(); err != nil {
		return memref.Ref{}, err
	}

	return memref.Ref{}, io.EOF
}

// Stream sends the trace in batches of up to batchSize references until the
// trace ends, an error occurs or ctx is done. It does not close out.
func (r *Reader) Stream(
	ctx context.Context,
	batchSize int,
	out chan<- []memref.Ref,
) error {
	batch := make([]memref.Ref, 0, batchSize)

	send := func() error {
		select {
		case out <- batch:
			batch = make([]memref.Ref, 0, batchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		ref, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		batch = append(batch, ref)
		if len(batch) == batchSize {
			if err := send(); err != nil {
				return err
			}
		}
	}

	if len(batch) > 0 {
		return send()
	}

	return nil
}

// Close closes the decompressor and the file.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

// Parse parses one trace line.
func Parse(line string) (memref.Ref, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return memref.Ref{}, fmt.Errorf("%q: %w", line, ErrSyntax)
	}

	pid, err := strconv.ParseUint(fields[0], 0, 32)
	if err != nil {
		return memref.Ref{}, fmt.Errorf("pid %q: %w", fields[0], ErrSyntax)
	}

	tid, err := strconv.ParseInt(fields[1], 0, 64)
	if err != nil {
		return memref.Ref{}, fmt.Errorf("tid %q: %w", fields[1], ErrSyntax)
	}

	kind, err := memref.ParseKind(fields[2])
	if err != nil {
		return memref.Ref{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	ref := memref.Ref{Kind: kind, PID: vm.PID(pid), TID: tid}

	switch kind {
	case memref.KindThreadExit:
		return ref, nil
	case memref.KindMarker:
		nums, err := parseNumbers(fields[3:], 2)
		if err != nil {
			return memref.Ref{}, err
		}

		ref.MarkerType = memref.MarkerType(nums[0])
		ref.MarkerValue = nums[1]

		return ref, nil
	}

	nums, err := parseNumbers(fields[3:], 3)
	if err != nil {
		return memref.Ref{}, err
	}

	ref.Addr, ref.Size, ref.PC = nums[0], nums[1], nums[2]

	return ref, nil
}

func parseNumbers(fields []string, n int) ([]uint64, error) {
	if len(fields) != n {
		return nil, fmt.Errorf("want %d numbers, got %d: %w", n, len(fields), ErrSyntax)
	}

	nums := make([]uint64, n)
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, ErrSyntax)
		}

		nums[i] = v
	}

	return nums, nil
}

// Format renders a reference as a trace line.
func Format(ref memref.Ref) string {
	switch ref.Kind {
	case memref.KindThreadExit:
		return fmt.Sprintf("%d %d %s", ref.PID, ref.TID, ref.Kind)
	case memref.KindMarker:
		return fmt.Sprintf("%d %d %s %d %d",
			ref.PID, ref.TID, ref.Kind, ref.MarkerType, ref.MarkerValue)
	default:
		return fmt.Sprintf("%d %d %s 0x%x %d 0x%x",
			ref.PID, ref.TID, ref.Kind, ref.Addr, ref.Size, ref.PC)
	}
}
