package stats

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/fatih/structs"
	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/datarecording"
)

// Errors returned by Recorder table operations.
var (
	ErrTableExists    = errors.New("table already exists")
	ErrNoTable        = errors.New("table does not exist")
	ErrFieldType      = errors.New("unsupported field type")
	ErrRecorderClosed = errors.New("recorder is closed")
)

// DeviceRow is the summary of one device stored by a Recorder.
type DeviceRow struct {
	RunID                string
	Device               string
	Hits                 uint64
	Misses               uint64
	CompulsoryMisses     uint64
	ChildHits            uint64
	InclusiveInvalidates uint64
	CoherenceInvalidates uint64
	PrefetchHits         uint64
	PrefetchMisses       uint64
	Flushes              uint64
	WarmupHits           uint64
	WarmupMisses         uint64
	MissRate             float64
}

// Row summarizes the stats for a Recorder.
func (s *CacheStats) Row(runID string) DeviceRow {
	return DeviceRow{
		RunID:                runID,
		Device:               s.opts.Name,
		Hits:                 s.hits,
		Misses:               s.misses,
		CompulsoryMisses:     s.compulsoryMisses,
		ChildHits:            s.childHits,
		InclusiveInvalidates: s.inclusiveInvalidates,
		CoherenceInvalidates: s.coherenceInvalidates,
		PrefetchHits:         s.prefetchHits,
		PrefetchMisses:       s.prefetchMisses,
		Flushes:              s.flushes,
		WarmupHits:           s.hitsAtReset,
		WarmupMisses:         s.missesAtReset,
		MissRate:             s.MissRate(),
	}
}

// A Recorder stores result rows in a SQLite database through an akita data
// recorder. Rows are buffered and written in one transaction on Flush, which
// the data recorder also runs at program exit.
type Recorder struct {
	db       *sql.DB
	recorder datarecording.DataRecorder
	path     string
	runID    string
	tables   map[string]reflect.Type
	closed   bool
}

// NewRecorder creates the database <name>.sqlite3. An empty name generates
// one from the run ID. An existing file is never overwritten.
func NewRecorder(name string) (*Recorder, error) {
	runID := xid.New().String()
	if name == "" {
		name = "cachesim_" + runID
	}

	path := name + ".sqlite3"
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Connect now so the file exists even if no table is ever created.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &Recorder{
		db:       db,
		recorder: datarecording.NewDataRecorderWithDB(db),
		path:     path,
		runID:    runID,
		tables:   make(map[string]reflect.Type),
	}, nil
}

// RunID returns the ID stamped on every row of this run.
func (r *Recorder) RunID() string { return r.runID }

// Path returns the database file name.
func (r *Recorder) Path() string { return r.path }

// Tables returns the names of the tables created so far.
func (r *Recorder) Tables() []string {
	return r.recorder.ListTables()
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// CreateTable creates a table whose columns are the fields of sample.
func (r *Recorder) CreateTable(name string, sample any) (err error) {
	if r.closed {
		return ErrRecorderClosed
	}

	if _, ok := r.tables[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrTableExists)
	}

	for _, f := range structs.Fields(sample) {
		if !isAllowedKind(f.Kind()) {
			return fmt.Errorf("%s.%s: %w", name, f.Name(), ErrFieldType)
		}
	}

	defer recoverInto(&err, "create table "+name)

	r.recorder.CreateTable(name, sample)
	r.tables[name] = reflect.TypeOf(sample)

	return nil
}

// Insert buffers one row.
func (r *Recorder) Insert(name string, entry any) (err error) {
	if r.closed {
		return ErrRecorderClosed
	}

	t, ok := r.tables[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNoTable)
	}

	if reflect.TypeOf(entry) != t {
		return fmt.Errorf("%s: entry of type %T: %w", name, entry, ErrFieldType)
	}

	defer recoverInto(&err, "insert into "+name)

	r.recorder.InsertData(name, entry)

	return nil
}

// Flush writes all buffered rows. It does nothing once the recorder is
// closed.
func (r *Recorder) Flush() (err error) {
	if r.closed {
		return nil
	}

	defer recoverInto(&err, "flush "+r.path)

	r.recorder.Flush()

	return nil
}

// Close flushes and closes the database. Later calls do nothing.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}

	err := r.Flush()
	r.closed = true

	return errors.Join(err, r.db.Close())
}

// recoverInto turns a panic of the data recorder into an error.
func recoverInto(err *error, op string) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%s: %v", op, p)
	}
}
