package tracing

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/deltasim/sim"
)

// Record kinds written by the SQLiteTracer.
const (
	KindResume    = "resume"
	KindComplete  = "complete"
	KindAdvance   = "advance"
	KindTerminate = "terminate"
)

// A Record is one row of a trace database.
type Record struct {
	Seq    int64
	Kind   string
	TaskID string
	Name   string
	Time   sim.VTime
	Detail string
}

// SQLiteTracer is a hook that writes scheduler activity to a SQLite database.
// Records are buffered and written in batches.
type SQLiteTracer struct {
	*sql.DB
	statement *sql.Stmt

	lock      sync.Mutex
	dbName    string
	nextSeq   int64
	pending   []Record
	batchSize int
}

// NewSQLiteTracer creates a tracer that writes to path + ".sqlite3". An empty
// path picks a unique name. Buffered records are flushed when the program
// exits through atexit.
func NewSQLiteTracer(path string) *SQLiteTracer {
	t := &SQLiteTracer{
		dbName:    path,
		batchSize: 100000,
	}

	atexit.Register(func() {
		if err := t.Flush(); err != nil {
			logrus.WithError(err).Error("flushing trace at exit")
		}
	})

	return t
}

// WithBatchSize sets the number of records buffered before a write.
func (t *SQLiteTracer) WithBatchSize(n int) *SQLiteTracer {
	t.batchSize = n
	return t
}

// FileName returns the database file the tracer writes to.
func (t *SQLiteTracer) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init creates the database. The file must not exist yet.
func (t *SQLiteTracer) Init() error {
	if t.dbName == "" {
		t.dbName = "deltasim_trace_" + xid.New().String()
	}

	filename := t.FileName()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("tracing: file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}

	t.DB = db

	if err := t.createTable(); err != nil {
		return err
	}

	t.statement, err = t.Prepare(
		`INSERT INTO trace (seq, kind, task_id, name, time, detail)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	logrus.WithField("file", filename).Info("collecting trace")

	return nil
}

func (t *SQLiteTracer) createTable() error {
	for _, query := range []string{
		`create table trace
		(
			seq     integer      not null,
			kind    varchar(32)  not null,
			task_id varchar(200) default '',
			name    varchar(200) default '',
			time    integer      not null,
			detail  varchar(200) default ''
		);`,
		`create index trace_kind_index on trace (kind);`,
		`create index trace_task_id_index on trace (task_id);`,
		`create index trace_time_index on trace (time);`,
	} {
		if _, err := t.Exec(query); err != nil {
			return fmt.Errorf("tracing: create table: %w", err)
		}
	}

	return nil
}

// Func records the scheduler activity announced by the hook context.
func (t *SQLiteTracer) Func(ctx sim.HookCtx) {
	r := Record{Time: ctx.Now}

	switch ctx.Pos {
	case sim.HookPosBeforeResume:
		task := ctx.Item.(*sim.Task)
		r.Kind, r.TaskID, r.Name = KindResume, task.ID(), task.Name()
	case sim.HookPosTaskComplete:
		task := ctx.Item.(*sim.Task)
		r.Kind, r.TaskID, r.Name = KindComplete, task.ID(), task.Name()
	case sim.HookPosTimeAdvance:
		r.Kind = KindAdvance
		r.Detail = fmt.Sprint(ctx.Detail)
	case sim.HookPosTerminate:
		r.Kind = KindTerminate
		r.Detail = ctx.Item.(*sim.Termination).Message()
	default:
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	r.Seq = t.nextSeq
	t.nextSeq++
	t.pending = append(t.pending, r)

	if len(t.pending) >= t.batchSize {
		if err := t.flushLocked(); err != nil {
			logrus.WithError(err).Error("writing trace batch")
		}
	}
}

// Flush writes all the buffered records to the database.
func (t *SQLiteTracer) Flush() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.flushLocked()
}

func (t *SQLiteTracer) flushLocked() error {
	if len(t.pending) == 0 || t.DB == nil {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	stmt := tx.Stmt(t.statement)
	for _, r := range t.pending {
		_, err := stmt.Exec(r.Seq, r.Kind, r.TaskID, r.Name, int64(r.Time), r.Detail)
		if err != nil {
			return errors.Join(err, tx.Rollback())
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	t.pending = nil

	return nil
}

// Close flushes the buffered records and closes the database.
func (t *SQLiteTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}

	if t.DB == nil {
		return nil
	}

	return t.DB.Close()
}

// SQLiteTraceReader reads records from a trace database.
type SQLiteTraceReader struct {
	*sql.DB

	filename string
}

// NewSQLiteTraceReader creates a new SQLiteTraceReader.
func NewSQLiteTraceReader(filename string) *SQLiteTraceReader {
	return &SQLiteTraceReader{filename: filename}
}

// Init establishes a connection to the database.
func (r *SQLiteTraceReader) Init() error {
	db, err := sql.Open("sqlite3", r.filename)
	if err != nil {
		return err
	}

	r.DB = db

	return nil
}

// ListRecords returns the records of a kind in write order. An empty kind
// lists every record.
func (r *SQLiteTraceReader) ListRecords(kind string) ([]Record, error) {
	query := `SELECT seq, kind, task_id, name, time, detail FROM trace`
	args := []any{}

	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}

	query += ` ORDER BY seq`

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var t int64

		err := rows.Scan(&rec.Seq, &rec.Kind, &rec.TaskID, &rec.Name, &t, &rec.Detail)
		if err != nil {
			return nil, err
		}

		rec.Time = sim.VTime(t)
		records = append(records, rec)
	}

	return records, rows.Err()
}
