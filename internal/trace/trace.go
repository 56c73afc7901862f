// Package trace records every dispatcher event into an in-memory SQLite
// database and replays the sequence for the plexa replay command and for
// golden-file tests (spec.md section 2's note that the core itself keeps
// no persisted state; this is a within-process recorder only, never
// written to disk).
package trace

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ratioSolver/PlExA/internal/executor"
	"github.com/ratioSolver/PlExA/internal/plan"
)

// Recorder implements executor.Listener, persisting every notification
// into an in-memory SQLite database so it can be replayed in order.
type Recorder struct {
	db *sql.DB
}

// Open creates a fresh in-memory recorder.
func Open() (*Recorder, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("trace: open: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE events (
		seq    INTEGER PRIMARY KEY AUTOINCREMENT,
		kind   TEXT NOT NULL,
		detail TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close releases the underlying in-memory database.
func (r *Recorder) Close() error { return r.db.Close() }

func (r *Recorder) insert(kind, detail string) {
	if _, err := r.db.Exec(`INSERT INTO events (kind, detail) VALUES (?, ?)`, kind, detail); err != nil {
		slog.Default().Error("trace: insert failed", "kind", kind, "err", err)
	}
}

func formatAtoms(atoms []plan.Atom) string {
	numeric := make([]uint64, len(atoms))
	for i, a := range atoms {
		numeric[i] = uint64(a.ID)
	}
	sort.Slice(numeric, func(i, j int) bool { return numeric[i] < numeric[j] })

	ids := make([]string, len(numeric))
	for i, n := range numeric {
		ids[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(ids, ",")
}

// ExecutorStateChanged implements executor.Listener.
func (r *Recorder) ExecutorStateChanged(s plan.State) { r.insert("state", s.String()) }

// Tick implements executor.Listener.
func (r *Recorder) Tick(t plan.InfRational) { r.insert("tick", t.String()) }

// Starting implements executor.Listener.
func (r *Recorder) Starting(atoms []plan.Atom) { r.insert("starting", formatAtoms(atoms)) }

// Start implements executor.Listener.
func (r *Recorder) Start(atoms []plan.Atom) { r.insert("start", formatAtoms(atoms)) }

// Ending implements executor.Listener.
func (r *Recorder) Ending(atoms []plan.Atom) { r.insert("ending", formatAtoms(atoms)) }

// End implements executor.Listener.
func (r *Recorder) End(atoms []plan.Atom) { r.insert("end", formatAtoms(atoms)) }

var _ executor.Listener = (*Recorder)(nil)

// Replay writes every recorded event to w, in the order it was recorded.
func (r *Recorder) Replay(w io.Writer) error {
	rows, err := r.db.Query(`SELECT seq, kind, detail FROM events ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("trace: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var kind, detail string
		if err := rows.Scan(&seq, &kind, &detail); err != nil {
			return fmt.Errorf("trace: scan: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%04d %-10s %s\n", seq, kind, detail); err != nil {
			return err
		}
	}
	return rows.Err()
}
