package extent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

// WriteManager admits record batches from any number of goroutines. Its lock
// serializes batch admission and page rollover.
type WriteManager interface {
	// AddExtent appends every record of batch.
	AddExtent(batch *Extent) error
	// GetExtent returns an empty shell to stage the next batch in.
	GetExtent() *Extent
	// Collapse persists what is left and releases the manager.
	Collapse() error
}

// TableWriteManager keeps the one open extent of a table. Every writer of the
// table shares it. Batches that do not fit are split: the open extent is
// filled and persisted, and a fresh extent takes the remainder. A partial
// extent is persisted by Collapse.
type TableWriteManager struct {
	mu    sync.Mutex
	table *Table

	current *Extent

	// current already belongs to the table and is written back with SetExtent
	existing bool
	dirty    bool

	closed bool
}

var (
	_ WriteManager = (*TableWriteManager)(nil)
	_ WriteManager = (*ExtentWriteManager)(nil)
)

// NewTableWriteManager returns the write manager of t, opening it when no
// writer holds it yet. Every call must be matched by one Collapse.
func NewTableWriteManager(t *Table) (*TableWriteManager, error) {
	return t.acquireWriter()
}

// openTableWriteManager starts on the table's last extent when it still has
// room, otherwise on a fresh one.
func openTableWriteManager(t *Table) (*TableWriteManager, error) {
	m := &TableWriteManager{table: t}

	if t.ExtentCount() > 0 {
		last, err := t.PopLast()
		if err != nil {
			return nil, err
		}
		if !last.IsFull() {
			m.current = last
			m.existing = true
		}
	}

	if m.current == nil {
		m.current = t.NewShell()
	}
	return m, nil
}

// Current is the extent batches are appended to.
func (m *TableWriteManager) Current() *Extent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *TableWriteManager) GetExtent() *Extent {
	return m.table.NewShell()
}

func (m *TableWriteManager) AddExtent(batch *Extent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.table.Columns().Equal(batch.Columns()) {
		return fmt.Errorf("batch schema `%s` does not match table `%s`: %w", batch.Columns(), m.table.Header().Name, ErrConsistency)
	}
	if m.current.Capacity() == 0 {
		return fmt.Errorf("page size %d of table `%s` cannot hold a single record: %w", m.table.Header().PageSize, m.table.Header().Name, ErrCapacity)
	}

	rows := batch.Records()
	for len(rows) > 0 {
		take := min(m.current.Remaining(), len(rows))
		for _, rec := range rows[:take] {
			m.current.UnsafeAdd(rec)
		}
		rows = rows[take:]
		m.dirty = m.dirty || take > 0

		if m.current.IsFull() {
			if err := m.persist(); err != nil {
				return err
			}
			slog.Debug("extent rolled over", "table", m.table.Header().Name, "extents", m.table.ExtentCount())
			m.current = m.table.NewShell()
			m.existing = false
		}
	}
	return nil
}

// persist hands the open extent to the table. Callers hold m.mu.
func (m *TableWriteManager) persist() error {
	if !m.dirty || m.current.Count() == 0 {
		return nil
	}

	var err error
	if m.existing {
		err = m.table.SetExtent(m.current)
	} else {
		err = m.table.AddExtent(m.current)
	}
	if err != nil {
		return err
	}

	m.existing = true
	m.dirty = false
	return nil
}

// Collapse persists the open extent for the calling writer. The last writer
// also detaches the manager from the table and runs the closing flush.
func (m *TableWriteManager) Collapse() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	err := m.persist()
	if !m.table.releaseWriter() {
		return err
	}

	m.closed = true
	if err != nil {
		return err
	}
	return m.table.CursorClose()
}

// ExtentWriteManager writes into a single extent. It cannot open new pages, so
// a batch that would overflow the extent fails as a whole.
type ExtentWriteManager struct {
	mu     sync.Mutex
	target *Extent
}

func NewExtentWriteManager(e *Extent) *ExtentWriteManager {
	return &ExtentWriteManager{target: e}
}

func (m *ExtentWriteManager) GetExtent() *Extent {
	h := m.target.Header()
	return New(schema.NewTempHeader(h.Directory, h.PageSize), m.target.Columns())
}

func (m *ExtentWriteManager) AddExtent(batch *Extent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.target.Columns().Equal(batch.Columns()) {
		return fmt.Errorf("batch schema `%s` does not match extent `%s`: %w", batch.Columns(), m.target.Header().Name, ErrConsistency)
	}
	if m.target.Count()+batch.Count() > m.target.Capacity() {
		return fmt.Errorf("batch of %d records does not fit extent `%s` with %d of %d records: %w",
			batch.Count(), m.target.Header().Name, m.target.Count(), m.target.Capacity(), ErrCapacity)
	}

	for _, rec := range batch.Records() {
		m.target.UnsafeAdd(rec)
	}
	return nil
}

// Collapse flushes the extent when it is attached to a store.
func (m *ExtentWriteManager) Collapse() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.target.Store(); s != nil {
		return s.RequestFlushExtent(m.target)
	}
	return nil
}

// RecordWriter is the single-producer write surface.
type RecordWriter interface {
	Insert(rec record.Record) error
	Close() error
}

// TableWriter stages records in a shell extent and hands every full shell to
// its write manager.
type TableWriter struct {
	manager WriteManager
	schema  *schema.Schema
	checked bool

	shell  *Extent
	closed bool
}

func newTableWriter(m WriteManager, s *schema.Schema, checked bool) *TableWriter {
	return &TableWriter{
		manager: m,
		schema:  s,
		checked: checked,
		shell:   m.GetExtent(),
	}
}

// NewTableWriter writes through any write manager. Checked writers validate
// every record against s.
func NewTableWriter(m WriteManager, s *schema.Schema, checked bool) *TableWriter {
	return newTableWriter(m, s, checked)
}

func (w *TableWriter) Insert(rec record.Record) error {
	if w.closed {
		return ErrClosed
	}

	rec = rec.Clone()
	if w.checked {
		if err := w.schema.Check(rec, true); err != nil {
			return err
		}
	} else if len(rec) != w.schema.Count() {
		return fmt.Errorf("record has %d fields, schema has %d: %w", len(rec), w.schema.Count(), schema.ErrSchemaViolation)
	}

	w.shell.UnsafeAdd(rec)
	if w.shell.IsFull() {
		return w.flush()
	}
	return nil
}

func (w *TableWriter) flush() error {
	if w.shell.Count() == 0 {
		return nil
	}
	batch := w.shell
	w.shell = w.manager.GetExtent()
	return w.manager.AddExtent(batch)
}

// Close pushes the staged records and collapses the manager.
func (w *TableWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.flush()
	collapseErr := w.manager.Collapse()
	if flushErr != nil {
		return flushErr
	}
	return collapseErr
}
