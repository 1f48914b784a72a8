package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dot5enko/extent-store/codec"
	"github.com/dot5enko/extent-store/compression"
	"github.com/dot5enko/extent-store/extent"
	"github.com/dot5enko/extent-store/io"
	"github.com/dot5enko/extent-store/manager/cache"
	"github.com/dot5enko/extent-store/schema"
)

var (
	ErrKernelClosed = errors.New("kernel is shut down")
	ErrExists       = errors.New("already exists")
)

// Kernel is the page cache in front of the extent and table files. Flushes are
// kept in memory while the budget allows ("virtual" writes) and written to
// disk otherwise; buffer requests are served from memory when possible.
type Kernel struct {
	id     uuid.UUID
	config Config
	log    *slog.Logger

	provider codec.Provider

	budget  *cache.Budget
	extents *cache.Manager[*extent.Extent]
	tables  *cache.Manager[*extent.Table]
	buffers *cache.BufferPool

	loads singleflight.Group
	stats counters

	closed atomic.Bool
}

var _ extent.Store = (*Kernel)(nil)

func New(config Config) (*Kernel, error) {
	provider, err := codec.ForVersion(config.Version)
	if err != nil {
		return nil, err
	}
	if config.Compression > compression.StateZstd {
		return nil, fmt.Errorf("kernel config: %w", compression.ErrUnknownState)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.EncodeBuffers <= 0 {
		config.EncodeBuffers = 1
	}

	budget := cache.NewBudget(config.MaxItems, config.MaxMemory)
	k := &Kernel{
		id:       uuid.New(),
		config:   config,
		provider: provider,
		budget:   budget,
		extents:  cache.NewManager[*extent.Extent](budget),
		tables:   cache.NewManager[*extent.Table](budget),
		buffers:  cache.NewBufferPool(config.EncodeBuffers, config.EncodeBufferSize),
	}
	k.log = config.Logger.With("kernel", k.id.String())

	color.Green(" +++ kernel %s started [v%d, %s] budget %d bytes / %d items", k.id, provider.Version(), config.Compression, config.MaxMemory, config.MaxItems)
	return k, nil
}

func (k *Kernel) ID() uuid.UUID {
	return k.id
}

func (k *Kernel) checkOpen() error {
	if k.closed.Load() {
		return ErrKernelClosed
	}
	return nil
}

// RequestFlushExtent keeps e in the cache when it is already cached or fits
// the budget, and writes it to disk otherwise.
func (k *Kernel) RequestFlushExtent(e *extent.Extent) error {
	if err := k.checkOpen(); err != nil {
		return err
	}
	if e.Store() == nil {
		e.SetStore(k)
	}

	path := e.Header().Path()
	if k.extents.Put(path, e, int64(e.MemCost())) {
		k.stats.virtualWrites.Add(1)
		k.log.Debug("virtual write", "path", path, "records", e.Count())
		e.MarkPersisted()
		return nil
	}

	if err := k.writeDisk(path, e); err != nil {
		return err
	}
	e.MarkPersisted()
	return nil
}

func (k *Kernel) RequestFlushTable(t *extent.Table) error {
	if err := k.checkOpen(); err != nil {
		return err
	}

	path := t.Header().Path()
	if k.tables.Put(path, t, int64(t.MemCost())) {
		k.stats.virtualWrites.Add(1)
		k.log.Debug("virtual write", "path", path, "extents", t.ExtentCount())
		t.MarkPersisted()
		return nil
	}

	if err := k.writeDisk(path, t); err != nil {
		return err
	}
	t.MarkPersisted()
	return nil
}

func (k *Kernel) writeDisk(path string, data extent.TabularData) error {
	scratch, ok := k.buffers.TryGet()
	if ok {
		defer k.buffers.Return(scratch)
	}

	image, err := codec.Encode(scratch, k.provider, k.config.Compression, data)
	if err != nil {
		return fmt.Errorf("unable to encode %s: %w", path, err)
	}
	if err := io.WriteFile(path, image); err != nil {
		return err
	}

	k.stats.diskWrites.Add(1)
	k.log.Debug("disk write", "path", path, "bytes", len(image))
	return nil
}

func (k *Kernel) readFrame(path string) (*codec.Frame, error) {
	buf, err := io.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, extent.ErrNotFound)
		}
		return nil, err
	}

	frame, err := codec.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}

	k.stats.diskReads.Add(1)
	k.log.Debug("disk read", "path", path, "bytes", len(buf), "version", frame.Version)
	return frame, nil
}

// RequestBufferExtent serves the extent at path from the cache, or reads it
// from disk and caches it when the budget admits it. Concurrent disk reads of
// one path are collapsed into a single load.
func (k *Kernel) RequestBufferExtent(path string) (*extent.Extent, error) {
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if e, ok := k.extents.Get(path); ok {
		k.stats.virtualReads.Add(1)
		return e, nil
	}

	v, err, _ := k.loads.Do("extent:"+path, func() (any, error) {
		frame, err := k.readFrame(path)
		if err != nil {
			return nil, err
		}
		e, err := frame.Extent()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		e.SetStore(k)

		actual, _ := k.extents.LoadOrStore(path, e, int64(e.MemCost()))
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*extent.Extent), nil
}

func (k *Kernel) RequestBufferTable(path string) (*extent.Table, error) {
	if err := k.checkOpen(); err != nil {
		return nil, err
	}
	if t, ok := k.tables.Get(path); ok {
		k.stats.virtualReads.Add(1)
		return t, nil
	}

	v, err, _ := k.loads.Do("table:"+path, func() (any, error) {
		frame, err := k.readFrame(path)
		if err != nil {
			return nil, err
		}
		t, err := frame.Table(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		actual, _ := k.tables.LoadOrStore(path, t, int64(t.MemCost()))
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*extent.Table), nil
}

// CreateTable makes an empty table in dir and flushes it.
func (k *Kernel) CreateTable(dir, name string, s *schema.Schema, pageSize int64) (*extent.Table, error) {
	h := schema.NewTableHeader(dir, name, pageSize)
	if k.Exists(h.Path()) {
		return nil, fmt.Errorf("table %s: %w", h.Path(), ErrExists)
	}

	t := extent.NewTable(h, s, k)
	if err := t.RequestFlushMe(); err != nil {
		return nil, err
	}

	color.Green(" +++ created table %s [%s] page %d bytes", h.Path(), s, pageSize)
	return t, nil
}

// CreateExtent makes a standalone extent bound to the kernel. Nothing is
// written until the extent is flushed.
func (k *Kernel) CreateExtent(dir, name string, s *schema.Schema, pageSize int64) *extent.Extent {
	e := extent.New(schema.NewExtentHeader(dir, name, pageSize), s)
	e.SetStore(k)
	return e
}

func (k *Kernel) OpenTable(dir, name string) (*extent.Table, error) {
	return k.RequestBufferTable(schema.NewTableHeader(dir, name, 0).Path())
}

// Exists reports whether path is cached or present on disk.
func (k *Kernel) Exists(path string) bool {
	return k.extents.Contains(path) || k.tables.Contains(path) || io.Exists(path)
}

// RequestDropTable deletes the table at path with every extent that is a
// member of it, both cached and on disk.
func (k *Kernel) RequestDropTable(path string) error {
	t, err := k.RequestBufferTable(path)
	if err != nil {
		return err
	}

	h := t.Header()
	dropped := k.extents.RemoveIf(func(_ string, e *extent.Extent) bool {
		return e.Header().IsMemberOf(h)
	})

	var errs []error
	for i := 0; i < t.ExtentCount(); i++ {
		errs = append(errs, io.RemoveFile(t.ExtentPath(i)))
	}

	k.tables.Remove(path)
	errs = append(errs, io.RemoveFile(path))

	color.Red(" --- dropped table %s with %d extents (%d cached)", path, t.ExtentCount(), len(dropped))
	return errors.Join(errs...)
}

func (k *Kernel) RequestDropExtent(path string) error {
	if err := k.checkOpen(); err != nil {
		return err
	}
	k.extents.Remove(path)
	return io.RemoveFile(path)
}

// ClearCache writes every cached item to disk and empties the cache.
func (k *Kernel) ClearCache() error {
	var errs []error

	for _, entry := range k.extents.Entries() {
		if err := k.writeDisk(entry.Path, entry.Item); err != nil {
			errs = append(errs, err)
			continue
		}
		k.extents.Remove(entry.Path)
	}
	for _, entry := range k.tables.Entries() {
		if err := k.writeDisk(entry.Path, entry.Item); err != nil {
			errs = append(errs, err)
			continue
		}
		k.tables.Remove(entry.Path)
	}

	color.Yellow(" >> kernel %s cache cleared: %s", k.id, k.Stats())
	return errors.Join(errs...)
}

// ShutDown clears the cache and refuses any later request.
func (k *Kernel) ShutDown() error {
	if k.closed.Load() {
		return nil
	}

	err := k.ClearCache()
	k.closed.Store(true)

	k.log.Info("kernel stopped", "disk_writes", k.stats.diskWrites.Load(), "virtual_writes", k.stats.virtualWrites.Load())
	return err
}

func (k *Kernel) Stats() Stats {
	return Stats{
		DiskReads:     k.stats.diskReads.Load(),
		DiskWrites:    k.stats.diskWrites.Load(),
		VirtualReads:  k.stats.virtualReads.Load(),
		VirtualWrites: k.stats.virtualWrites.Load(),
		Memory:        k.budget.Memory(),
		MaxMemory:     k.budget.MaxMemory(),
		Items:         k.budget.Items(),
		Tables:        k.tables.Len(),
		Extents:       k.extents.Len(),
	}
}

// Candidates lists the cached paths in admission order.
func (k *Kernel) Candidates() []string {
	return k.budget.Candidates()
}
