package extent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dot5enko/extent-store/record"
)

// ScanFunc receives every record of one partition, on that partition's
// goroutine. The record is only valid during the call.
type ScanFunc func(thread int, rec record.Record) error

// ScanParallel partitions the extents of data by id modulo threads and scans
// each partition on its own goroutine. The first error cancels the rest.
func ScanParallel(ctx context.Context, data TabularData, threads int, filter func(rec record.Record) bool, fn ScanFunc) error {
	if threads <= 0 {
		threads = 1
	}

	g, ctx := errgroup.WithContext(ctx)

	for thread := 0; thread < threads; thread++ {
		thread := thread
		volume, err := NewPartitionVolume(data, thread, threads)
		if err != nil {
			return err
		}

		g.Go(func() error {
			reg := NewRecordRegister()

			var f Filter
			if filter != nil {
				f = Where(reg, filter)
			}

			reader := volume.OpenReader(reg, f)
			for reader.Advance() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(thread, reader.Record()); err != nil {
					return err
				}
			}
			return reader.Err()
		})
	}

	return g.Wait()
}
