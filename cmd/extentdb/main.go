package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dot5enko/extent-store/cell"
	"github.com/dot5enko/extent-store/extent"
	"github.com/dot5enko/extent-store/manager"
	"github.com/dot5enko/extent-store/record"
	"github.com/dot5enko/extent-store/schema"
)

const defaultSchema = "created_at date not null, value int not null, host string.32, latency double"

func timed(label string, items int, cb func() error) error {
	before := time.Now()

	err := cb()

	took := time.Since(before)
	perItem := took.Nanoseconds() / int64(max(items, 1))
	log.Printf(" %s took %s, %d ns per record", label, took, perItem)
	return err
}

func genFakeRecord(rng *rand.Rand, at time.Time) record.Record {
	return record.Of(
		cell.DateTime(at),
		cell.Int(rng.Int63n(50000)),
		cell.String(fmt.Sprintf("host-%02d", rng.Intn(16))),
		cell.Double(rng.Float64()*250),
	)
}

func ingest(k *manager.Kernel, dir, name string, rows int, pageSize string) error {
	page, err := humanize.ParseBytes(pageSize)
	if err != nil {
		return err
	}

	s := schema.MustParse(defaultSchema)
	table, err := k.CreateTable(dir, name, s, int64(page))
	if err != nil {
		return err
	}

	w, err := table.OpenWriter()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now().UTC()

	err = timed("ingest", rows, func() error {
		for i := 0; i < rows; i++ {
			if err := w.Insert(genFakeRecord(rng, start.Add(time.Duration(i)*time.Second))); err != nil {
				return err
			}
		}
		return w.Close()
	})
	if err != nil {
		return err
	}

	color.Green(" +++ ingested %d records into %d extents", table.RecordCount(), table.ExtentCount())
	return nil
}

func sortTable(k *manager.Kernel, dir, name, keyText string) error {
	table, err := k.OpenTable(dir, name)
	if err != nil {
		return err
	}

	key, err := schema.ParseKey(keyText, table.Columns())
	if err != nil {
		return err
	}

	sm := extent.NewSortMaster()
	err = timed("sort", int(table.RecordCount()), func() error {
		return sm.SortTable(table, key)
	})
	if err != nil {
		return err
	}

	color.Yellow(" sorted %s by [%s] with %d comparisons", name, key, sm.Comparisons())
	return nil
}

func scan(k *manager.Kernel, dir, name string, threads int, minValue int64) error {
	table, err := k.OpenTable(dir, name)
	if err != nil {
		return err
	}

	valueIdx := table.Columns().IndexOf("value")
	if valueIdx < 0 {
		return fmt.Errorf("table `%s` has no `value` column", name)
	}

	var matched atomic.Int64
	filter := func(r record.Record) bool {
		return r[valueIdx].ValueInt() >= minValue
	}

	err = timed("scan", int(table.RecordCount()), func() error {
		return extent.ScanParallel(context.Background(), table, threads, filter, func(int, record.Record) error {
			matched.Add(1)
			return nil
		})
	})
	if err != nil {
		return err
	}

	color.Cyan(" %d of %d records have value >= %d", matched.Load(), table.RecordCount(), minValue)
	return nil
}

func stats(k *manager.Kernel, dir, name string) error {
	table, err := k.OpenTable(dir, name)
	if err != nil {
		return err
	}

	h := table.Header()
	fmt.Printf("table %s\n  schema: %s\n  key: [%s]\n  page: %s, extents: %d, records: %d\n",
		h.Path(), table.Columns(), table.SortBy(), humanize.IBytes(uint64(h.PageSize)), table.ExtentCount(), table.RecordCount())

	for i, ref := range table.RefRecords() {
		fmt.Printf("  extent %d: %s records\n", i, ref[1])
	}
	return nil
}

func dump(k *manager.Kernel, dir, name string, id int) error {
	table, err := k.OpenTable(dir, name)
	if err != nil {
		return err
	}

	e, err := table.GetExtent(id)
	if err != nil {
		return err
	}
	e.Dump(os.Stdout)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: extentdb [flags] ingest|sort|scan|stats|dump|drop\n")
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "", "kernel config yaml")
		dir        = flag.String("dir", "./storage", "storage directory")
		name       = flag.String("table", "health_checks", "table name")
		rows       = flag.Int("rows", 100_000, "records to ingest")
		page       = flag.String("page", "64KiB", "extent page size")
		keyText    = flag.String("key", "value asc", "sort key")
		threads    = flag.Int("threads", 4, "scan threads")
		minValue   = flag.Int64("min", 25_000, "scan filter: minimum value")
		extentID   = flag.Int("extent", 0, "extent to dump")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	config := manager.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = manager.LoadConfig(*configPath); err != nil {
			log.Fatalf("unable to load config: %s", err)
		}
	}
	if *verbose {
		config.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(config.Logger)
	}

	k, err := manager.New(config)
	if err != nil {
		log.Fatalf("unable to start kernel: %s", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "ingest":
		err = ingest(k, *dir, *name, *rows, *page)
	case "sort":
		err = sortTable(k, *dir, *name, *keyText)
	case "scan":
		err = scan(k, *dir, *name, *threads, *minValue)
	case "stats":
		err = stats(k, *dir, *name)
	case "dump":
		err = dump(k, *dir, *name, *extentID)
	case "drop":
		err = k.RequestDropTable(schema.NewTableHeader(*dir, *name, 0).Path())
	default:
		usage()
		os.Exit(2)
	}

	shutdownErr := k.ShutDown()
	log.Printf(" kernel stats: %s", k.Stats())

	if err != nil {
		log.Fatalf("%s failed: %s", flag.Arg(0), err)
	}
	if shutdownErr != nil {
		log.Fatalf("shutdown failed: %s", shutdownErr)
	}
}
