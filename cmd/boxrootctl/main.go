// Command boxrootctl prints a boxroot registry's statistics snapshot.
// It is ambient tooling, not part of the allocator itself: it prints the
// internal/stats counters of its own process and has no option to read
// them from another process.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/boxroot-go/boxroot/internal/stats"
)

var (
	app     = kingpin.New("boxrootctl", "Inspect a boxroot registry's allocator statistics.")
	asJSON  = app.Flag("json", "Print as JSON instead of a table.").Bool()
	watch   = app.Flag("watch", "Repeat the snapshot on an interval.").Duration()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "boxrootctl: logger init:", err)
		os.Exit(1)
	}
	sugar := log.Sugar()

	print := func() {
		snap := stats.Snapshot()
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				sugar.Errorw("encode snapshot", "error", err)
			}
			return
		}
		printTable(snap)
	}

	print()
	for *watch > 0 {
		time.Sleep(*watch)
		print()
	}
}

func printTable(s stats.Counters) {
	rows := []struct {
		name  string
		value int64
	}{
		{"live_pools", s.LivePools},
		{"peak_pools", s.PeakPools},
		{"total_alloced_pools", s.TotalAllocedPools},
		{"total_emptied_pools", s.TotalEmptiedPools},
		{"total_freed_pools", s.TotalFreedPools},
		{"total_create_slow", s.TotalCreateSlow},
		{"total_delete_slow", s.TotalDeleteSlow},
		{"total_modify_slow", s.TotalModifySlow},
		{"total_gc_pool_rings", s.TotalGCPoolRings},
		{"minor_collections", s.MinorCollections},
		{"major_collections", s.MajorCollections},
		{"scanning_work_minor", s.TotalScanningWorkMinor},
		{"scanning_work_major", s.TotalScanningWorkMajor},
		{"ring_operations", s.RingOperations},
	}
	for _, r := range rows {
		fmt.Printf("%-24s %d\n", r.name, r.value)
	}
}
