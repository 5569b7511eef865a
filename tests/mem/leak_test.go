//go:build test

package mem

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/texserve/pkg/engine"
	"github.com/charmbracelet/log"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

var latexScopes = []string{"text.tex.latex"}

var testLines = []string{
	"\\s", "\\se", "\\sec", "\\sect", "\\section",
	"\\b", "\\be", "\\beg", "\\begi", "\\begin",
	"\\e", "\\em", "\\emp", "\\emph",
	"\\t", "\\te", "\\tex", "\\text", "\\textbf",
	"\\c", "\\ci", "\\cit", "\\cite",
}

var longPatterns = [][]string{
	{"\\s", "\\su", "\\sub", "\\subs", "\\subse", "\\subsec", "\\subsection"},
	{"\\i", "\\in", "\\inc", "\\incl", "\\inclu", "\\includ", "\\include", "\\includegraphics"},
	{"\\u", "\\us", "\\use", "\\usep", "\\usepa", "\\usepackage"},
	{"\\f", "\\fo", "\\foo", "\\foot", "\\footn", "\\footnote"},
	{"\\l", "\\la", "\\lab", "\\labe", "\\label"},
	{"\\r", "\\re", "\\ref"},
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.PackagesEnabled = false
	cfg.CitationsEnabled = false
	eng := engine.New(cfg)
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("engine load failed: %v", err)
	}
	return eng
}

func complete(eng *engine.Engine, doc, line string) {
	res := eng.Complete(context.Background(), engine.Request{DocID: doc, Line: line, Scopes: latexScopes})
	_ = res
}

func TestMemoryLeakBasic(t *testing.T) {
	iterations := []int{100, 500, 1000, 2500}

	for _, iterCount := range iterations {
		t.Run(fmt.Sprintf("iterations_%d", iterCount), func(t *testing.T) {
			runBasicMemoryTest(t, iterCount, testLines)
		})
	}
}

func TestMemoryLeakConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 1000},
		{workers: 2, iterationsPerWorker: 500},
		{workers: 4, iterationsPerWorker: 250},
		{workers: 8, iterationsPerWorker: 125},
	}

	for _, config := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", config.workers, config.iterationsPerWorker), func(t *testing.T) {
			runConcurrentMemoryTest(t, config.workers, config.iterationsPerWorker)
		})
	}
}

func TestMemoryStabilityLongRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running memory stability test in short mode")
	}

	runLongRunMemoryTest(t, 50, 200)
}

func runBasicMemoryTest(t *testing.T, iterations int, lines []string) {
	eng := newEngine(t)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	for i := 0; i < iterations; i++ {
		for _, line := range lines {
			complete(eng, "file:///basic.tex", line)
		}
	}
	eng.CloseSession("file:///basic.tex")

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	memDelta := int64(final.Alloc) - int64(baseline.Alloc)
	goroutineDelta := finalGoroutines - baselineGoroutines
	totalOps := iterations * len(lines)
	memPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("iterations=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
		iterations, totalOps, memDelta, memPerOp, goroutineDelta)

	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runConcurrentMemoryTest(t *testing.T, workers, iterationsPerWorker int) {
	memFile, err := os.Create("concurrent_memory.prof")
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer func() {
		memFile.Close()
		os.Remove("concurrent_memory.prof")
	}()

	eng := newEngine(t)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	var wg sync.WaitGroup
	var mu sync.Mutex
	totalOps := 0

	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			doc := fmt.Sprintf("file:///worker%d.tex", worker)
			ops := 0
			for iter := 0; iter < iterationsPerWorker; iter++ {
				for _, pattern := range longPatterns {
					for _, line := range pattern {
						complete(eng, doc, line)
						ops++
					}
				}
			}
			eng.CloseSession(doc)
			mu.Lock()
			totalOps += ops
			mu.Unlock()
		}(worker)
	}

	wg.Wait()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	memDelta := int64(final.Alloc) - int64(baseline.Alloc)
	goroutineDelta := finalGoroutines - baselineGoroutines
	memPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("workers=%d iter_per_worker=%d total_ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
		workers, iterationsPerWorker, totalOps, memDelta, memPerOp, goroutineDelta)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}
	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 3 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runLongRunMemoryTest(t *testing.T, cycles, opsPerCycle int) {
	memFile, err := os.Create("longrun_stability.prof")
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer func() {
		memFile.Close()
		os.Remove("longrun_stability.prof")
	}()

	eng := newEngine(t)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	totalOps := 0
	maxMemDelta := int64(0)

	for cycle := 0; cycle < cycles; cycle++ {
		for op := 0; op < opsPerCycle; op++ {
			pattern := longPatterns[op%len(longPatterns)]
			complete(eng, "file:///longrun.tex", pattern[op%len(pattern)])
			totalOps++
		}

		if cycle%10 == 0 {
			var m runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&m)

			memDelta := int64(m.Alloc) - int64(baseline.Alloc)
			goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
			if memDelta > maxMemDelta {
				maxMemDelta = memDelta
			}

			t.Logf("cycle=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
				cycle, totalOps, memDelta, float64(memDelta)/float64(totalOps), goroutineDelta)
		}

		// reloads rebuild the snapshot and must not pile up old ones
		if cycle%20 == 0 && cycle > 0 {
			if err := eng.Reload(context.Background()); err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			eng.ClearCache()
		}

		time.Sleep(5 * time.Millisecond)
	}
	eng.CloseSession("file:///longrun.tex")

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalGoroutines := runtime.NumGoroutine()

	finalMemDelta := int64(final.Alloc) - int64(baseline.Alloc)
	finalGoroutineDelta := finalGoroutines - baselineGoroutines
	finalMemPerOp := float64(finalMemDelta) / float64(totalOps)

	t.Logf("final_summary: cycles=%d total_ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d max_mem_delta=%d",
		cycles, totalOps, finalMemDelta, finalMemPerOp, finalGoroutineDelta, maxMemDelta)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}
	if finalMemPerOp > 500 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", finalMemPerOp)
	}
	if finalGoroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", finalGoroutineDelta)
	}
	if maxMemDelta > 10*1024*1024 {
		t.Errorf("excessive peak memory usage: %d bytes", maxMemDelta)
	}
}
