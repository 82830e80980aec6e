// Command feo-bench measures the Cycle Driver's overhead in isolation: a
// single process runs a primary and one secondary, connected by an
// in-process transport, stepping a configurable number of no-op
// activities for a fixed number of cycles, then reports min/mean/max
// cycle duration and the overrun count. It is the Go counterpart of the
// Rust original's cycle-benchmark harness.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/nomis52/feo/activity"
	"github.com/nomis52/feo/agent"
	"github.com/nomis52/feo/buildinfo"
	"github.com/nomis52/feo/depgraph"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/global"
	"github.com/nomis52/feo/ids"
	"github.com/nomis52/feo/metrics"
	"github.com/nomis52/feo/recorder"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	primaryAgent   = ids.AgentID(0)
	secondaryAgent = ids.AgentID(1)
)

func main() {
	version := flag.Bool("version", false, "print build info and exit")
	activities := flag.Int("activities", 8, "number of no-op activities, split across the primary and one secondary")
	periodMs := flag.Int("period-ms", 5, "fixed cycle period in milliseconds")
	cycles := flag.Int("cycles", 1000, "number of cycles to run")
	chained := flag.Bool("chained", false, "make each activity depend on the one before it, instead of all running in one stage")
	pushURL := flag.String("push-url", "", "VictoriaMetrics/Prometheus remote-write URL to push the summary to; empty disables push")
	csvPath := flag.String("csv", "", "optional path to write per-cycle timings as CSV")
	flag.Parse()

	if *version {
		info := buildinfo.Get()
		fmt.Printf("feo-bench %s (%s)\n", info.GitCommit, info.BuildTime)
		return
	}

	if err := run(*activities, *periodMs, *cycles, *chained, *pushURL, *csvPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(numActivities, periodMs, cycles int, chained bool, pushURL, csvPath string) error {
	if numActivities < 1 {
		return fmt.Errorf("activities must be at least 1")
	}

	cfg, err := depgraph.Parse([]byte(benchConfigJSON(numActivities, periodMs, chained)))
	if err != nil {
		return fmt.Errorf("building synthetic dependency specification: %w", err)
	}

	bus := eventbus.New(eventbus.WithTransport(eventbus.LocalTransport{}))
	period := time.Duration(periodMs) * time.Millisecond

	reg := prometheus.NewRegistry()
	rec := recorder.New(reg, "feo_bench_cycle_duration_seconds")

	primaryHooks, secondaryHooks := splitDummyHooks(cfg)

	primaryProg, err := agent.Build(agent.Config{
		App: "bench", Agent: primaryAgent.String(), Bus: bus, Period: period, Hooks: primaryHooks,
	})
	if err != nil {
		return fmt.Errorf("building primary local agent: %w", err)
	}
	secondaryProg, err := agent.Build(agent.Config{
		App: "bench", Agent: secondaryAgent.String(), Bus: bus, Period: period, Hooks: secondaryHooks,
	})
	if err != nil {
		return fmt.Errorf("building secondary local agent: %w", err)
	}
	globalProg, err := global.Build(global.Config{App: "bench", Bus: bus, Period: period, Config: cfg})
	if err != nil {
		return fmt.Errorf("building global orchestrator: %w", err)
	}
	globalProg.OnCycle = rec.Observe

	ctx := context.Background()
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return primaryProg.RunN(gctx, cycles) })
	group.Go(func() error { return secondaryProg.RunN(gctx, cycles) })
	group.Go(func() error { return globalProg.RunN(gctx, cycles) })
	if err := group.Wait(); err != nil {
		return fmt.Errorf("benchmark run failed: %w", err)
	}

	summary := summarize(rec.Recent())
	fmt.Printf("cycles=%d activities=%d period=%s chained=%t\n", cycles, numActivities, period, chained)
	fmt.Printf("min=%s mean=%s max=%s overruns=%d\n", summary.min, summary.mean, summary.max, summary.overruns)

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("creating csv file: %w", err)
		}
		defer f.Close()
		if err := rec.WriteCSV(f); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
	}

	if pushURL != "" {
		client := metrics.NewClient(pushURL, "feo_bench")
		now := time.Now()
		points := []metrics.Metric{
			{Name: "min_seconds", Value: summary.min.Seconds(), Timestamp: now},
			{Name: "mean_seconds", Value: summary.mean.Seconds(), Timestamp: now},
			{Name: "max_seconds", Value: summary.max.Seconds(), Timestamp: now},
			{Name: "overrun_count", Value: float64(summary.overruns), Timestamp: now},
		}
		if err := client.PushMetrics(ctx, points); err != nil {
			return fmt.Errorf("pushing summary metrics: %w", err)
		}
	}
	return nil
}

type benchSummary struct {
	min, mean, max time.Duration
	overruns       int
}

func summarize(cycles []recorder.Cycle) benchSummary {
	if len(cycles) == 0 {
		return benchSummary{}
	}
	min := time.Duration(math.MaxInt64)
	var max, total time.Duration
	overruns := 0
	for _, c := range cycles {
		d := c.Duration()
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		total += d
		if c.Overrun {
			overruns++
		}
	}
	return benchSummary{min: min, mean: total / time.Duration(len(cycles)), max: max, overruns: overruns}
}

// splitDummyHooks builds the no-op activity.Hooks for each of the two
// agents in the synthetic configuration, in the order their ids appear in
// cfg's agent assignments.
func splitDummyHooks(cfg *depgraph.Config) (primary, secondary []activity.Hooks) {
	for _, id := range cfg.AgentAssignments[primaryAgent].Activities {
		primary = append(primary, dummyHooks(cfg, id))
	}
	for _, id := range cfg.AgentAssignments[secondaryAgent].Activities {
		secondary = append(secondary, dummyHooks(cfg, id))
	}
	return primary, secondary
}

func dummyHooks(cfg *depgraph.Config, id ids.ActivityID) activity.Hooks {
	name := cfg.Names.Name(id)
	handle := activity.NewHandle(id, name, dummyActivity{})
	return activity.NewHooks(handle)
}

// dummyActivity is a no-op activity.Activity: the benchmark measures the
// Cycle Driver and Action Model's own overhead, not any real workload.
type dummyActivity struct{}

func (dummyActivity) Start(ctx context.Context) error { return nil }
func (dummyActivity) Step(ctx context.Context) error  { return nil }
func (dummyActivity) Stop(ctx context.Context) error  { return nil }

// benchConfigJSON builds a synthetic depgraph wire document with n
// activities split across the primary and one secondary, either all
// independent (one stage) or chained (each depends on the previous).
func benchConfigJSON(n, periodMs int, chained bool) string {
	half := n / 2
	if half == 0 {
		half = n
	}
	var primaryIDs, secondaryIDs []int
	for i := 0; i < n; i++ {
		if i < half {
			primaryIDs = append(primaryIDs, i)
		} else {
			secondaryIDs = append(secondaryIDs, i)
		}
	}
	if len(secondaryIDs) == 0 {
		secondaryIDs = []int{n}
		n++
	}

	var graph []string
	for i := 0; i < n; i++ {
		parallel := "false"
		if !chained {
			parallel = "true"
		}
		graph = append(graph, fmt.Sprintf("[[%d], %s]", i, parallel))
	}

	return fmt.Sprintf(`{
  "cycle_time_ms": %d,
  "primary_agent": 0,
  "agent_assignments": {
    "0": [2, %s],
    "1": [2, %s]
  },
  "activity_graph": [%s]
}`, periodMs, intListJSON(primaryIDs), intListJSON(secondaryIDs), strings.Join(graph, ", "))
}

func intListJSON(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
