// aps-solve loads a problem description, restores any learned cache from a
// previous run, drives the planner to completion or budget exhaustion, and
// persists whatever was learned back to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/config"
	"github.com/corrigan-labs/aps/control"
	"github.com/corrigan-labs/aps/persistence"
	"github.com/corrigan-labs/aps/problem"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/telemetry"
)

var (
	problemPath *string
	runName     *string
	cacheDir    *string
	configPath  *string
	seed        *int64
	dashAddr    *string
)

// TODO: per 12-factor rules, these should be taken from env or config-map; KISS for now.
func init() {
	problemPath = flag.String("problem", "./problem.json", "path to the problem description JSON")
	runName = flag.String("run", "run", "run name: selects cache/<run>/ and output/<run>.json")
	cacheDir = flag.String("cache", "./cache", "parent directory of per-run cache subdirectories")
	configPath = flag.String("config", "./aps.yaml", "optional YAML file of fallback simulation budgets")
	seed = flag.Int64("seed", 0, "PRNG seed; 0 derives a seed from the process id")
	dashAddr = flag.String("dashboard", "", "if set, serve a live websocket dashboard at this address")
	flag.Parse()
}

func runApp() error {
	spec, err := problem.Load(*problemPath)
	if err != nil {
		return err
	}

	t, err := task.FromSpec(spec)
	if err != nil {
		return fmt.Errorf("building task: %w", err)
	}

	fallback, err := config.LoadDefaults(*configPath)
	if err != nil {
		return fmt.Errorf("loading config defaults: %w", err)
	}
	tuning := spec.Simulation.ToTuning().Merge(fallback)

	c := cache.New()
	runDir := filepath.Join(*cacheDir, *runName)
	if err := persistence.Load(runDir, spec.Simulation.Reset == 1, c); err != nil {
		return fmt.Errorf("loading cache: %w", err)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = int64(os.Getpid())
	}
	rng := rand.New(rand.NewSource(rngSeed))

	logger := telemetry.NewLogger(*runName)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if *dashAddr != "" {
		go func() {
			if err := logger.Serve(ctx, *dashAddr); err != nil {
				log.Printf("dashboard: %v", err)
			}
		}()
	}

	ctl := control.New(rng, c, tuning, t.Handles)
	success := ctl.Run(t, logger)

	if err := logger.Flush(dump(c)); err != nil {
		return fmt.Errorf("flushing log: %w", err)
	}
	if err := persistence.Save(runDir, c); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}

	if success {
		fmt.Println("solved")
	} else {
		fmt.Println("budget exhausted without reaching the goal")
	}
	return nil
}

func dump(c *cache.Cache) telemetry.StrategiesDump {
	d := telemetry.StrategiesDump{}
	for _, s := range c.AllLct() {
		d.Lct = append(d.Lct, s.Name)
	}
	for _, s := range c.AllInt() {
		d.Int = append(d.Int, s.Name)
	}
	for _, s := range c.AllIcm() {
		d.Icm = append(d.Icm, s.Name)
	}
	for _, s := range c.AllScmSortedByScore() {
		d.Scm = append(d.Scm, s.Name)
	}
	return d
}

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
