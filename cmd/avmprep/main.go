// avmprep verifies and optimizes AVM2 method bodies described in fixture
// files and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/config"
	"github.com/chazu/avmprep/fixture"
	"github.com/chazu/avmprep/meta"
	"github.com/chazu/avmprep/optimize"
	"github.com/chazu/avmprep/prep"
	"github.com/chazu/avmprep/store"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (default: nearest avmprep.toml)")
	verbose := flag.Int("v", -1, "Log verbosity, overrides the configuration")
	showCFG := flag.Bool("cfg", false, "Print the control flow graph of each method")
	showLayout := flag.Bool("layout", false, "Print the slot and dispatch layout of each fixture class")
	noOpt := flag.Bool("no-opt", false, "Verify only, skip the optimizer")
	quiet := flag.Bool("q", false, "Only print failures and the summary")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: avmprep [options] fixture.toml...\n\n")
		fmt.Fprintf(os.Stderr, "Verifies and optimizes the methods in the given fixture files.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  avmprep point.toml            # Print original and optimized code\n")
		fmt.Fprintf(os.Stderr, "  avmprep -cfg -no-opt a.toml   # Verify and show block graphs\n")
		fmt.Fprintf(os.Stderr, "  avmprep -layout -q a.toml     # Show class layouts only\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose >= 0 {
		cfg.Log.Verbosity = *verbose
	}
	if *noOpt {
		cfg.Optimizer.Enabled = false
	}

	var logPath *string
	if f := cfg.LogFile(); f != "" {
		logPath = &f
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	out := output{cfg: *showCFG, layout: *showLayout, quiet: *quiet}
	failed, err := run(ctx, cfg, flag.Args(), out)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
		// With no configuration file the cache lives in the working
		// directory's .avmprep.
		if cfg.Dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if path := cfg.CachePath(); path != "" {
		return store.OpenSQLite(path)
	}
	return store.NewMemory(), nil
}

// output selects what run prints besides failures and the summary.
type output struct {
	cfg    bool
	layout bool
	quiet  bool
}

// run prepares every method of every file and returns the number of
// methods that failed verification.
func run(ctx context.Context, cfg *config.Config, paths []string, out output) (int, error) {
	cache, err := openStore(cfg)
	if err != nil {
		return 0, err
	}
	if cache != nil {
		defer cache.Close()
	}

	failed := 0
	for _, path := range paths {
		f, err := fixture.Load(path)
		if err != nil {
			return failed, err
		}
		// Each file gets its own domain so class names can repeat across
		// files.
		domain := meta.NewDomain()
		if err := f.Define(domain); err != nil {
			return failed, fmt.Errorf("%s: %w", path, err)
		}
		if out.layout {
			if err := printLayouts(os.Stdout, domain); err != nil {
				return failed, err
			}
		}
		jobs, err := f.Jobs(domain)
		if err != nil {
			return failed, fmt.Errorf("%s: %w", path, err)
		}

		opts := []prep.Option{
			prep.WithWorkers(cfg.Pipeline.Workers),
			prep.WithAbortOnError(cfg.Abort()),
			prep.WithOptimization(cfg.Optimizer.Enabled),
			prep.WithOptimizerOptions(optimize.WithSimpleScoping(cfg.Optimizer.SimpleScoping)),
		}
		if cache != nil {
			opts = append(opts, prep.WithStore(cache))
		}
		p := prep.New(domain, nil, opts...)

		results, err := p.PrepareAll(ctx, jobs)
		for _, r := range results {
			if r == nil {
				continue
			}
			if r.Err != nil {
				failed++
				fmt.Printf("%s: FAILED: %v\n", r.Job.Body.Name, r.Err)
				continue
			}
			if !out.quiet {
				printPrepared(r, out.cfg)
			}
		}
		if err != nil {
			return failed, err
		}

		s := p.Stats()
		fmt.Printf("%s: %d methods, %d verified, %d cached, %d failed, %d rewrites\n",
			path, len(jobs), s.Verified, s.Cached, s.Failed, s.Rewrites)
	}
	return failed, nil
}

func printPrepared(r *prep.Prepared, showCFG bool) {
	m := r.Method
	status := "verified"
	if r.Cached {
		status = "cached"
	}
	fmt.Printf("== %s (%s)\n", m.Body.Name, status)
	abc.Disassemble(os.Stdout, m.Code, m.Pool())
	if r.Result != nil {
		fmt.Printf("-- optimized, %d rewrites, simple scoping %t\n", r.Result.Rewrites, r.Result.SimpleScoping)
		abc.Disassemble(os.Stdout, r.Result.Code, m.Pool())
	}
	if showCFG {
		fmt.Println("-- blocks")
		m.Graph.Format(os.Stdout)
	}
	fmt.Println()
}
