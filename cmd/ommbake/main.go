// ommbake is a CLI utility that bakes opacity micromaps from alpha textures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/omm-baker/internal/config"
	"github.com/Faultbox/omm-baker/internal/logger"
	"github.com/Faultbox/omm-baker/pkg/baker"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "bake", "b":
		cmdBake(args)
	case "info", "i":
		cmdInfo(args)
	case "watch", "w":
		cmdWatch(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ommbake - opacity micromap baker

Usage:
  ommbake <command> [options]

Commands:
  bake <job|dir>...      Bake job files into micromap blobs
  info <blob>...         Show the content of micromap blobs
  watch <job|dir>...     Bake, then rebake whenever an input changes
  config [path]          Write the default config (.yaml or .toml)

Common options:
  -config <file>         Config file (default: ./ommbake.yaml or the user config dir)
  -debug                 Enable debug logging
  -level <n>             Maximum subdivision level
  -format <2state|4state>
  -compress              Compress blob bodies

Examples:
  ommbake bake foliage.job.yaml
  ommbake bake -j 4 -out build/omm jobs/
  ommbake info build/omm/foliage.omm
  ommbake config ~/.config/omm-baker/config.toml`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	logger.Sync()
	os.Exit(1)
}

// loadConfig resolves the config and initializes logging from it.
func loadConfig(f *config.Flags) *config.Config {
	cfg, err := config.Load(f)
	if err != nil {
		fail("%v", err)
	}
	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.FileConfig{
			Path:       cfg.Logging.LogFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   true,
		}
	}
	err = logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		File:    fileCfg,
		Console: os.Stderr,
		JSON:    cfg.Logging.JSON,
	})
	if err != nil {
		fail("%v", err)
	}
	return cfg
}

func expandJobs(args []string) []string {
	var jobs []string
	for _, a := range args {
		found, err := config.FindJobs(a)
		if err != nil {
			fail("%v", err)
		}
		jobs = append(jobs, found...)
	}
	return jobs
}

func splitRoots(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, string(os.PathListSeparator))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdBake(args []string) {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	out := fs.String("out", "", "Output directory for jobs without an output path")
	roots := fs.String("root", "", "Image search directories, separated by the OS path list separator")
	parallel := fs.Int("j", 1, "Jobs baked in parallel")
	f := config.BindFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ommbake bake [options] <job|dir>...")
		os.Exit(1)
	}

	cfg := loadConfig(f)
	defer logger.Sync()

	r, err := newRunner(cfg, logger.Log, *out, splitRoots(*roots))
	if err != nil {
		fail("%v", err)
	}
	defer r.close()

	ctx, stop := signalContext()
	defer stop()

	reports, err := r.runAll(ctx, expandJobs(fs.Args()), *parallel)
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		fmt.Printf("%s -> %s (%d bytes, %v)\n", rep.Job, rep.Output, rep.Bytes, rep.Elapsed.Round(time.Millisecond))
		printStats(os.Stdout, rep.Stats)
	}
	if err != nil {
		r.close()
		fail("%v", err)
	}
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	f := config.BindFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ommbake info <blob>...")
		os.Exit(1)
	}

	loadConfig(f)
	defer logger.Sync()

	b, err := baker.New(baker.Options{MessageCallback: logger.MessageCallback(logger.Log)})
	if err != nil {
		fail("%v", err)
	}
	defer b.Destroy()

	failed := false
	for _, path := range fs.Args() {
		if err := printBlob(b, path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		b.Destroy()
		fail("some blobs could not be read")
	}
}

func printBlob(b *baker.Baker, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	h, err := b.Deserialize(data)
	if err != nil {
		return err
	}
	defer b.DestroyDeserialized(h)
	d, err := b.Deserialized(h)
	if err != nil {
		return err
	}

	fmt.Printf("Blob:     %s\n", path)
	fmt.Printf("Size:     %d bytes\n", len(data))
	fmt.Printf("Version:  %d\n", d.Version)
	fmt.Printf("Compress: %v\n", d.Flags&baker.SerializeCompress != 0)

	for i, in := range d.Inputs {
		fmt.Printf("\nInput %d:\n", i)
		fmt.Printf("  Triangles:        %d\n", in.TriangleCount())
		fmt.Printf("  Format:           %v\n", in.Format)
		fmt.Printf("  Max level:        %d\n", in.MaxSubdivisionLevel)
		fmt.Printf("  Sampler:          %v, filter %d, border %.2f\n", in.Sampler.AddressMode, in.Sampler.Filter, in.Sampler.BorderAlpha)
		fmt.Printf("  Alpha cutoff:     %.3f\n", in.AlphaCutoff)
	}
	for i := range d.Results {
		res := &d.Results[i]
		st, err := baker.ComputeStats(res)
		if err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
		fmt.Printf("\nResult %d:\n", i)
		fmt.Printf("  Micromaps:        %d (%d bytes)\n", len(res.DescArray), len(res.ArrayData))
		fmt.Printf("  Indices:          %d (%d-bit)\n", res.IndexCount(), res.IndexFormat.Size()*8)
		for _, u := range res.DescArrayHistogram {
			fmt.Printf("  Level %2d %-12v %d\n", u.SubdivisionLevel, u.Format, u.Count)
		}
		printStats(os.Stdout, st)
	}
	fmt.Println()
	return nil
}

func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	out := fs.String("out", "", "Output directory for jobs without an output path")
	roots := fs.String("root", "", "Image search directories, separated by the OS path list separator")
	debounce := fs.Duration("debounce", 0, "Delay before rebaking after a change (default from config)")
	f := config.BindFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ommbake watch [options] <job|dir>...")
		os.Exit(1)
	}

	cfg := loadConfig(f)
	defer logger.Sync()

	r, err := newRunner(cfg, logger.Log, *out, splitRoots(*roots))
	if err != nil {
		fail("%v", err)
	}
	defer r.close()

	delay := *debounce
	if delay <= 0 {
		delay = time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	}
	w, err := newWatcher(r, delay)
	if err != nil {
		fail("%v", err)
	}
	defer w.close()
	w.baked = func(job string, rep *report, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", job, err)
			return
		}
		fmt.Printf("%s -> %s (%d bytes, %v)\n", rep.Job, rep.Output, rep.Bytes, rep.Elapsed.Round(time.Millisecond))
	}

	ctx, stop := signalContext()
	defer stop()

	if err := w.run(ctx, expandJobs(fs.Args())); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watch stopped", zap.Error(err))
	}
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	force := fs.Bool("f", false, "Overwrite an existing file")
	f := config.BindFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(f)
	if err != nil {
		fail("%v", err)
	}

	path := filepath.Join(config.ConfigDir(), "config.yaml")
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fail("%s exists (use -f to overwrite)", path)
	}
	if err := cfg.SaveTo(path); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Wrote %s\n", path)
}
