package config

import "flag"

// Flags are the command-line overrides shared by ommbake subcommands.
type Flags struct {
	Config   string
	Debug    bool
	LogFile  string
	Threads  bool
	Single   bool
	Level    int
	Format   string
	Filter   string
	Compress bool
	Version  int
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Also write logs to this file")
	fs.BoolVar(&f.Threads, "threads", false, "Classify primitives in parallel")
	fs.BoolVar(&f.Single, "single", false, "Classify primitives on one goroutine")
	fs.IntVar(&f.Level, "level", -1, "Maximum subdivision level (0-12)")
	fs.StringVar(&f.Format, "format", "", "Micromap format: 2state or 4state")
	fs.StringVar(&f.Filter, "filter", "", "Texture filter: nearest or linear")
	fs.BoolVar(&f.Compress, "compress", false, "Compress the blob body")
	fs.IntVar(&f.Version, "blob-version", 0, "Blob layout version (0 = latest)")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.Threads {
		cfg.Bake.Threads = true
	}
	if f.Single {
		cfg.Bake.Threads = false
	}
	if f.Level >= 0 {
		cfg.Bake.MaxSubdivisionLevel = f.Level
	}
	if f.Format != "" {
		cfg.Bake.Format = f.Format
	}
	if f.Filter != "" {
		cfg.Bake.Filter = f.Filter
	}
	if f.Compress {
		cfg.Output.Compress = true
	}
	if f.Version > 0 {
		cfg.Output.BlobVersion = int32(f.Version)
	}
}
