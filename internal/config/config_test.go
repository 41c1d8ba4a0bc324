package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Bake.Format != "4state" {
		t.Errorf("expected format 4state, got %s", cfg.Bake.Format)
	}
	if cfg.Bake.MaxSubdivisionLevel != 8 {
		t.Errorf("expected max level 8, got %d", cfg.Bake.MaxSubdivisionLevel)
	}
	if !cfg.Bake.SpecialIndices || !cfg.Bake.DuplicateDetection || !cfg.Bake.LevelLineIntersection {
		t.Error("expected special indices, duplicate detection and level lines enabled by default")
	}
	if cfg.Texture.Channel != "alpha" {
		t.Errorf("expected alpha channel, got %s", cfg.Texture.Channel)
	}
	if cfg.Output.BlobVersion != 0 || cfg.Output.Compress {
		t.Errorf("expected latest uncompressed blobs, got %+v", cfg.Output)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestDefaultMatchesBakeInputDefaults(t *testing.T) {
	in, err := Default().Bake.Input()
	if err != nil {
		t.Fatalf("Input() error = %v", err)
	}
	want := omm.DefaultBakeInput()
	want.Flags = omm.EnableInternalThreads
	if in.Format != want.Format || in.Sampler != want.Sampler || in.AlphaCutoff != want.AlphaCutoff ||
		in.UnknownStatePromotion != want.UnknownStatePromotion || in.MaxSubdivisionLevel != want.MaxSubdivisionLevel ||
		in.DynamicSubdivisionScale != want.DynamicSubdivisionScale || in.NearDuplicateThreshold != want.NearDuplicateThreshold ||
		in.AlphaCutoffLessEqual != want.AlphaCutoffLessEqual || in.AlphaCutoffGreater != want.AlphaCutoffGreater ||
		in.Flags != want.Flags {
		t.Errorf("Input() = %+v, want %+v", in, want)
	}
}

func TestBakeInputFlags(t *testing.T) {
	b := Default().Bake
	b.Threads = false
	b.SpecialIndices = false
	b.DuplicateDetection = false
	b.LevelLineIntersection = false
	b.Force32BitIndices = true
	b.NearDuplicateDetection = true
	b.WorkloadValidation = true
	b.Filter = "Nearest"
	b.AddressMode = "mirror_once"
	b.Promotion = "nearest"

	in, err := b.Input()
	if err != nil {
		t.Fatalf("Input() error = %v", err)
	}
	want := omm.DisableSpecialIndices | omm.DisableDuplicateDetection | omm.DisableLevelLineIntersection |
		omm.Force32BitIndices | omm.EnableNearDuplicateDetection | omm.EnableWorkloadValidation
	if in.Flags != want {
		t.Errorf("flags = %b, want %b", in.Flags, want)
	}
	if in.Sampler.Filter != omm.FilterNearest || in.Sampler.AddressMode != omm.AddressMirrorOnce {
		t.Errorf("sampler = %+v", in.Sampler)
	}
	if in.UnknownStatePromotion != omm.PromoteNearest {
		t.Errorf("promotion = %v", in.UnknownStatePromotion)
	}
}

func TestBakeInputRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*BakeConfig)
		reason string
	}{
		{"format", func(b *BakeConfig) { b.Format = "3state" }, "format"},
		{"filter", func(b *BakeConfig) { b.Filter = "cubic" }, "filter"},
		{"address", func(b *BakeConfig) { b.AddressMode = "repeat" }, "address mode"},
		{"alpha mode", func(b *BakeConfig) { b.AlphaMode = "coverage" }, "alpha mode"},
		{"state", func(b *BakeConfig) { b.AboveCutoff = "solid" }, "above_cutoff"},
		{"promotion", func(b *BakeConfig) { b.Promotion = "random" }, "promotion"},
		{"level", func(b *BakeConfig) { b.MaxSubdivisionLevel = 13 }, "max_subdivision_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Default().Bake
			tt.modify(&b)
			_, err := b.Input()
			if err == nil || !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("Input() error = %v, want mention of %q", err, tt.reason)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"config.yaml", `
bake:
  format: 2state
  max_subdivision_level: 5
  threads: false
  near_duplicate_detection: true
texture:
  channel: red
  mips: 4
output:
  compress: true
  blob_version: 1
logging:
  level: "debug"
  log_file: "bake.log"
`},
		{"config.toml", `
[bake]
format = "2state"
max_subdivision_level = 5
threads = false
near_duplicate_detection = true

[texture]
channel = "red"
mips = 4

[output]
compress = true
blob_version = 1

[logging]
level = "debug"
log_file = "bake.log"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, tt.name)
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, configPath); err != nil {
				t.Fatalf("failed to load config: %v", err)
			}

			if cfg.Bake.Format != "2state" {
				t.Errorf("expected format 2state, got %s", cfg.Bake.Format)
			}
			if cfg.Bake.MaxSubdivisionLevel != 5 {
				t.Errorf("expected level 5, got %d", cfg.Bake.MaxSubdivisionLevel)
			}
			if cfg.Bake.Threads || !cfg.Bake.NearDuplicateDetection {
				t.Errorf("thread/near-dup settings not loaded: %+v", cfg.Bake)
			}
			// Keys the file leaves out keep their defaults.
			if cfg.Bake.Filter != "linear" || cfg.Bake.AlphaCutoff != 0.5 {
				t.Errorf("defaults lost: filter %s cutoff %v", cfg.Bake.Filter, cfg.Bake.AlphaCutoff)
			}
			if cfg.Texture.Channel != "red" || cfg.Texture.Mips != 4 || !cfg.Texture.ZOrder {
				t.Errorf("texture = %+v", cfg.Texture)
			}
			if !cfg.Output.Compress || cfg.Output.BlobVersion != 1 {
				t.Errorf("output = %+v", cfg.Output)
			}
			if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "bake.log" {
				t.Errorf("logging = %+v", cfg.Logging)
			}
		})
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := map[string]string{
		"syntax.yaml":  "bake:\n  max_subdivision_level: not a number\n  invalid syntax here\n",
		"unknown.yaml": "bake:\n  colour: blue\n",
		"syntax.toml":  "[bake\nformat = ",
		"unknown.toml": "[bake]\ncolour = \"blue\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, name)
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid config, got nil")
			}
		})
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, []byte("# nothing here\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if cfg.Bake.Format != "4state" {
		t.Errorf("empty config changed defaults: %+v", cfg.Bake)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "ommbake.toml"), []byte("[bake]\nthreads = false\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./ommbake.toml" {
		t.Errorf("expected ./ommbake.toml, got %q", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "ommbake.yaml"), []byte("bake:\n  threads: false\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path != "./ommbake.yaml" {
		t.Errorf("expected YAML to win, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{"none", nil, func(t *testing.T, cfg *Config) {
			if cfg.Bake.MaxSubdivisionLevel != 8 || cfg.Logging.Level != "info" {
				t.Errorf("flags without arguments changed the config: %+v", cfg)
			}
		}},
		{"debug", []string{"-debug", "-log", "x.log"}, func(t *testing.T, cfg *Config) {
			if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "x.log" {
				t.Errorf("logging = %+v", cfg.Logging)
			}
		}},
		{"single", []string{"-single"}, func(t *testing.T, cfg *Config) {
			if cfg.Bake.Threads {
				t.Error("expected threads disabled")
			}
		}},
		{"level zero", []string{"-level", "0"}, func(t *testing.T, cfg *Config) {
			if cfg.Bake.MaxSubdivisionLevel != 0 {
				t.Errorf("expected level 0, got %d", cfg.Bake.MaxSubdivisionLevel)
			}
		}},
		{"format and filter", []string{"-format", "2state", "-filter", "nearest"}, func(t *testing.T, cfg *Config) {
			if cfg.Bake.Format != "2state" || cfg.Bake.Filter != "nearest" {
				t.Errorf("bake = %+v", cfg.Bake)
			}
		}},
		{"output", []string{"-compress", "-blob-version", "1"}, func(t *testing.T, cfg *Config) {
			if !cfg.Output.Compress || cfg.Output.BlobVersion != 1 {
				t.Errorf("output = %+v", cfg.Output)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			f := BindFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			cfg := Default()
			f.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
bake:
  max_subdivision_level: 6
  format: 2state
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := BindFlags(fs)
	if err := fs.Parse([]string{"-config", configPath, "-level", "10"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Bake.MaxSubdivisionLevel != 10 {
		t.Errorf("expected level 10 from flag, got %d", cfg.Bake.MaxSubdivisionLevel)
	}
	if cfg.Bake.Format != "2state" {
		t.Errorf("expected format 2state from file, got %s", cfg.Bake.Format)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "nested/out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := Default()
			cfg.Bake.RejectionThreshold = 0.25
			cfg.Bake.MaxWorkloadSize = 1 << 30
			cfg.Output.Dir = "blobs"
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo() error = %v", err)
			}

			got := &Config{}
			if err := loadFromFile(got, path); err != nil {
				t.Fatalf("loadFromFile() error = %v", err)
			}
			if got.Bake != cfg.Bake || got.Texture != cfg.Texture || got.Output != cfg.Output ||
				got.Watch != cfg.Watch || got.Logging != cfg.Logging {
				t.Errorf("round trip = %+v, want %+v", got, cfg)
			}
		})
	}
}
