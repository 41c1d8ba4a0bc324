// Package config handles ommbake configuration and bake job files.
package config

// Config holds all tool settings.
type Config struct {
	Bake    BakeConfig    `yaml:"bake" toml:"bake"`
	Texture TextureConfig `yaml:"texture" toml:"texture"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Watch   WatchConfig   `yaml:"watch" toml:"watch"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// BakeConfig holds the default bake settings. Jobs override individual
// keys.
type BakeConfig struct {
	Format                  string  `yaml:"format" toml:"format"` // 2state, 4state
	Filter                  string  `yaml:"filter" toml:"filter"` // nearest, linear
	AddressMode             string  `yaml:"address_mode" toml:"address_mode"`
	BorderAlpha             float32 `yaml:"border_alpha" toml:"border_alpha"`
	AlphaMode               string  `yaml:"alpha_mode" toml:"alpha_mode"` // test, blend
	AlphaCutoff             float32 `yaml:"alpha_cutoff" toml:"alpha_cutoff"`
	BelowCutoff             string  `yaml:"below_cutoff" toml:"below_cutoff"`
	AboveCutoff             string  `yaml:"above_cutoff" toml:"above_cutoff"`
	Promotion               string  `yaml:"promotion" toml:"promotion"`
	MaxSubdivisionLevel     int     `yaml:"max_subdivision_level" toml:"max_subdivision_level"`
	DynamicSubdivisionScale float32 `yaml:"dynamic_subdivision_scale" toml:"dynamic_subdivision_scale"`
	RejectionThreshold      float32 `yaml:"rejection_threshold" toml:"rejection_threshold"`

	Threads                bool    `yaml:"threads" toml:"threads"`
	SpecialIndices         bool    `yaml:"special_indices" toml:"special_indices"`
	Force32BitIndices      bool    `yaml:"force_32bit_indices" toml:"force_32bit_indices"`
	DuplicateDetection     bool    `yaml:"duplicate_detection" toml:"duplicate_detection"`
	NearDuplicateDetection bool    `yaml:"near_duplicate_detection" toml:"near_duplicate_detection"`
	NearDuplicateThreshold float32 `yaml:"near_duplicate_threshold" toml:"near_duplicate_threshold"`
	LevelLineIntersection  bool    `yaml:"level_line_intersection" toml:"level_line_intersection"`
	WorkloadValidation     bool    `yaml:"workload_validation" toml:"workload_validation"`
	MaxWorkloadSize        uint64  `yaml:"max_workload_size" toml:"max_workload_size"`
}

// TextureConfig controls how source images become baker textures.
type TextureConfig struct {
	// Channel is the image channel read as alpha: alpha, red, green, blue
	// or luminance.
	Channel string `yaml:"channel" toml:"channel"`
	// Mips limits the generated mip chain; 0 keeps only the base level.
	Mips int `yaml:"mips" toml:"mips"`
	// Unorm8 stores texels as 8-bit instead of float.
	Unorm8 bool `yaml:"unorm8" toml:"unorm8"`
	ZOrder bool `yaml:"z_order" toml:"z_order"`
	// Accelerate builds summed-area tables for the bake alpha cutoff.
	Accelerate bool `yaml:"accelerate" toml:"accelerate"`
}

// OutputConfig controls blob encoding.
type OutputConfig struct {
	// BlobVersion selects the layout; 0 is the latest.
	BlobVersion int32 `yaml:"blob_version" toml:"blob_version"`
	Compress    bool  `yaml:"compress" toml:"compress"`
	// Dir receives blobs of jobs that name no output; empty means next to
	// the job file.
	Dir string `yaml:"dir" toml:"dir"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" toml:"debounce_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	LogFile    string `yaml:"log_file" toml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	JSON       bool   `yaml:"json" toml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			Format:                  "4state",
			Filter:                  "linear",
			AddressMode:             "clamp",
			AlphaMode:               "test",
			AlphaCutoff:             0.5,
			BelowCutoff:             "transparent",
			AboveCutoff:             "opaque",
			Promotion:               "force_opaque",
			MaxSubdivisionLevel:     8,
			DynamicSubdivisionScale: 2,
			Threads:                 true,
			SpecialIndices:          true,
			DuplicateDetection:      true,
			NearDuplicateThreshold:  0.1,
			LevelLineIntersection:   true,
		},
		Texture: TextureConfig{
			Channel:    "alpha",
			ZOrder:     true,
			Accelerate: true,
		},
		Watch: WatchConfig{
			DebounceMS: 250,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}
