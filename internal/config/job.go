package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Job describes one bake: a source image, the geometry mapped onto it and
// the settings that differ from the config.
type Job struct {
	Name    string `yaml:"name" toml:"name"`
	Texture string `yaml:"texture" toml:"texture"`
	// Output is the blob path; empty derives it from the job file name.
	Output       string        `yaml:"output" toml:"output"`
	Geometry     Geometry      `yaml:"geometry" toml:"geometry"`
	GeometryFile string        `yaml:"geometry_file" toml:"geometry_file"`
	Bake         BakeConfig    `yaml:"bake" toml:"bake"`
	Image        TextureConfig `yaml:"image" toml:"image"`

	path string
}

// Geometry is an indexed triangle list in texture space.
type Geometry struct {
	// TexCoords holds u, v pairs.
	TexCoords []float32 `yaml:"texcoords" toml:"texcoords"`
	Indices   []uint32  `yaml:"indices" toml:"indices"`
	// Formats optionally overrides the format per triangle; "" uses the
	// bake format.
	Formats []string `yaml:"formats,omitempty" toml:"formats,omitempty"`
	// Levels optionally overrides the subdivision level per triangle; a
	// negative level uses the global one.
	Levels []int `yaml:"levels,omitempty" toml:"levels,omitempty"`
}

// LoadJob reads a job file. Settings the job does not mention come from
// cfg.
func LoadJob(path string, cfg *Config) (*Job, error) {
	if cfg == nil {
		cfg = Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	job := &Job{Bake: cfg.Bake, Image: cfg.Texture, path: path}
	if err := decode(path, data, job); err != nil {
		return nil, fmt.Errorf("parsing job %s: %w", path, err)
	}
	if job.Name == "" {
		job.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if job.GeometryFile != "" {
		if len(job.Geometry.Indices) > 0 || len(job.Geometry.TexCoords) > 0 {
			return nil, fmt.Errorf("job %s: geometry and geometry_file are exclusive", job.Name)
		}
		gpath := job.resolve(job.GeometryFile)
		gdata, err := os.ReadFile(gpath)
		if err != nil {
			return nil, err
		}
		if err := decode(gpath, gdata, &job.Geometry); err != nil {
			return nil, fmt.Errorf("parsing geometry %s: %w", gpath, err)
		}
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Path returns the file the job was loaded from.
func (j *Job) Path() string { return j.path }

func (j *Job) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(j.path), p)
}

// TexturePath returns the source image path.
func (j *Job) TexturePath() string {
	return j.resolve(j.Texture)
}

// OutputPath returns where the blob is written. outDir is used when the
// job names no output.
func (j *Job) OutputPath(outDir string) string {
	if j.Output != "" {
		return j.resolve(j.Output)
	}
	name := j.Name + ".omm"
	if outDir != "" {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(filepath.Dir(j.path), name)
}

// Dependencies returns every file the job reads.
func (j *Job) Dependencies() []string {
	deps := []string{j.path, j.TexturePath()}
	if j.GeometryFile != "" {
		deps = append(deps, j.resolve(j.GeometryFile))
	}
	return deps
}

// Validate checks the job for structural errors.
func (j *Job) Validate() error {
	if j.Texture == "" {
		return fmt.Errorf("job %s: texture is not set", j.Name)
	}
	g := &j.Geometry
	if len(g.TexCoords)%2 != 0 {
		return fmt.Errorf("job %s: texcoords hold %d values, want u, v pairs", j.Name, len(g.TexCoords))
	}
	if len(g.Indices) == 0 || len(g.Indices)%3 != 0 {
		return fmt.Errorf("job %s: %d indices is not a triangle list", j.Name, len(g.Indices))
	}
	vertices := uint32(len(g.TexCoords) / 2)
	for i, idx := range g.Indices {
		if idx >= vertices {
			return fmt.Errorf("job %s: index %d (%d) is out of range for %d vertices", j.Name, i, idx, vertices)
		}
	}
	tris := len(g.Indices) / 3
	if len(g.Formats) != 0 && len(g.Formats) != tris {
		return fmt.Errorf("job %s: %d formats for %d triangles", j.Name, len(g.Formats), tris)
	}
	if len(g.Levels) != 0 && len(g.Levels) != tris {
		return fmt.Errorf("job %s: %d levels for %d triangles", j.Name, len(g.Levels), tris)
	}
	for i, l := range g.Levels {
		if l > omm.MaxSubdivisionLevel {
			return fmt.Errorf("job %s: triangle %d level %d exceeds %d", j.Name, i, l, omm.MaxSubdivisionLevel)
		}
	}
	return nil
}

// Input builds the bake input for the job. The texture handle is left for
// the caller to set.
func (j *Job) Input() (omm.BakeInput, error) {
	in, err := j.Bake.Input()
	if err != nil {
		return in, fmt.Errorf("job %s: %w", j.Name, err)
	}
	g := &j.Geometry

	in.TexCoordFormat = omm.UV32Float
	in.TexCoords = omm.Float32Bytes(g.TexCoords)

	in.IndexCount = uint32(len(g.Indices))
	if len(g.TexCoords)/2 <= 1<<16 {
		idx := make([]uint16, len(g.Indices))
		for i, v := range g.Indices {
			idx[i] = uint16(v)
		}
		in.IndexFormat = omm.Index16
		in.Indices = omm.Uint16Bytes(idx)
	} else {
		in.IndexFormat = omm.Index32
		in.Indices = omm.Uint32Bytes(g.Indices)
	}

	if len(g.Formats) > 0 {
		in.Formats = make([]omm.Format, len(g.Formats))
		for i, s := range g.Formats {
			if s == "" {
				continue
			}
			if in.Formats[i], err = ParseFormat(s); err != nil {
				return in, fmt.Errorf("job %s: triangle %d: %w", j.Name, i, err)
			}
		}
	}
	if len(g.Levels) > 0 {
		in.SubdivisionLevels = make([]uint8, len(g.Levels))
		for i, l := range g.Levels {
			if l < 0 {
				in.SubdivisionLevels[i] = omm.SubdivisionLevelUseGlobal
			} else {
				in.SubdivisionLevels[i] = uint8(l)
			}
		}
	}
	return in, nil
}

// ErrNoJobs is returned by FindJobs when a directory holds no job files.
var ErrNoJobs = errors.New("no job files found")

// IsJobFile reports whether path has a job file extension.
func IsJobFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	switch ext {
	case ".yaml", ".yml", ".toml":
		return strings.HasSuffix(strings.TrimSuffix(base, ext), ".job")
	}
	return false
}

// FindJobs expands path into job files: a file is returned as is, a
// directory yields its *.job.yaml, *.job.yml and *.job.toml entries.
func FindJobs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var jobs []string
	for _, e := range entries {
		if !e.IsDir() && IsJobFile(e.Name()) {
			jobs = append(jobs, filepath.Join(path, e.Name()))
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoJobs)
	}
	return jobs, nil
}
