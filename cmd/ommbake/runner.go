package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/omm-baker/internal/assets"
	"github.com/Faultbox/omm-baker/internal/config"
	"github.com/Faultbox/omm-baker/internal/logger"
	"github.com/Faultbox/omm-baker/pkg/baker"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// runner bakes job files into blobs.
type runner struct {
	cfg    *config.Config
	baker  *baker.Baker
	assets *assets.Manager
	log    *zap.Logger
	outDir string
}

// report describes one finished job.
type report struct {
	Job     string
	Output  string
	Bytes   int
	Stats   baker.Stats
	Elapsed time.Duration
}

func newRunner(cfg *config.Config, log *zap.Logger, outDir string, roots []string) (*runner, error) {
	b, err := baker.New(baker.Options{
		Type:            baker.TypeCPU,
		MessageCallback: logger.MessageCallback(log),
		Logger:          log.Named("baker"),
	})
	if err != nil {
		return nil, err
	}
	m := assets.NewManager()
	for _, root := range roots {
		if err := m.AddRoot(root); err != nil {
			b.Destroy()
			return nil, err
		}
	}
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	return &runner{cfg: cfg, baker: b, assets: m, log: log, outDir: outDir}, nil
}

func (r *runner) close() {
	hits, misses := r.assets.Stats()
	r.log.Debug("image cache", zap.Int("hits", hits), zap.Int("misses", misses))
	r.assets.Close()
	r.baker.Destroy()
}

// run bakes one job and writes its blob.
func (r *runner) run(ctx context.Context, path string) (*report, error) {
	start := time.Now()
	job, err := config.LoadJob(path, r.cfg)
	if err != nil {
		return nil, err
	}

	texPath := job.TexturePath()
	if _, err := os.Stat(texPath); err != nil {
		texPath = job.Texture
	}
	img, err := r.assets.Load(texPath, assets.Options{Channel: job.Image.Channel, Mips: job.Image.Mips})
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.Name, err)
	}

	in, err := job.Input()
	if err != nil {
		return nil, err
	}
	cutoff := float32(-1)
	if job.Image.Accelerate {
		cutoff = in.AlphaCutoff
	}
	tex, err := r.baker.CreateTexture(img.TextureDesc(assets.TextureOptions{
		Unorm8:      job.Image.Unorm8,
		ZOrder:      job.Image.ZOrder,
		AlphaCutoff: cutoff,
	}))
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.Name, err)
	}
	defer r.baker.DestroyTexture(tex)
	in.Texture = tex

	rh, err := r.baker.Bake(ctx, &in)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.Name, err)
	}
	defer r.baker.DestroyBakeResult(rh)

	st, err := r.baker.Stats(rh)
	if err != nil {
		return nil, err
	}

	var flags baker.SerializeFlags
	if r.cfg.Output.Compress {
		flags |= baker.SerializeCompress
	}
	bh, err := r.baker.Serialize(baker.SerializeDesc{
		Flags:   flags,
		Inputs:  []omm.BakeInput{in},
		Results: []omm.Handle{rh},
		Version: r.cfg.Output.BlobVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.Name, err)
	}
	defer r.baker.DestroyBlob(bh)
	blob, err := r.baker.Blob(bh)
	if err != nil {
		return nil, err
	}

	out := job.OutputPath(r.outDir)
	if err := writeFileAtomic(out, blob); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.Name, err)
	}

	rep := &report{Job: job.Name, Output: out, Bytes: len(blob), Stats: st, Elapsed: time.Since(start)}
	r.log.Info("baked",
		zap.String("job", job.Name),
		zap.String("output", out),
		zap.Int("bytes", len(blob)),
		zap.Int("triangles", in.TriangleCount()),
		zap.Float32("known_area", st.KnownAreaMetric),
		zap.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

// runAll bakes jobs with up to parallel jobs in flight. Reports keep the
// order of paths.
func (r *runner) runAll(ctx context.Context, paths []string, parallel int) ([]*report, error) {
	reports := make([]*report, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)
	for i, p := range paths {
		g.Go(func() error {
			rep, err := r.run(ctx, p)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	err := g.Wait()
	return reports, err
}

// writeFileAtomic replaces path so readers never see a partial blob.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".ommbake-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

var printMu sync.Mutex

func printStats(w io.Writer, st baker.Stats) {
	printMu.Lock()
	defer printMu.Unlock()

	fmt.Fprintf(w, "  Micro-triangles:  %d opaque, %d transparent, %d unknown opaque, %d unknown transparent\n",
		st.TotalOpaque, st.TotalTransparent, st.TotalUnknownOpaque, st.TotalUnknownTransparent)
	fmt.Fprintf(w, "  Special indices:  %d FO, %d FT, %d FUO, %d FUT\n",
		st.TotalFullyOpaque, st.TotalFullyTransparent, st.TotalFullyUnknownOpaque, st.TotalFullyUnknownTransparent)
	fmt.Fprintf(w, "  Known area:       %.1f%%\n", st.KnownAreaMetric*100)
}
