package tilelabel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wgdzlh/tilelabel/log"
	"github.com/wgdzlh/tilelabel/utils"

	"go.uber.org/zap"
)

const workDirName = ".work"

type runOpts struct {
	rnd      Rand
	uploader Uploader
	metrics  *Metrics
}

type RunOption func(*runOpts)

// 注入随机源，默认由Config.Seed构造
func WithRand(rnd Rand) RunOption {
	return func(o *runOpts) { o.rnd = rnd }
}

// 注入上传器，默认按Config.Upload构造GCS上传器
func WithUploader(u Uploader) RunOption {
	return func(o *runOpts) { o.uploader = u }
}

func WithMetrics(m *Metrics) RunOption {
	return func(o *runOpts) { o.metrics = m }
}

// 一次采样任务中各步骤共用的状态
type runState struct {
	cfg      Config
	layer    *FootprintLayer
	target   string
	tileW    int
	tileH    int
	workRoot string
	runOpts
}

// 循环采样直到得到cfg.Samples个含建筑的切片，或抽取次数达到上限
func (g *Toolbox) Run(ctx context.Context, cfg Config, opts ...RunOption) (sum RunSummary, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	st := &runState{cfg: cfg}
	for _, opt := range opts {
		opt(&st.runOpts)
	}
	if st.metrics == nil {
		st.metrics = NewMetrics()
	}
	if cfg.MetricsFile != "" {
		defer func() {
			if e := st.metrics.WriteTextfile(cfg.MetricsFile); e != nil {
				log.Warn(g.logTag+"write metrics failed", zap.String("file", cfg.MetricsFile), zap.Error(e))
			}
		}()
	}
	if err = g.prepareStorage(ctx, st); err != nil {
		return
	}
	st.tileW, st.tileH = cfg.TileDims()
	src, err := g.OpenRaster(cfg.Source)
	if err != nil {
		return
	}
	if st.tileW > src.Width || st.tileH > src.Height {
		err = fmt.Errorf("%w: tile %dx%d, source %dx%d", ErrInvalidTileSize, st.tileW, st.tileH, src.Width, src.Height)
		return
	}
	if st.layer, err = g.OpenFootprints(cfg.Footprints, cfg.LabelField); err != nil {
		return
	}
	defer st.layer.Close()
	if st.target = cfg.TargetCRS; st.target == "" {
		st.target = st.layer.WKT
	}
	if st.rnd == nil {
		st.rnd = NewRand(cfg.Seed)
	}
	if st.workRoot = cfg.WorkDir; st.workRoot == "" {
		st.workRoot = filepath.Join(cfg.OutDir, workDirName)
	}
	if err = utils.EnsureDir(cfg.OutDir); err != nil {
		return
	}
	defer os.Remove(st.workRoot) // 仅在为空时删除

	log.Info(g.logTag+"start sampling", zap.String("source", cfg.Source), zap.Int("width", src.Width),
		zap.Int("height", src.Height), zap.Int("tileW", st.tileW), zap.Int("tileH", st.tileH),
		zap.Int("samples", cfg.Samples), zap.Int("maxAttempts", cfg.Attempts()), zap.Uint64("seed", cfg.Seed))

	maxAttempts := cfg.Attempts()
	for sum.Accepted < cfg.Samples {
		if err = ctx.Err(); err != nil {
			break
		}
		if sum.Attempts >= maxAttempts {
			err = fmt.Errorf("%w: %d attempts, %d of %d tiles accepted", ErrMaxAttempts, sum.Attempts, sum.Accepted, cfg.Samples)
			break
		}
		sum.Attempts++
		st.metrics.Attempts.Inc()
		start := time.Now()
		res, reason, e := g.attempt(ctx, st, sum.Accepted)
		st.metrics.TileTime.Observe(time.Since(start).Seconds())
		if e != nil {
			err = e
			break
		}
		if reason != "" {
			sum.Skipped++
			st.metrics.Skipped.WithLabelValues(reason).Inc()
			log.Debug(g.logTag+"tile skipped", zap.Int("attempt", sum.Attempts), zap.String("reason", reason))
			continue
		}
		sum.Accepted++
		sum.Tiles = append(sum.Tiles, res)
		st.metrics.Accepted.Inc()
		st.metrics.Footprints.Observe(float64(res.Footprints))
		log.Info(g.logTag+"tile accepted", zap.Int("idx", res.Index), zap.String("image", res.Image),
			zap.Int("footprints", res.Footprints), zap.Int("shapes", res.Shapes),
			zap.Int("xOff", res.XOffset), zap.Int("yOff", res.YOffset))
	}
	log.Info(g.logTag+"end sampling", zap.Int("attempts", sum.Attempts), zap.Int("accepted", sum.Accepted),
		zap.Int("skipped", sum.Skipped), zap.Error(err))
	return
}

func (g *Toolbox) prepareStorage(ctx context.Context, st *runState) (err error) {
	needSource := IsGSPath(st.cfg.Source)
	needUpload := st.cfg.Upload != "" && st.uploader == nil
	if !needSource && !needUpload {
		return
	}
	client, err := NewGCSClient(ctx, st.cfg.GCSAnonymous)
	if err != nil {
		return
	}
	if needSource {
		if err = RegisterGSReader(ctx, client); err != nil {
			return
		}
	}
	if needUpload {
		st.uploader, err = NewGCSUploader(client, st.cfg.Upload)
	}
	return
}

// 单次抽样：采样、重投影、筛选、换算、输出
// 切片不含建筑时返回放弃原因，且不在输出目录留下任何文件
func (g *Toolbox) attempt(ctx context.Context, st *runState, idx int) (res TileResult, reason string, err error) {
	cfg := &st.cfg
	work, err := utils.GetUniqSubDir(st.workRoot)
	if err != nil {
		return
	}
	defer os.RemoveAll(work)

	tile, err := g.SampleTile(cfg.Source, idx, st.tileW, st.tileH, st.rnd, work)
	if err != nil {
		return
	}
	conv, err := g.Reproject(tile, st.target, cfg.Resampling, work)
	if err != nil {
		return
	}
	ring := TileRing(conv.Info, st.tileW, !cfg.RectBounds)
	fps, err := st.layer.Within(QueryPolygon{Ring: ring, CRS: conv.Info.Projection})
	if err != nil {
		return
	}
	if len(fps) == 0 {
		reason = SkipEmpty
		return
	}
	shapes := make([]Shape, 0, len(fps))
	for _, fp := range fps {
		rings, e := ProjectFootprint(fp, conv.Info.Geotransform, cfg.Mode, cfg.ExactAffine)
		if e != nil {
			log.Warn(g.logTag+"skip footprint", zap.Int64("fid", fp.FID), zap.Error(e))
			continue
		}
		for _, pts := range rings {
			shapes = append(shapes, NewShape(fp.Label, cfg.Mode, pts))
		}
	}
	if len(shapes) == 0 {
		reason = SkipNoShapes
		return
	}
	image, err := g.ExportImage(conv, cfg.Format, cfg.BandOrder)
	if err != nil {
		return
	}

	stem := utils.GetFilenameWithoutExt(conv.Path)
	dstImage := filepath.Join(cfg.OutDir, stem+cfg.Format.Ext())
	dstAnno := filepath.Join(cfg.OutDir, AnnotationName(dstImage))
	dstTile := filepath.Join(cfg.OutDir, TileName(idx))
	dsts := []string{dstImage, dstAnno}
	if cfg.KeepSourceTile {
		dsts = append(dsts, dstTile)
	}
	for _, p := range dsts {
		if utils.FileExists(p) {
			err = fmt.Errorf("%w: %s", ErrOutputExists, p)
			return
		}
	}
	if err = utils.MoveFile(image, dstImage); err != nil {
		return
	}
	anno := NewAnnotation(dstImage, conv.Info.Width, conv.Info.Height, shapes)
	if err = WriteAnnotation(anno, dstAnno); err != nil {
		os.Remove(dstImage)
		return
	}
	res = TileResult{
		Index:      idx,
		Image:      dstImage,
		Annotation: dstAnno,
		Footprints: len(fps),
		Shapes:     len(shapes),
		XOffset:    tile.XOffset,
		YOffset:    tile.YOffset,
	}
	if cfg.KeepSourceTile {
		if err = utils.MoveFile(tile.Path, dstTile); err != nil {
			return
		}
		res.SourceTile = dstTile
	}
	if st.uploader != nil {
		err = g.upload(ctx, st.uploader, res)
	}
	return
}

func (g *Toolbox) upload(ctx context.Context, u Uploader, res TileResult) (err error) {
	var errs []error
	for _, p := range []string{res.Image, res.Annotation} {
		if _, e := u.Upload(ctx, p); e != nil {
			log.Error(g.logTag+"upload failed", zap.String("file", p), zap.Error(e))
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}
