package tilelabel

import (
	"fmt"
	"path/filepath"

	"github.com/wgdzlh/tilelabel/log"
	"github.com/wgdzlh/tilelabel/utils"

	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 重投影输出文件名 <stem>_converted.tif
func ConvertedName(tilePath string) string {
	return utils.GetFilenameWithoutExt(tilePath) + CONVERTED_SUFFIX + FILE_EXT_TIF
}

// 将切片重投影到target坐标系，写入outDir，已存在的输出文件不会被覆盖
func (g *Toolbox) Reproject(tile Tile, target, resampling, outDir string) (ret Tile, err error) {
	crs, err := g.ResolveCRS(target)
	if err != nil {
		return
	}
	if resampling == "" {
		resampling = DEFAULT_RESAMPLE
	}
	if err = utils.EnsureDir(outDir); err != nil {
		err = fmt.Errorf("%w: %v", ErrRasterWrite, err)
		return
	}
	out := filepath.Join(outDir, ConvertedName(tile.Path))
	if utils.FileExists(out) {
		err = fmt.Errorf("%w: %s", ErrOutputExists, out)
		return
	}
	sds, err := godal.Open(tile.Path, godal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open tile failed", zap.String("tile", tile.Path), zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrRasterOpen, tile.Path, err)
		return
	}
	log.Debug(g.logTag+"reproject tile", zap.String("tile", tile.Path), zap.String("crs", shortCRS(crs.Name)),
		zap.String("resampling", resampling))
	ods, err := sds.Warp(out, []string{"-t_srs", crs.WKT, "-r", resampling},
		godal.GTiff, godal.CreationOption(tileCreationOptions...))
	sds.Close()
	if err != nil {
		log.Error(g.logTag+"failed to warp tile", zap.String("tile", tile.Path), zap.Error(err))
		err = fmt.Errorf("%w: warp %s: %v", ErrRasterWrite, tile.Path, err)
		return
	}
	info, err := rasterInfo(out, ods)
	if e := ods.Close(); e != nil && err == nil { // 关闭后落盘
		err = fmt.Errorf("%w: close %s: %v", ErrRasterWrite, out, e)
	}
	if err != nil {
		return
	}
	ret = Tile{
		Index:   tile.Index,
		Path:    out,
		XOffset: tile.XOffset,
		YOffset: tile.YOffset,
		Info:    info,
	}
	return
}
