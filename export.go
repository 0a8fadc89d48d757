package tilelabel

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wgdzlh/tilelabel/log"
	"github.com/wgdzlh/tilelabel/utils"

	"github.com/airbusgeo/cogger"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 按输出格式导出重投影后的切片，返回输出影像路径
// tif格式直接沿用重投影结果
func (g *Toolbox) ExportImage(tile Tile, format ImageFormat, bandOrder string) (out string, err error) {
	switch format {
	case FormatTIF, "":
		out = tile.Path
	case FormatJPG, FormatPNG:
		out, err = g.translateImage(tile, format, bandOrder)
	case FormatCOG:
		out, err = g.rewriteCOG(tile)
	default:
		err = fmt.Errorf("%w: unknown image format %q", ErrInvalidConfig, format)
	}
	return
}

// 波段选择与8位拉伸参数
func translateSwitches(info RasterInfo, bandOrder string) (switches []string) {
	if info.Bands >= 3 {
		if idx, e := utils.GetBasicBandIdx(bandOrder); e == nil {
			switches = append(switches, "-b", idx[0], "-b", idx[1], "-b", idx[2])
		} else {
			switches = append(switches, "-b", "1", "-b", "2", "-b", "3")
		}
	} else {
		switches = append(switches, "-b", "1")
	}
	if info.DataType != godal.Byte.String() {
		switches = append(switches, "-ot", "Byte", "-scale")
	}
	return
}

func (g *Toolbox) translateImage(tile Tile, format ImageFormat, bandOrder string) (out string, err error) {
	driver := JPEG_DRIVER_NAME
	if format == FormatPNG {
		driver = PNG_DRIVER_NAME
	}
	out = filepath.Join(filepath.Dir(tile.Path), utils.GetFilenameWithoutExt(tile.Path)+format.Ext())
	sds, err := godal.Open(tile.Path, godal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrRasterOpen, tile.Path, err)
		return
	}
	defer sds.Close()
	switches := translateSwitches(tile.Info, bandOrder)
	log.Debug(g.logTag+"translate tile", zap.String("tile", tile.Path), zap.String("driver", driver), zap.Strings("switches", switches))
	ods, err := sds.Translate(out, switches, godal.DriverName(driver))
	if err != nil {
		log.Error(g.logTag+"failed to translate tile", zap.Error(err))
		err = fmt.Errorf("%w: translate %s: %v", ErrRasterWrite, tile.Path, err)
		return
	}
	if err = ods.Close(); err != nil {
		err = fmt.Errorf("%w: close %s: %v", ErrRasterWrite, out, err)
	}
	return
}

// 切片转为云优化GeoTIFF：先生成带金字塔的分块tif，再由cogger重排
func (g *Toolbox) rewriteCOG(tile Tile) (out string, err error) {
	dir := filepath.Dir(tile.Path)
	out = filepath.Join(dir, utils.GetFilenameWithoutExt(tile.Path)+"_cog"+FILE_EXT_TIF)
	tmpf, err := os.CreateTemp(dir, "*"+FILE_EXT_TIF)
	if err != nil {
		return
	}
	tmpf.Close()
	tmpName := tmpf.Name()
	defer os.Remove(tmpName)

	sds, err := godal.Open(tile.Path, godal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrRasterOpen, tile.Path, err)
		return
	}
	var switches []string
	for _, co := range cogCreationOptions {
		switches = append(switches, "-co", co)
	}
	ods, err := sds.Translate(tmpName, append(switches, "-of", "GTiff"))
	sds.Close()
	if err != nil {
		err = fmt.Errorf("%w: translate %s: %v", ErrRasterWrite, tile.Path, err)
		return
	}
	if err = ods.BuildOverviews(); err != nil {
		log.Warn(g.logTag+"build overviews failed", zap.String("tile", tile.Path), zap.Error(err))
	}
	if err = ods.Close(); err != nil {
		err = fmt.Errorf("%w: close temp tif: %v", ErrRasterWrite, err)
		return
	}
	if tmpf, err = os.Open(tmpName); err != nil {
		return
	}
	defer tmpf.Close()
	outf, err := os.Create(out)
	if err != nil {
		return
	}
	if err = cogger.Rewrite(outf, tmpf); err != nil {
		outf.Close()
		os.Remove(out)
		err = fmt.Errorf("%w: cogger rewrite: %v", ErrRasterWrite, err)
		return
	}
	if err = outf.Close(); err != nil {
		os.Remove(out)
	}
	return
}
