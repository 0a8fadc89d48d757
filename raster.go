package tilelabel

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"

	"github.com/wgdzlh/tilelabel/log"
	"github.com/wgdzlh/tilelabel/utils"

	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 采样窗口，宽高已按源栅格边界截断
type Window struct {
	XOffset int
	YOffset int
	Width   int
	Height  int
}

// 由种子构造可复现的随机源
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// 读取栅格元信息，读取后立即关闭数据集
func (g *Toolbox) OpenRaster(tif string) (info RasterInfo, err error) {
	ds, err := godal.Open(tif, godal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open raster failed", zap.String("tif", tif), zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrRasterOpen, tif, err)
		return
	}
	defer ds.Close()
	info, err = rasterInfo(tif, ds)
	return
}

func rasterInfo(path string, ds *godal.Dataset) (info RasterInfo, err error) {
	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		err = fmt.Errorf("%w: %s: geotransform: %v", ErrRasterRead, path, err)
		return
	}
	info = RasterInfo{
		Path:         path,
		Width:        st.SizeX,
		Height:       st.SizeY,
		Bands:        st.NBands,
		DataType:     st.DataType.String(),
		Geotransform: gt,
		Projection:   ds.Projection(),
	}
	return
}

// 在[0,width-tileWidth)、[0,height-tileHeight)内随机抽取窗口偏移
// 切片与源栅格等宽（高）时偏移取0
func DrawWindow(width, height, tileWidth, tileHeight int, rnd Rand) (w Window, err error) {
	if tileWidth <= 0 || tileHeight <= 0 || tileWidth > width || tileHeight > height {
		err = fmt.Errorf("%w: tile %dx%d, source %dx%d", ErrInvalidTileSize, tileWidth, tileHeight, width, height)
		return
	}
	if n := width - tileWidth; n > 0 {
		w.XOffset = rnd.IntN(n)
	}
	if n := height - tileHeight; n > 0 {
		w.YOffset = rnd.IntN(n)
	}
	w.Width = min(tileWidth, width-w.XOffset)
	w.Height = min(tileHeight, height-w.YOffset)
	return
}

// 切片文件名 <idx>_tile.tif
func TileName(idx int) string {
	return strconv.Itoa(idx) + TILE_SUFFIX + FILE_EXT_TIF
}

// 从源栅格中随机采样tileWidth x tileHeight的切片并写入outDir
func (g *Toolbox) SampleTile(src string, idx, tileWidth, tileHeight int, rnd Rand, outDir string) (tile Tile, err error) {
	sds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open source raster failed", zap.String("src", src), zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrRasterOpen, src, err)
		return
	}
	defer sds.Close()
	info, err := rasterInfo(src, sds)
	if err != nil {
		return
	}
	win, err := DrawWindow(info.Width, info.Height, tileWidth, tileHeight, rnd)
	if err != nil {
		return
	}
	if err = utils.EnsureDir(outDir); err != nil {
		err = fmt.Errorf("%w: %v", ErrRasterWrite, err)
		return
	}
	out := filepath.Join(outDir, TileName(idx))
	log.Debug(g.logTag+"sample tile", zap.Int("idx", idx), zap.Int("xOff", win.XOffset), zap.Int("yOff", win.YOffset),
		zap.Int("width", win.Width), zap.Int("height", win.Height), zap.Int("bands", info.Bands))

	dt := sds.Structure().DataType
	buf, err := allocBuffer(dt, win.Width*win.Height*info.Bands)
	if err != nil {
		return
	}
	if err = sds.Read(win.XOffset, win.YOffset, buf, win.Width, win.Height); err != nil {
		log.Error(g.logTag+"read source window failed", zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrRasterRead, src, err)
		return
	}
	gt := info.Geotransform.Shift(win.XOffset, win.YOffset)
	if err = writeTile(out, info, dt, win, gt, buf); err != nil {
		log.Error(g.logTag+"write tile failed", zap.String("out", out), zap.Error(err))
		return
	}
	tile = Tile{
		Index:   idx,
		Path:    out,
		XOffset: win.XOffset,
		YOffset: win.YOffset,
		Info: RasterInfo{
			Path:         out,
			Width:        win.Width,
			Height:       win.Height,
			Bands:        info.Bands,
			DataType:     info.DataType,
			Geotransform: gt,
			Projection:   info.Projection,
		},
	}
	return
}

func writeTile(out string, src RasterInfo, dt godal.DataType, win Window, gt Geotransform, buf interface{}) (err error) {
	ods, err := godal.Create(godal.GTiff, out, src.Bands, dt, win.Width, win.Height,
		godal.CreationOption(tileCreationOptions...))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrRasterWrite, out, err)
	}
	// 关闭后写入才落盘
	defer func() {
		if e := ods.Close(); e != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrRasterWrite, out, e)
		}
	}()
	if err = ods.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("%w: set geotransform: %v", ErrRasterWrite, err)
	}
	if src.Projection != "" {
		if err = ods.SetProjection(src.Projection); err != nil {
			return fmt.Errorf("%w: set projection: %v", ErrRasterWrite, err)
		}
	}
	if err = ods.Write(0, 0, buf, win.Width, win.Height); err != nil {
		return fmt.Errorf("%w: write pixels: %v", ErrRasterWrite, err)
	}
	return
}

// 按数据类型分配像素交错缓冲区
func allocBuffer(dt godal.DataType, n int) (buf interface{}, err error) {
	switch dt {
	case godal.Byte:
		buf = make([]byte, n)
	case godal.Int8:
		buf = make([]int8, n)
	case godal.Int16:
		buf = make([]int16, n)
	case godal.UInt16:
		buf = make([]uint16, n)
	case godal.Int32:
		buf = make([]int32, n)
	case godal.UInt32:
		buf = make([]uint32, n)
	case godal.Float32:
		buf = make([]float32, n)
	case godal.Float64:
		buf = make([]float64, n)
	case godal.CFloat32:
		buf = make([]complex64, n)
	case godal.CFloat64:
		buf = make([]complex128, n)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedDType, dt.String())
	}
	return
}
