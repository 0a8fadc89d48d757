package tilelabel

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// 仿射变换参数 (x_origin, pixel_width, x_skew, y_origin, y_skew, pixel_height)
type Geotransform [6]float64

func (gt Geotransform) Origin() (x, y float64) {
	return gt[0], gt[3]
}

func (gt Geotransform) PixelSize() (w, h float64) {
	return gt[1], gt[5]
}

// 无旋转/错切项，ToPixel仅在此时精确
func (gt Geotransform) NorthUp() bool {
	return gt[2] == 0 && gt[4] == 0
}

// 像素(col,row) -> 坐标(x,y)
func (gt Geotransform) ToWorld(col, row float64) (x, y float64) {
	x = gt[0] + col*gt[1] + row*gt[2]
	y = gt[3] + col*gt[4] + row*gt[5]
	return
}

// 坐标(x,y) -> 像素(col,row)，忽略错切项
func (gt Geotransform) ToPixel(x, y float64) (col, row float64) {
	col = (x - gt[0]) / gt[1]
	row = (y - gt[3]) / gt[5]
	return
}

// 原点平移到(xOff,yOff)像素处，错切项不变
func (gt Geotransform) Shift(xOff, yOff int) Geotransform {
	gt[0] += float64(xOff) * gt[1]
	gt[3] += float64(yOff) * gt[5]
	return gt
}

// 完整仿射逆变换，结果沿用相同的参数排列，inv.ToWorld(x, y)即得(col, row)
// 含错切项时同样精确
func (gt Geotransform) Invert() (inv Geotransform, err error) {
	m := mat.NewDense(3, 3, []float64{
		gt[1], gt[2], gt[0],
		gt[4], gt[5], gt[3],
		0, 0, 1,
	})
	var im mat.Dense
	if err = im.Inverse(m); err != nil {
		err = fmt.Errorf("invert geotransform %v: %w", [6]float64(gt), err)
		return
	}
	inv = Geotransform{
		im.At(0, 2), im.At(0, 0), im.At(0, 1),
		im.At(1, 2), im.At(1, 0), im.At(1, 1),
	}
	return
}

// 由切片仿射参数计算左上角与右下角坐标
// 纵向范围同样使用tileWidth（正方形切片假设，与历史行为保持一致）
func Corners(gt Geotransform, tileWidth int) (x0, y0, x1, y1 float64) {
	return CornersWH(gt, tileWidth, tileWidth)
}

// Corners的宽高分离版本
func CornersWH(gt Geotransform, width, height int) (x0, y0, x1, y1 float64) {
	x0, y0 = gt.Origin()
	x1 = x0 + float64(width)*gt[1]
	y1 = y0 + float64(height)*gt[5]
	return
}

// 四点环：左上、右上、右下、左下，不重复首点
type Ring [4]Point

func ToRing(x0, y0, x1, y1 float64) Ring {
	return Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// 闭合环（末点与首点相同）
func (r Ring) Closed() []Point {
	return []Point{r[0], r[1], r[2], r[3], r[0]}
}

func (r Ring) Wkt() string {
	var sb strings.Builder
	sb.WriteString("POLYGON((")
	for i, p := range r.Closed() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
	}
	sb.WriteString("))")
	return sb.String()
}

// 由重投影后切片得到查询多边形
// square为true时沿用按tileWidth计算的正方形范围，否则使用切片实际宽高
func TileRing(info RasterInfo, tileWidth int, square bool) Ring {
	if square {
		return ToRing(Corners(info.Geotransform, tileWidth))
	}
	return ToRing(CornersWH(info.Geotransform, info.Width, info.Height))
}
