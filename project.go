package tilelabel

import (
	"fmt"
	"math"
	"strings"

	"github.com/lukeroth/gdal"
)

// 矢量转像素坐标的方式，同时作为标注形状的group_id
type ProjectMode string

const (
	ModeBBox    ProjectMode = "bbox"
	ModePolygon ProjectMode = "polygon"
)

func ParseProjectMode(s string) (m ProjectMode, err error) {
	switch ProjectMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBBox:
		m = ModeBBox
	case ModePolygon, "":
		m = ModePolygon
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidProjectMode, s)
	}
	return
}

// 坐标 -> 像素
type pixelFunc func(x, y float64) (col, row float64)

// 按仿射参数将环上各点换算为像素坐标（忽略错切项）
// bbox模式取外包矩形四角；polygon模式取全部顶点并去掉闭合点
func ProjectRing(ring []Point, gt Geotransform, mode ProjectMode) []Point {
	return projectRing(ring, gt.ToPixel, mode)
}

func projectRing(ring []Point, toPixel pixelFunc, mode ProjectMode) (ret []Point) {
	if len(ring) == 0 {
		return
	}
	var pts []Point
	if mode == ModeBBox {
		minX, minY, maxX, maxY := bounds(ring)
		// 北向上栅格中maxY对应像素上边缘，得到像素空间的左上、右上、右下、左下
		r := ToRing(minX, maxY, maxX, minY)
		pts = r[:]
	} else {
		pts = openRing(ring)
	}
	ret = make([]Point, len(pts))
	for i, p := range pts {
		col, row := toPixel(p[0], p[1])
		ret[i] = Point{col, row}
	}
	return
}

func bounds(ring []Point) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range ring {
		minX = math.Min(minX, p[0])
		maxX = math.Max(maxX, p[0])
		minY = math.Min(minY, p[1])
		maxY = math.Max(maxY, p[1])
	}
	return
}

// 去掉与首点重合的末点
func openRing(ring []Point) []Point {
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		return ring[:n-1]
	}
	return ring
}

// 将建筑轮廓的每个外环换算为像素坐标，多面要素返回多组点
// exact为true时使用完整仿射逆变换
func ProjectFootprint(fp Footprint, gt Geotransform, mode ProjectMode, exact bool) (rings [][]Point, err error) {
	toPixel := pixelFunc(gt.ToPixel)
	if exact {
		var inv Geotransform
		if inv, err = gt.Invert(); err != nil {
			return
		}
		toPixel = inv.ToWorld
	}
	exteriors, err := ExteriorRings(fp.Geom)
	if err != nil {
		err = fmt.Errorf("footprint %d: %w", fp.FID, err)
		return
	}
	rings = make([][]Point, 0, len(exteriors))
	for _, ring := range exteriors {
		if pts := projectRing(ring, toPixel, mode); len(pts) > 0 {
			rings = append(rings, pts)
		}
	}
	return
}

// 取面/多面几何的外环顶点
func ExteriorRings(geo gdal.Geometry) (rings [][]Point, err error) {
	switch geo.Type() {
	case gdal.GT_Polygon:
		rings = append(rings, ringPoints(geo.Geometry(0)))
	case gdal.GT_MultiPolygon:
		for i := 0; i < geo.GeometryCount(); i++ {
			rings = append(rings, ringPoints(geo.Geometry(i).Geometry(0)))
		}
	default:
		err = fmt.Errorf("%w: type %d", ErrGdalWrongGeoType, geo.Type())
	}
	return
}

func ringPoints(ring gdal.Geometry) []Point {
	n := ring.PointCount()
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		x, y, _ := ring.Point(i)
		pts[i] = Point{x, y}
	}
	return pts
}
