package tilelabel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/lukeroth/gdal"
	"github.com/stretchr/testify/require"
)

const (
	fixtureEPSG = 32633
	fixtureX0   = 500000.0
	fixtureY0   = 4000000.0
)

var fixtureGT = Geotransform{fixtureX0, 1, 0, fixtureY0, 0, -1}

// 依次返回预设值（对n取余），用于固定窗口偏移
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

func newTestToolbox(t *testing.T) *Toolbox {
	g := NewToolbox()
	t.Cleanup(g.Close)
	return g
}

func epsgWKT(t *testing.T, code int) string {
	sr, err := godal.NewSpatialRefFromEPSG(code)
	require.NoError(t, err)
	defer sr.Close()
	wkt, err := sr.WKT()
	require.NoError(t, err)
	return wkt
}

// 生成3波段Byte型GeoTIFF，像素值随位置变化
func writeRaster(t *testing.T, path string, width, height int, gt Geotransform) {
	writeTypedRaster(t, path, width, height, gt, godal.Byte)
}

// 指定数据类型的3波段GeoTIFF，UInt16时像素值超出8位范围
func writeTypedRaster(t *testing.T, path string, width, height int, gt Geotransform, dt godal.DataType) {
	registerOnce.Do(godal.RegisterAll)
	ds, err := godal.Create(godal.GTiff, path, 3, dt, width, height)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform(gt))
	require.NoError(t, ds.SetProjection(epsgWKT(t, fixtureEPSG)))
	buf, err := allocBuffer(dt, width*height*3)
	require.NoError(t, err)
	switch b := buf.(type) {
	case []byte:
		for i := range b {
			b[i] = byte((i/3)%width + i%3)
		}
	case []uint16:
		for i := range b {
			b[i] = uint16(((i/3)%width)*100 + i%3)
		}
	default:
		t.Fatalf("unsupported fixture data type %s", dt)
	}
	require.NoError(t, ds.Write(0, 0, buf, width, height))
	require.NoError(t, ds.Close())
}

// 轴对齐矩形建筑
type box struct {
	minX, minY, maxX, maxY float64
	label                  string
}

func (b box) coords() string {
	return fmt.Sprintf("[[%[1]f,%[2]f],[%[3]f,%[2]f],[%[3]f,%[4]f],[%[1]f,%[4]f],[%[1]f,%[2]f]]",
		b.minX, b.minY, b.maxX, b.maxY)
}

func (b box) feature() feature {
	return feature{b.label, fmt.Sprintf(`{"type":"Polygon","coordinates":[%s]}`, b.coords())}
}

// 多个矩形组成的一个MultiPolygon要素，标签取首个矩形
type multiBox []box

func (m multiBox) feature() feature {
	parts := make([]string, len(m))
	for i, b := range m {
		parts[i] = "[" + b.coords() + "]"
	}
	return feature{m[0].label, fmt.Sprintf(`{"type":"MultiPolygon","coordinates":[%s]}`, strings.Join(parts, ","))}
}

// GeoJSON要素的标签与几何
type feature struct {
	label    string
	geometry string
}

// 生成带crs声明的GeoJSON建筑图层
func writeFootprints(t *testing.T, path string, epsg int, boxes ...box) {
	feats := make([]feature, len(boxes))
	for i, b := range boxes {
		feats[i] = b.feature()
	}
	writeFeatures(t, path, epsg, feats...)
}

func writeFeatures(t *testing.T, path string, epsg int, feats ...feature) {
	items := make([]string, len(feats))
	for i, f := range feats {
		items[i] = fmt.Sprintf(`{"type":"Feature","id":%d,"properties":{"class":%q},"geometry":%s}`,
			i, f.label, f.geometry)
	}
	doc := fmt.Sprintf(`{"type":"FeatureCollection",`+
		`"crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::%d"}},`+
		`"features":[%s]}`, epsg, strings.Join(items, ","))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

// 经度在前的EPSG坐标系
func traditionalRef(t *testing.T, code int) gdal.SpatialReference {
	sr := gdal.CreateSpatialReference("")
	require.NoError(t, sr.FromEPSG(code))
	sr.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	t.Cleanup(sr.Destroy)
	return sr
}

// 将fixtureEPSG下的建筑转到EPSG:4326，返回要素及各建筑外环首点的经纬度
func lonLatFeatures(t *testing.T, boxes []box) (feats []feature, firsts []Point) {
	src := traditionalRef(t, fixtureEPSG)
	dst := traditionalRef(t, 4326)
	for _, b := range boxes {
		geo, err := gdal.CreateFromWKT(ToRing(b.minX, b.minY, b.maxX, b.maxY).Wkt(), src)
		require.NoError(t, err)
		require.NoError(t, geo.TransformTo(dst))
		rings, err := ExteriorRings(geo)
		geo.Destroy()
		require.NoError(t, err)
		pts := make([]string, len(rings[0]))
		for i, p := range rings[0] {
			pts[i] = "[" + strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64) + "]"
		}
		feats = append(feats, feature{b.label, `{"type":"Polygon","coordinates":[[` + strings.Join(pts, ",") + `]]}`})
		firsts = append(firsts, rings[0][0])
	}
	return
}

func listFiles(t *testing.T, dir string) (names []string) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return
}

func fixturePaths(t *testing.T) (dir, raster, footprints string) {
	dir = t.TempDir()
	raster = filepath.Join(dir, "scene.tif")
	footprints = filepath.Join(dir, "buildings.geojson")
	return
}
