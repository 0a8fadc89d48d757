package tilelabel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wgdzlh/tilelabel/log"
	"github.com/wgdzlh/tilelabel/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 一次性载入内存的建筑轮廓图层
type FootprintLayer struct {
	Path       string
	WKT        string // 图层坐标系
	Footprints []Footprint

	srs    gdal.SpatialReference
	logTag string
}

// 按路径选择OGR驱动，目录形式取其中的shp
func vectorSource(path string) (driver, file string, err error) {
	file = path
	if st, e := os.Stat(path); e == nil && st.IsDir() {
		if file = utils.FindShpInDir(path); file == "" {
			err = fmt.Errorf("%w: no shapefile in %s", ErrGdalDriverOpen, path)
			return
		}
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".gpkg":
		driver = GPKG_DRIVER_NAME
	case ".geojson", FILE_EXT_JSON:
		driver = GEOJSON_DRIVER_NAME
	default:
		driver = SHP_DRIVER_NAME
	}
	return
}

func openVector(path string) (ds gdal.DataSource, file string, err error) {
	driver, file, err := vectorSource(path)
	if err != nil {
		return
	}
	ds, ok := gdal.OGRDriverByName(driver).Open(file, 0)
	if !ok {
		err = fmt.Errorf("%w: %s (%s)", ErrGdalDriverOpen, file, driver)
		return
	}
	if ds.LayerCount() == 0 {
		ds.Destroy()
		err = fmt.Errorf("%w: %s", ErrGdalEmptyLayer, file)
	}
	return
}

func newTraditionalSRS(wkt string) (sr gdal.SpatialReference, err error) {
	sr = gdal.CreateSpatialReference("")
	if err = sr.FromWKT(wkt); err != nil {
		sr.Destroy()
		err = fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		return
	}
	// 坐标始终按经度/东向在前
	sr.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	return
}

// 属性字段的标签值，编码为GBK时转为UTF-8
func decodeLabel(raw string, utf8Enc bool) string {
	if utf8Enc || utf8.ValidString(raw) {
		return raw
	}
	if s, e := utils.GbkStrToUtf8(raw); e == nil {
		return s
	}
	return utils.PurifyForUtf8(raw)
}

// 标签字段索引，字段名可能以GBK存储
func labelFieldIndex(layer gdal.Layer, labelField string) (idx int, err error) {
	def := layer.Definition()
	if idx = def.FieldIndex(labelField); idx >= 0 {
		return
	}
	if gbk, e := utils.Utf8StrToGbk(labelField); e == nil {
		if idx = def.FieldIndex(gbk); idx >= 0 {
			return
		}
	}
	err = fmt.Errorf(ErrColumnMissingTemplate, labelField)
	return
}

// 载入建筑轮廓矢量，labelField为空时标签统一为unlabeled
func (g *Toolbox) OpenFootprints(path, labelField string) (fl *FootprintLayer, err error) {
	log.Info(g.logTag+"open footprints", zap.String("path", path), zap.String("labelField", labelField))
	ds, file, err := openVector(path)
	if err != nil {
		log.Error(g.logTag+"open footprints failed", zap.Error(err))
		return
	}
	defer ds.Destroy()
	layer := ds.LayerByIndex(0)
	wkt, e := layer.SpatialReference().ToWKT()
	if e != nil || wkt == "" {
		err = fmt.Errorf("%w: %s", ErrVoidSrid, file)
		return
	}
	srs, err := newTraditionalSRS(wkt)
	if err != nil {
		return
	}
	labelIdx := -1
	if labelField != "" {
		if labelIdx, err = labelFieldIndex(layer, labelField); err != nil {
			srs.Destroy()
			return
		}
	}
	_, utf8Enc := utils.GetShpEncoding(file)
	fl = &FootprintLayer{
		Path:   file,
		WKT:    wkt,
		srs:    srs,
		logTag: g.logTag,
	}
	if cnt, ok := layer.FeatureCount(true); ok {
		fl.Footprints = make([]Footprint, 0, cnt)
	}
	var (
		feature *gdal.Feature
		geo     gdal.Geometry
		skipped int
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		geo = feature.Geometry()
		if geo.IsEmpty() || (geo.Type() != gdal.GT_Polygon && geo.Type() != gdal.GT_MultiPolygon) {
			skipped++
			continue
		}
		fp := Footprint{
			FID:   feature.FID(),
			Label: DEFAULT_LABEL,
			Geom:  geo.Clone(),
		}
		if labelIdx >= 0 {
			if label := decodeLabel(feature.FieldAsString(labelIdx), utf8Enc); label != "" {
				fp.Label = label
			}
		}
		fl.Footprints = append(fl.Footprints, fp)
	}
	log.Info(g.logTag+"footprints loaded", zap.String("file", file), zap.Int("cnt", len(fl.Footprints)),
		zap.Int("skipped", skipped), zap.String("crs", shortCRS(wkt)))
	return
}

// 筛选完全落在查询多边形内的建筑，跨越边界的不计入
// 结果为空不视为错误
func (fl *FootprintLayer) Within(q QueryPolygon) (ret []Footprint, err error) {
	if q.CRS == "" {
		err = fmt.Errorf("%w: query polygon without crs", ErrCRSMismatch)
		return
	}
	qsr, err := newTraditionalSRS(q.CRS)
	if err != nil {
		err = fmt.Errorf("%w: query polygon: %v", ErrCRSMismatch, err)
		return
	}
	defer qsr.Destroy()
	if !fl.srs.IsSame(qsr) {
		log.Warn(fl.logTag+"crs mismatch", zap.String("layer", shortCRS(fl.WKT)), zap.String("query", shortCRS(q.CRS)))
		err = ErrCRSMismatch
		return
	}
	query, err := gdal.CreateFromWKT(q.Ring.Wkt(), fl.srs)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		return
	}
	defer query.Destroy()
	for _, fp := range fl.Footprints {
		if fp.Geom.Within(query) {
			ret = append(ret, fp)
		}
	}
	log.Debug(fl.logTag+"footprints within tile", zap.Int("cnt", len(ret)), zap.String("ring", q.Ring.Wkt()))
	return
}

func (fl *FootprintLayer) Close() {
	for _, fp := range fl.Footprints {
		fp.Geom.Destroy()
	}
	fl.Footprints = nil
	fl.srs.Destroy()
}

// 获取矢量文件中labelField字段的全部取值（去重、排序）
func (g *Toolbox) Labels(path, labelField string) (labels []string, err error) {
	ds, file, err := openVector(path)
	if err != nil {
		return
	}
	defer ds.Destroy()
	layer := ds.LayerByIndex(0)
	labelIdx, err := labelFieldIndex(layer, labelField)
	if err != nil {
		return
	}
	_, utf8Enc := utils.GetShpEncoding(file)
	var (
		labelSet = map[string]struct{}{}
		feature  *gdal.Feature
		cnt      int
		gc       []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		if label := decodeLabel(feature.FieldAsString(labelIdx), utf8Enc); label != "" {
			labelSet[label] = struct{}{}
		}
		cnt++
	}
	labels = make([]string, 0, len(labelSet))
	for k := range labelSet {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	log.Info(g.logTag+"got labels from footprints", zap.String("file", file), zap.Strings("labels", labels), zap.Int("cnt", cnt))
	return
}
