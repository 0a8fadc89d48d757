package tilelabel

import (
	"github.com/lukeroth/gdal"
)

// 平面坐标点，序列化为[x,y]
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

// 随机源，*math/rand/v2.Rand 满足该接口
type Rand interface {
	IntN(n int) int
}

// 已关闭的栅格数据集的元信息快照
type RasterInfo struct {
	Path         string
	Width        int
	Height       int
	Bands        int
	DataType     string
	Geotransform Geotransform
	Projection   string // WKT
}

// 从源栅格中采样得到的切片
type Tile struct {
	Index   int
	Path    string
	XOffset int // 在源栅格像素空间中的偏移
	YOffset int
	Info    RasterInfo
}

// 建筑轮廓，Geom由FootprintLayer持有，随Close一并回收
type Footprint struct {
	FID   int64
	Label string
	Geom  gdal.Geometry
}

// 以某坐标系表达的查询多边形
type QueryPolygon struct {
	Ring Ring
	CRS  string // WKT
}

// labelme标注中的一个形状
type Shape struct {
	Label       string          `json:"label"`
	GroupID     string          `json:"group_id"`
	Description string          `json:"description"`
	ShapeType   string          `json:"shape_type"`
	Flags       map[string]bool `json:"flags"`
	Mask        *string         `json:"mask"`
	Points      []Point         `json:"points"`
}

// labelme标注文件
type Annotation struct {
	Version     string          `json:"version"`
	Flags       map[string]bool `json:"flags"`
	ImagePath   string          `json:"imagePath"`
	ImageData   *string         `json:"imageData"`
	ImageHeight int             `json:"imageHeight"`
	ImageWidth  int             `json:"imageWidth"`
	Shapes      []Shape         `json:"shapes"`
}

// 单个被接受切片的产出
type TileResult struct {
	Index      int
	Image      string // 输出影像路径
	SourceTile string // KeepSourceTile时保留的原坐标系切片
	Annotation string
	Footprints int // 完整落在切片内的建筑数
	Shapes     int // 标注形状数，多面建筑按外环计
	XOffset    int
	YOffset    int
}

// 一次任务的统计
type RunSummary struct {
	Attempts int
	Accepted int
	Skipped  int
	Tiles    []TileResult
}
