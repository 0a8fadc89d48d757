package tilelabel

import (
	"fmt"
	"strings"

	"github.com/wgdzlh/tilelabel/utils"

	"github.com/caarlos0/env/v11"
)

const (
	FILE_EXT_TIF  = ".tif"
	FILE_EXT_JPG  = ".jpg"
	FILE_EXT_PNG  = ".png"
	FILE_EXT_JSON = ".json"

	TILE_SUFFIX      = "_tile"
	CONVERTED_SUFFIX = "_converted"

	SHP_DRIVER_NAME     = "ESRI Shapefile"
	GPKG_DRIVER_NAME    = "GPKG"
	GEOJSON_DRIVER_NAME = "GeoJSON"
	JPEG_DRIVER_NAME    = "JPEG"
	PNG_DRIVER_NAME     = "PNG"

	LABELME_VERSION  = "5.4.1"
	DEFAULT_LABEL    = "unlabeled"
	SHAPE_TYPE       = "polygon"
	DEFAULT_RESAMPLE = "near"

	ErrColumnMissingTemplate = `矢量文件中缺失【%s】字段`
)

var (
	// 无损压缩，与原始切片保持一致
	tileCreationOptions = []string{"COMPRESS=DEFLATE", "PREDICTOR=2", "TILED=YES"}
	cogCreationOptions  = []string{"TILED=YES", "BLOCKXSIZE=256", "BLOCKYSIZE=256", "COMPRESS=DEFLATE", "BIGTIFF=IF_SAFER"}
)

type ImageFormat string

const (
	FormatTIF ImageFormat = "tif"
	FormatJPG ImageFormat = "jpg"
	FormatPNG ImageFormat = "png"
	FormatCOG ImageFormat = "cog"
)

func (f ImageFormat) Ext() string {
	switch f {
	case FormatJPG:
		return FILE_EXT_JPG
	case FormatPNG:
		return FILE_EXT_PNG
	default:
		return FILE_EXT_TIF
	}
}

// Config 描述一次切片采样任务，所有字段可由环境变量设定，命令行参数优先
type Config struct {
	Source     string `env:"TILELABEL_SOURCE"`
	Footprints string `env:"TILELABEL_FOOTPRINTS"`
	OutDir     string `env:"TILELABEL_OUT_DIR" envDefault:"out"`
	WorkDir    string `env:"TILELABEL_WORK_DIR"` // 为空时使用OutDir下的.work目录

	TileSize   int    `env:"TILELABEL_TILE_SIZE" envDefault:"512"`
	TileHeight int    `env:"TILELABEL_TILE_HEIGHT"` // 0表示正方形切片
	Samples    int    `env:"TILELABEL_SAMPLES" envDefault:"100"`
	// 0表示 Samples*DefaultAttemptsPerSample
	MaxAttempts int    `env:"TILELABEL_MAX_ATTEMPTS"`
	Seed        uint64 `env:"TILELABEL_SEED"`
	// 为空时使用建筑矢量自身的坐标系
	TargetCRS  string      `env:"TILELABEL_TARGET_CRS"`
	Resampling string      `env:"TILELABEL_RESAMPLING" envDefault:"near"`
	Format     ImageFormat `env:"TILELABEL_FORMAT" envDefault:"tif"`
	BandOrder  string      `env:"TILELABEL_BAND_ORDER" envDefault:"R,G,B"`
	Mode       ProjectMode `env:"TILELABEL_MODE" envDefault:"polygon"`

	// 按切片实际宽高计算查询范围，默认沿用按切片宽度计算的正方形范围
	RectBounds     bool `env:"TILELABEL_RECT_BOUNDS"`
	ExactAffine    bool `env:"TILELABEL_EXACT_AFFINE"`
	KeepSourceTile bool `env:"TILELABEL_KEEP_SOURCE_TILE"`

	LabelField  string `env:"TILELABEL_LABEL_FIELD"`
	MetricsFile string `env:"TILELABEL_METRICS_FILE"`
	Upload      string `env:"TILELABEL_UPLOAD"` // gs://bucket/prefix
	// 匿名访问公开的gs://数据
	GCSAnonymous bool `env:"TILELABEL_GCS_ANONYMOUS"`

	LogLevel     string `env:"TILELABEL_LOG_LEVEL" envDefault:"info"`
	LogJSON      bool   `env:"TILELABEL_LOG_JSON"`
	CRSCacheSize int64  `env:"TILELABEL_CRS_CACHE_SIZE" envDefault:"64"`
}

const DefaultAttemptsPerSample = 50

// 从环境变量加载配置
func LoadConfig() (cfg Config, err error) {
	if err = env.Parse(&cfg); err != nil {
		err = fmt.Errorf("parse config: %w", err)
	}
	return
}

func (c *Config) TileDims() (w, h int) {
	w, h = c.TileSize, c.TileHeight
	if h <= 0 {
		h = w
	}
	return
}

func (c *Config) Attempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return c.Samples * DefaultAttemptsPerSample
}

func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: source raster is required", ErrInvalidConfig)
	}
	if c.Footprints == "" {
		return fmt.Errorf("%w: footprints dataset is required", ErrInvalidConfig)
	}
	if c.OutDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalidConfig)
	}
	if w, h := c.TileDims(); w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTileSize, w, h)
	}
	if c.Samples <= 0 {
		return fmt.Errorf("%w: samples must be positive, got %d", ErrInvalidConfig, c.Samples)
	}
	c.Format = ImageFormat(strings.ToLower(string(c.Format)))
	switch c.Format {
	case FormatTIF, FormatJPG, FormatPNG, FormatCOG:
	case "":
		c.Format = FormatTIF
	default:
		return fmt.Errorf("%w: unknown image format %q", ErrInvalidConfig, c.Format)
	}
	mode, err := ParseProjectMode(string(c.Mode))
	if err != nil {
		return err
	}
	c.Mode = mode
	if c.Upload != "" && !strings.HasPrefix(c.Upload, utils.GS_PREFIX) {
		return fmt.Errorf("%w: upload destination must start with %s", ErrInvalidConfig, utils.GS_PREFIX)
	}
	if c.Resampling == "" {
		c.Resampling = DEFAULT_RESAMPLE
	}
	return nil
}
