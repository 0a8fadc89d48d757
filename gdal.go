package tilelabel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wgdzlh/tilelabel/log"

	"github.com/airbusgeo/godal"
	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"
)

const crsCacheTTL = 24 * time.Hour

var (
	registerOnce sync.Once
	epsgPattern  = regexp.MustCompile(`(?i)^\s*(?:epsg:)?(\d+)\s*$`)
)

// Toolbox 切片采样与建筑标注工具箱
type Toolbox struct {
	crsCache *ccache.Cache[*CRS]
	logTag   string
}

// 由GDAL库C语言创建的内存对象，需要手动回收
type destroyable interface {
	Destroy()
}

// 解析后的坐标系（缓存复用，故调用方无需回收）
type CRS struct {
	Name string
	WKT  string
	sr   *godal.SpatialRef
}

func (c *CRS) IsSame(other *CRS) bool {
	if c == nil || other == nil {
		return false
	}
	return c.sr.IsSame(other.sr)
}

// 初始化工具箱，cacheSize为坐标系缓存容量（<=0时取默认值）
func NewToolbox(cacheSize ...int64) *Toolbox {
	registerOnce.Do(godal.RegisterAll)
	size := int64(64)
	if len(cacheSize) > 0 && cacheSize[0] > 0 {
		size = cacheSize[0]
	}
	cache := ccache.New(ccache.Configure[*CRS]().
		MaxSize(size).
		ItemsToPrune(uint32(size/4 + 1)).
		OnDelete(func(item *ccache.Item[*CRS]) {
			if c := item.Value(); c != nil && c.sr != nil {
				c.sr.Close()
			}
		}))
	return &Toolbox{
		crsCache: cache,
		logTag:   "Toolbox:",
	}
}

// 释放坐标系缓存
func (g *Toolbox) Close() {
	g.crsCache.ForEachFunc(func(key string, item *ccache.Item[*CRS]) bool {
		if c := item.Value(); c != nil && c.sr != nil {
			c.sr.Close()
		}
		return true
	})
	g.crsCache.Stop()
}

// 解析坐标系标识：EPSG:<code>、纯数字EPSG代码，或GDAL可识别的WKT/PROJ字符串
func (g *Toolbox) ResolveCRS(identifier string) (c *CRS, err error) {
	key := strings.TrimSpace(identifier)
	if key == "" {
		err = fmt.Errorf("%w: empty identifier", ErrUnsupportedCRS)
		return
	}
	item, err := g.crsCache.Fetch(key, crsCacheTTL, func() (*CRS, error) {
		return g.newCRS(key)
	})
	if err != nil {
		return
	}
	c = item.Value()
	return
}

func (g *Toolbox) newCRS(key string) (c *CRS, err error) {
	var sr *godal.SpatialRef
	if m := epsgPattern.FindStringSubmatch(key); m != nil {
		code, _ := strconv.Atoi(m[1])
		sr, err = godal.NewSpatialRefFromEPSG(code)
	} else {
		sr, err = godal.NewSpatialRef(key)
	}
	if err != nil {
		log.Error(g.logTag+"resolve crs failed", zap.String("crs", shortCRS(key)), zap.Error(err))
		err = fmt.Errorf("%w: %s: %v", ErrUnsupportedCRS, shortCRS(key), err)
		return
	}
	wkt, err := sr.WKT()
	if err != nil {
		sr.Close()
		err = fmt.Errorf("%w: %s: %v", ErrUnsupportedCRS, shortCRS(key), err)
		return
	}
	c = &CRS{Name: key, WKT: wkt, sr: sr}
	log.Debug(g.logTag+"resolved crs", zap.String("crs", shortCRS(key)))
	return
}

// 日志中截断过长的WKT
func shortCRS(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
