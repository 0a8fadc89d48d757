package tilelabel

import (
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawWindow(t *testing.T) {
	w, err := DrawWindow(2048, 2048, 512, 512, &seqRand{vals: []int{100, 100}})
	require.NoError(t, err)
	assert.Equal(t, Window{XOffset: 100, YOffset: 100, Width: 512, Height: 512}, w)

	// 等宽时偏移固定为0，不消耗随机数
	r := &seqRand{vals: []int{7}}
	w, err = DrawWindow(512, 600, 512, 512, r)
	require.NoError(t, err)
	assert.Equal(t, Window{XOffset: 0, YOffset: 7, Width: 512, Height: 512}, w)
	assert.Equal(t, 1, r.i)

	for _, c := range []struct{ w, h, tw, th int }{{100, 100, 101, 50}, {100, 100, 50, 101}, {100, 100, 0, 10}, {100, 100, 10, -1}} {
		_, err = DrawWindow(c.w, c.h, c.tw, c.th, r)
		assert.ErrorIs(t, err, ErrInvalidTileSize)
	}
}

func TestDrawWindowBounds(t *testing.T) {
	rnd := NewRand(42)
	for i := 0; i < 1000; i++ {
		w, err := DrawWindow(1000, 700, 300, 200, rnd)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, w.XOffset, 0)
		assert.GreaterOrEqual(t, w.YOffset, 0)
		assert.LessOrEqual(t, w.XOffset+w.Width, 1000)
		assert.LessOrEqual(t, w.YOffset+w.Height, 700)
		assert.Less(t, w.XOffset, 700)
		assert.Less(t, w.YOffset, 500)
	}
}

func TestDrawWindowDeterministic(t *testing.T) {
	a, b := NewRand(7), NewRand(7)
	for i := 0; i < 20; i++ {
		wa, _ := DrawWindow(4096, 4096, 512, 512, a)
		wb, _ := DrawWindow(4096, 4096, 512, 512, b)
		assert.Equal(t, wa, wb)
	}
}

func TestOpenRaster(t *testing.T) {
	dir, src, _ := fixturePaths(t)
	writeRaster(t, src, 300, 200, fixtureGT)
	g := newTestToolbox(t)

	info, err := g.OpenRaster(src)
	require.NoError(t, err)
	assert.Equal(t, 300, info.Width)
	assert.Equal(t, 200, info.Height)
	assert.Equal(t, 3, info.Bands)
	assert.Equal(t, godal.Byte.String(), info.DataType)
	assert.Equal(t, fixtureGT, info.Geotransform)
	assert.NotEmpty(t, info.Projection)

	_, err = g.OpenRaster(filepath.Join(dir, "missing.tif"))
	assert.ErrorIs(t, err, ErrRasterOpen)
}

func TestSampleTile(t *testing.T) {
	dir, src, _ := fixturePaths(t)
	writeRaster(t, src, 2048, 2048, fixtureGT)
	g := newTestToolbox(t)
	out := filepath.Join(dir, "tiles")

	tile, err := g.SampleTile(src, 3, 512, 512, &seqRand{vals: []int{100, 100}}, out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "3_tile.tif"), tile.Path)
	assert.Equal(t, 100, tile.XOffset)
	assert.Equal(t, 100, tile.YOffset)
	assert.Equal(t, Geotransform{500100, 1, 0, 3999900, 0, -1}, tile.Info.Geotransform)

	// 重新打开检查落盘结果与像素内容
	info, err := g.OpenRaster(tile.Path)
	require.NoError(t, err)
	assert.Equal(t, 512, info.Width)
	assert.Equal(t, 512, info.Height)
	assert.Equal(t, 3, info.Bands)
	assert.Equal(t, tile.Info.Geotransform, info.Geotransform)

	sds, err := godal.Open(src)
	require.NoError(t, err)
	defer sds.Close()
	tds, err := godal.Open(tile.Path)
	require.NoError(t, err)
	defer tds.Close()
	want := make([]byte, 16*3)
	got := make([]byte, 16*3)
	require.NoError(t, sds.Read(110, 120, want, 4, 4))
	require.NoError(t, tds.Read(10, 20, got, 4, 4))
	assert.Equal(t, want, got)
}

func TestSampleTileDeterministic(t *testing.T) {
	dir, src, _ := fixturePaths(t)
	writeRaster(t, src, 1024, 768, fixtureGT)
	g := newTestToolbox(t)

	a, err := g.SampleTile(src, 0, 256, 256, NewRand(99), filepath.Join(dir, "a"))
	require.NoError(t, err)
	b, err := g.SampleTile(src, 0, 256, 256, NewRand(99), filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Equal(t, a.XOffset, b.XOffset)
	assert.Equal(t, a.YOffset, b.YOffset)
	assert.Equal(t, a.Info.Geotransform, b.Info.Geotransform)
}

func TestSampleTileTooLarge(t *testing.T) {
	dir, src, _ := fixturePaths(t)
	writeRaster(t, src, 100, 100, fixtureGT)
	g := newTestToolbox(t)

	_, err := g.SampleTile(src, 0, 128, 64, NewRand(1), dir)
	assert.ErrorIs(t, err, ErrInvalidTileSize)
	assert.NoFileExists(t, filepath.Join(dir, "0_tile.tif"))
}

func TestAllocBuffer(t *testing.T) {
	buf, err := allocBuffer(godal.UInt16, 10)
	require.NoError(t, err)
	assert.Len(t, buf, 10)
	assert.IsType(t, []uint16{}, buf)

	_, err = allocBuffer(godal.Unknown, 10)
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}
