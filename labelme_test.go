package tilelabel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnnotation(t *testing.T) {
	shape := NewShape("", ModeBBox, []Point{{1, 2}, {3, 2}, {3, 4}, {1, 4}})
	a := NewAnnotation("/data/out/7_tile_converted.tif", 511, 509, []Shape{shape})

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, LABELME_VERSION, doc["version"])
	assert.Equal(t, map[string]any{}, doc["flags"])
	assert.Equal(t, "7_tile_converted.tif", doc["imagePath"])
	assert.Nil(t, doc["imageData"])
	assert.Contains(t, doc, "imageData")
	assert.Equal(t, 509.0, doc["imageHeight"])
	assert.Equal(t, 511.0, doc["imageWidth"])

	shapes := doc["shapes"].([]any)
	require.Len(t, shapes, 1)
	s := shapes[0].(map[string]any)
	assert.Equal(t, DEFAULT_LABEL, s["label"])
	assert.Equal(t, "bbox", s["group_id"])
	assert.Equal(t, "", s["description"])
	assert.Equal(t, "polygon", s["shape_type"])
	assert.Equal(t, map[string]any{}, s["flags"])
	assert.Contains(t, s, "mask")
	assert.Nil(t, s["mask"])
	assert.Equal(t, []any{[]any{1.0, 2.0}, []any{3.0, 2.0}, []any{3.0, 4.0}, []any{1.0, 4.0}}, s["points"])

	empty, err := json.Marshal(NewAnnotation("x.tif", 1, 1, nil))
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"shapes":[]`)
}

func TestWriteAnnotation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, AnnotationName("0_tile_converted.tif"))
	assert.Equal(t, "0_tile_converted.json", filepath.Base(path))

	first := NewAnnotation("0_tile_converted.tif", 10, 10, []Shape{NewShape("房屋", ModePolygon, []Point{{0, 0}, {1, 0}, {1, 1}})})
	require.NoError(t, WriteAnnotation(first, path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"label": "房屋"`)

	second := NewAnnotation("0_tile_converted.tif", 20, 30, nil)
	require.NoError(t, WriteAnnotation(second, path))
	got, err := ReadAnnotation(path)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ImageWidth)
	assert.Equal(t, 30, got.ImageHeight)
	assert.Empty(t, got.Shapes)

	// 不残留临时文件
	assert.Equal(t, []string{"0_tile_converted.json"}, listFiles(t, dir))
}
