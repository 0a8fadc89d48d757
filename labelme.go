package tilelabel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// 标注文件名 <stem>.json，与影像同名
func AnnotationName(imagePath string) string {
	base := filepath.Base(imagePath)
	return base[:len(base)-len(filepath.Ext(base))] + FILE_EXT_JSON
}

func NewShape(label string, mode ProjectMode, points []Point) Shape {
	if label == "" {
		label = DEFAULT_LABEL
	}
	return Shape{
		Label:     label,
		GroupID:   string(mode),
		ShapeType: SHAPE_TYPE,
		Flags:     map[string]bool{},
		Points:    points,
	}
}

// width/height取自实际输出的影像
func NewAnnotation(imagePath string, width, height int, shapes []Shape) Annotation {
	if shapes == nil {
		shapes = []Shape{}
	}
	return Annotation{
		Version:     LABELME_VERSION,
		Flags:       map[string]bool{},
		ImagePath:   filepath.Base(imagePath),
		ImageHeight: height,
		ImageWidth:  width,
		Shapes:      shapes,
	}
}

// 先写同目录临时文件再重命名，目标文件存在时被替换
func WriteAnnotation(a Annotation, path string) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+FILE_EXT_JSON)
	f, err := os.Create(tmp)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err = enc.Encode(a); err != nil {
		f.Close()
		err = fmt.Errorf("encode annotation: %w", err)
		return
	}
	if err = f.Close(); err != nil {
		return
	}
	err = os.Rename(tmp, path)
	return
}

func ReadAnnotation(path string) (a Annotation, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	err = json.Unmarshal(raw, &a)
	return
}
