package utils

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_SHP = ".shp"
	FILE_EXT_CPG = ".cpg"

	UTF8  = "UTF8"
	UTF_8 = "UTF-8"

	GS_PREFIX = "gs://"
)

var (
	ErrInvalidBandOrder = errors.New("invalid band order")
)

// 在parentPath下创建以uuid命名的唯一子目录
func GetUniqSubDir(parentPath string) (path string, err error) {
	if err = os.MkdirAll(parentPath, os.ModePerm); err != nil {
		return
	}
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// 获取shp同名cpg文件中声明的编码，并判断是否为UTF-8（无cpg时视为UTF-8）
func GetShpEncoding(shp string) (enc string, utf8 bool) {
	utf8 = true
	if !strings.EqualFold(filepath.Ext(shp), FILE_EXT_SHP) {
		return
	}
	raw, e := os.ReadFile(strings.TrimSuffix(shp, filepath.Ext(shp)) + FILE_EXT_CPG)
	if e != nil || len(raw) == 0 {
		return
	}
	enc = strings.ToUpper(strings.TrimSpace(string(raw)))
	utf8 = enc == UTF_8 || enc == UTF8
	return
}

// 目录形式的shp数据集，取其中第一个shp文件
func FindShpInDir(dir string) (shp string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), FILE_EXT_SHP) {
			shp = filepath.Join(dir, e.Name())
			return
		}
	}
	return
}

// 解析gs://bucket/object形式的路径
func GsParse(file string) (bucket, object string) {
	if !strings.HasPrefix(file, GS_PREFIX) {
		return
	}
	file = file[len(GS_PREFIX):]
	firstSlash := strings.Index(file, "/")
	if firstSlash == -1 {
		bucket = file
		return
	}
	bucket = file[0:firstSlash]
	object = strings.Trim(file[firstSlash:], "/")
	return
}

// 将"R,G,B,NIR"形式的波段顺序转换为RGB三个波段的序号（从1开始）
func GetBasicBandIdx(bandOrder string) (idx [3]string, err error) {
	bands := strings.Split(strings.ToUpper(bandOrder), ",")
	for i, b := range bands {
		switch strings.TrimSpace(b) {
		case "R":
			idx[0] = strconv.Itoa(i + 1)
		case "G":
			idx[1] = strconv.Itoa(i + 1)
		case "B":
			idx[2] = strconv.Itoa(i + 1)
		}
	}
	for _, b := range idx {
		if b == "" {
			err = ErrInvalidBandOrder
			break
		}
	}
	return
}

// 移动文件，跨文件系统时退化为复制后删除
func MoveFile(src, dst string) (err error) {
	if err = os.Rename(src, dst); err == nil {
		return
	}
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return
	}
	if err = out.Close(); err != nil {
		os.Remove(dst)
		return
	}
	return os.Remove(src)
}
