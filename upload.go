package tilelabel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wgdzlh/tilelabel/log"
	"github.com/wgdzlh/tilelabel/utils"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	gsBlockSize       = "512k"
	gsNumCachedBlocks = 512
)

var gsRegisterOnce sync.Once

// 将已接受切片的产出推送到外部存储
type Uploader interface {
	Upload(ctx context.Context, local string) (remote string, err error)
}

// 上传到gs://bucket/prefix下，对象名为prefix/文件名
type GCSUploader struct {
	client *storage.Client
	bucket string
	prefix string
	logTag string
}

func NewGCSClient(ctx context.Context, anonymous bool) (*storage.Client, error) {
	var opts []option.ClientOption
	if anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	cl, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs storage client: %w", err)
	}
	return cl, nil
}

func NewGCSUploader(client *storage.Client, dest string) (*GCSUploader, error) {
	bucket, prefix := utils.GsParse(dest)
	if bucket == "" {
		return nil, fmt.Errorf("%w: upload destination %q is not gs://bucket[/prefix]", ErrInvalidConfig, dest)
	}
	return &GCSUploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logTag: "GCSUploader:",
	}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, local string) (remote string, err error) {
	object := path.Join(u.prefix, filepath.Base(local))
	remote = utils.GS_PREFIX + u.bucket + "/" + object
	f, err := os.Open(local)
	if err != nil {
		return
	}
	defer f.Close()
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	if _, err = io.Copy(w, f); err != nil {
		w.Close()
		err = fmt.Errorf("upload %s: %w", remote, err)
		return
	}
	if err = w.Close(); err != nil {
		err = fmt.Errorf("close %s: %w", remote, err)
		return
	}
	log.Debug(u.logTag+"uploaded", zap.String("local", local), zap.String("remote", remote))
	return
}

func IsGSPath(p string) bool {
	return strings.HasPrefix(p, utils.GS_PREFIX)
}

// 注册gs://前缀，使GDAL可直接以分块缓存方式读取对象存储中的影像
func RegisterGSReader(ctx context.Context, client *storage.Client) (err error) {
	gsRegisterOnce.Do(func() {
		gsh, e := gcs.Handle(ctx, gcs.GCSClient(client))
		if e != nil {
			err = fmt.Errorf("osio gcs handle: %w", e)
			return
		}
		gsa, e := osio.NewAdapter(gsh, osio.BlockSize(gsBlockSize), osio.NumCachedBlocks(gsNumCachedBlocks))
		if e != nil {
			err = fmt.Errorf("osio adapter: %w", e)
			return
		}
		if e = godal.RegisterVSIHandler(utils.GS_PREFIX, gsa, godal.VSIHandlerStripPrefix(true)); e != nil {
			err = fmt.Errorf("godal register vsi: %w", e)
			return
		}
		log.Info("registered gs:// reader", zap.String("blockSize", gsBlockSize), zap.Int("numBlocks", gsNumCachedBlocks))
	})
	return
}
