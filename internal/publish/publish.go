// Package publish 把打好的 modpack.zip 上传到 S3 兼容存储（可选步骤）。
package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config 对应配置文件中的 publish 段。
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"` // 支持 ${VAR}
	SecretKey string `yaml:"secret_key"` // 支持 ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled 表示配置足以发起上传（endpoint + bucket 都非空）。
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// Uploader 用于在 run 层替换真实存储（测试/离线场景）。
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type S3 struct {
	api    *minio.Client
	bucket string
	prefix string
}

var _ Uploader = (*S3)(nil)

func New(cfg Config) (*S3, error) {
	if !cfg.Enabled() {
		return nil, errors.New("publish.endpoint 与 publish.bucket 不能为空")
	}
	api, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &S3{
		api:    api,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

// Upload 上传 localPath，返回 s3://bucket/key 形式的位置。
func (s *S3) Upload(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(s.prefix, filepath.Base(localPath))
	if _, err := s.api.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/zip",
	}); err != nil {
		return "", fmt.Errorf("上传 %s 失败：%w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// ObjectKey 拼接对象键；prefix 为空时直接使用文件名。
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
