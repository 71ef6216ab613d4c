package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resumeBuilder/internal/config"
)

// ErrObjectNotFound 表示对象不存在。
var ErrObjectNotFound = errors.New("object not found")

// Client 封装导出文件所在的 Bucket。内部客户端负责读写，
// 公网客户端只用于签发浏览器可访问的下载链接。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
}

// ObjectMeta 描述 Bucket 中对象的关键信息。
type ObjectMeta struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

func parseBucketLookup(value string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	}
	return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", value)
}

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewClient(ctx context.Context, cfg config.MinIOConfig) (*Client, error) {
	lookup, err := parseBucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}
	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	internalClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        creds,
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	public, err := url.Parse(cfg.PublicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if public.Host == "" {
		return nil, fmt.Errorf("invalid minio public endpoint %q: host missing", cfg.PublicEndpoint)
	}
	publicClient, err := minio.New(public.Host, &minio.Options{
		Creds:        creds,
		Secure:       public.Scheme == "https",
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init public minio client: %w", err)
	}

	c := &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
	}
	if err := c.ensureBucket(ctx, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, cfg config.MinIOConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := c.internalClient.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucketName, err)
	}
	if exists {
		return nil
	}
	if !cfg.AutoCreateBucket {
		return fmt.Errorf("bucket %q does not exist (auto create disabled)", c.bucketName)
	}
	if err := c.internalClient.MakeBucket(ctx, c.bucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %q: %w", c.bucketName, err)
	}
	slog.Info("created minio bucket", slog.String("bucket", c.bucketName))
	return nil
}

// Ping 检查 Bucket 可达，用于就绪探针。
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.internalClient.BucketExists(ctx, c.bucketName); err != nil {
		return fmt.Errorf("ping bucket %q: %w", c.bucketName, err)
	}
	return nil
}

// UploadFile 将对象上传到私有 Bucket，并返回上传结果。
func (c *Client) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error) {
	info, err := c.internalClient.PutObject(ctx, c.bucketName, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", objectName, err)
	}
	return &info, nil
}

// Stat 返回对象元数据，对象不存在时返回 ErrObjectNotFound。
func (c *Client) Stat(ctx context.Context, objectKey string) (ObjectMeta, error) {
	info, err := c.internalClient.StatObject(ctx, c.bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if IsNoSuchKey(err) {
			return ObjectMeta{}, fmt.Errorf("stat %q: %w", objectKey, ErrObjectNotFound)
		}
		return ObjectMeta{}, fmt.Errorf("stat %q: %w", objectKey, err)
	}
	return ObjectMeta{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// PresignedURL 生成对象的限时访问链接。
func (c *Client) PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", objectKey, err)
	}
	return u.String(), nil
}

// DownloadURL 生成以附件形式下载的限时链接，浏览器保存为 filename。
func (c *Client) DownloadURL(ctx context.Context, objectKey string, ttl time.Duration, filename string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", AttachmentDisposition(filename))
	params.Set("response-content-type", "application/pdf")
	u, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign download %q: %w", objectKey, err)
	}
	return u.String(), nil
}

// ListObjects 列出指定前缀下的对象元数据，最多 limit 条。
func (c *Client) ListObjects(ctx context.Context, prefix string, limit int) ([]ObjectMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make([]ObjectMeta, 0, limit)
	for object := range c.internalClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		result = append(result, ObjectMeta{
			Key:          object.Key,
			Size:         object.Size,
			ContentType:  object.ContentType,
			LastModified: object.LastModified,
		})
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// DeletePrefix 删除指定前缀下的所有对象，返回删除数量。
// 空前缀会被拒绝，避免清空整个 Bucket。
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, errors.New("refusing to delete an empty prefix")
	}

	var keys []minio.ObjectInfo
	for object := range c.internalClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return 0, fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		keys = append(keys, object)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	queue := make(chan minio.ObjectInfo, len(keys))
	for _, object := range keys {
		queue <- object
	}
	close(queue)

	var errs []error
	for removeErr := range c.internalClient.RemoveObjects(ctx, c.bucketName, queue, minio.RemoveObjectsOptions{}) {
		if IsNoSuchKey(removeErr.Err) {
			continue
		}
		errs = append(errs, fmt.Errorf("remove %q: %w", removeErr.ObjectName, removeErr.Err))
	}
	if len(errs) > 0 {
		slog.Error("delete minio objects under prefix failed",
			slog.String("prefix", prefix),
			slog.Int("failed_count", len(errs)),
		)
		return len(keys) - len(errs), errors.Join(errs...)
	}
	return len(keys), nil
}
