// Package s3 implements cloud.Provider for S3-compatible object stores.
//
// Object stores are flat: a folder is a zero-byte marker object whose key
// ends in "/", and a listing is a delimited prefix query. There is no
// archive capability; folder downloads use enumeration.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cloudboss/cloudboss/internal/bandwidth"
	"github.com/cloudboss/cloudboss/internal/cloud"
)

// Name is the provider identifier.
const Name = "s3"

// objectAPI is the subset of *s3.Client the adapter uses.
type objectAPI interface {
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the S3 adapter.
type Options struct {
	Endpoint  string // empty selects AWS; set for MinIO and other compatible stores
	Region    string
	Bucket    string
	AccessKey string // empty uses the SDK's default credential chain
	SecretKey string

	// HTTPTimeout bounds each request. The SDK's buildable client is kept
	// so that AWS_CA_BUNDLE and other transport settings still apply.
	HTTPTimeout time.Duration
	Bandwidth   *bandwidth.Limiter
	Logger      *slog.Logger
}

// Client talks to one bucket. It is safe for concurrent use.
type Client struct {
	api       objectAPI
	bucket    string
	bandwidth *bandwidth.Limiter
	logger    *slog.Logger
}

// New builds an S3 client. A custom endpoint switches to path-style
// addressing, which S3-compatible servers expect.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}

	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	if opts.HTTPTimeout > 0 {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(
			awshttp.NewBuildableClient().WithTimeout(opts.HTTPTimeout),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithAPI(api, opts.Bucket, opts.Bandwidth, opts.Logger), nil
}

func newWithAPI(api objectAPI, bucket string, bw *bandwidth.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{api: api, bucket: bucket, bandwidth: bw, logger: logger}
}

// Name implements cloud.Provider.
func (c *Client) Name() string { return Name }

// objectKey maps a remote file path to its key: "/a/b.txt" -> "a/b.txt".
func objectKey(remote string) string {
	return strings.Trim(remote, "/")
}

// folderPrefix maps a remote folder path to its key prefix: "/a" -> "a/",
// "/" -> "".
func folderPrefix(remote string) string {
	key := objectKey(remote)
	if key == "" {
		return ""
	}

	return key + "/"
}

// Authenticate implements cloud.Provider by probing the bucket.
func (c *Client) Authenticate(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		c.logger.Debug("s3: authentication failed", slog.String("error", err.Error()))

		return cloud.NewError(cloud.CodeAuth, fmt.Sprintf("cannot access bucket %s, check the credentials", c.bucket))
	}

	return nil
}

// AccountInfo implements cloud.Provider. Object stores have no account
// quota; usage is the total size of the bucket's objects.
func (c *Client) AccountInfo(ctx context.Context) (*cloud.AccountInfo, error) {
	var used int64

	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{Bucket: aws.String(c.bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, normalizeErr(err)
		}

		for _, obj := range page.Contents {
			used += aws.ToInt64(obj.Size)
		}
	}

	return &cloud.AccountInfo{
		Login:       c.bucket,
		DisplayName: "s3://" + c.bucket,
		UsedBytes:   used,
		TotalBytes:  cloud.QuotaUnknown,
	}, nil
}

// objectExists reports whether an object with exactly this key exists.
func (c *Client) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}

	if err = normalizeErr(err); errors.Is(err, cloud.ErrNotFound) {
		return false, nil
	}

	return false, err
}

// folderExists reports whether prefix has a marker or any object below it.
func (c *Client) folderExists(ctx context.Context, prefix string) (bool, error) {
	if prefix == "" {
		return true, nil
	}

	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, normalizeErr(err)
	}

	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// ListDirectory implements cloud.Provider.
func (c *Client) ListDirectory(ctx context.Context, remote string) ([]cloud.Entry, error) {
	prefix := folderPrefix(remote)

	var entries []cloud.Entry

	found := prefix == ""

	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, normalizeErr(err)
		}

		for _, cp := range page.CommonPrefixes {
			found = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			entries = append(entries, cloud.Entry{Name: name, Kind: cloud.KindDir})
		}

		for _, obj := range page.Contents {
			found = true

			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}

			entries = append(entries, cloud.Entry{Name: strings.TrimPrefix(key, prefix), Kind: cloud.KindFile})
		}
	}

	if found {
		return entries, nil
	}

	isFile, err := c.objectExists(ctx, objectKey(remote))
	if err != nil {
		return nil, err
	}

	if isFile {
		return nil, cloud.NewError(cloud.CodeNotAFolder, fmt.Sprintf("not a folder: %s", remote))
	}

	return nil, cloud.NewError(cloud.CodeNotFound, fmt.Sprintf("not found: %s", remote))
}

// FetchFile implements cloud.Provider.
func (c *Client) FetchFile(ctx context.Context, remote string, w io.Writer) (int64, error) {
	key := objectKey(remote)
	if key == "" {
		return 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		err = normalizeErr(err)
		if !errors.Is(err, cloud.ErrNotFound) {
			return 0, err
		}

		if isDir, dirErr := c.folderExists(ctx, folderPrefix(remote)); dirErr == nil && isDir {
			return 0, cloud.NewError(cloud.CodeNotAFile, fmt.Sprintf("not a file: %s", remote))
		}

		return 0, err
	}
	defer out.Body.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, fmt.Errorf("s3: reading %s: %w", key, err)
	}

	return n, nil
}

// limitedFile throttles reads while keeping the file seekable, which the
// SDK needs to sign and retry the payload.
type limitedFile struct {
	io.ReadSeeker
	r io.Reader
}

func (f *limitedFile) Read(p []byte) (int, error) { return f.r.Read(p) }

// StoreFile implements cloud.Provider. Existing objects are replaced.
func (c *Client) StoreFile(ctx context.Context, local, remote string) error {
	f, fi, err := cloud.OpenLocalFile(local)
	if err != nil {
		return err
	}
	defer f.Close()

	var body io.ReadSeeker = f
	if c.bandwidth != nil {
		body = &limitedFile{ReadSeeker: f, r: c.bandwidth.WrapReader(ctx, f)}
	}

	key := objectKey(remote)

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		return normalizeErr(err)
	}

	c.logger.Debug("s3: object stored",
		slog.String("key", key),
		slog.Int64("size", fi.Size()),
	)

	return nil
}

// CreateDirectory implements cloud.Provider by writing a folder marker.
// A folder that already has a marker or any content is a conflict.
func (c *Client) CreateDirectory(ctx context.Context, remote string) error {
	prefix := folderPrefix(remote)
	if prefix == "" {
		return cloud.NewError(cloud.CodeFolderConflict, "the root folder always exists")
	}

	exists, err := c.folderExists(ctx, prefix)
	if err != nil {
		return err
	}

	if exists {
		return cloud.NewError(cloud.CodeFolderConflict, fmt.Sprintf("already exists: %s", remote))
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(prefix),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})

	return normalizeErr(err)
}
