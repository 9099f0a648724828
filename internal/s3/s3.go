package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

const defaultRegion = "us-east-1"

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// Client archives result callbacks into one bucket.
type Client struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func NewMinioClient(opts Options) (*Client, error) {
	if opts.Region == "" {
		opts.Region = defaultRegion
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client, bucket: opts.Bucket, now: time.Now}, nil
}

func (c *Client) EnsureBucketExists(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

type archivedResult struct {
	CameraID   string            `json:"camera_id"`
	Results    map[string]string `json:"results"`
	ReceivedAt time.Time         `json:"received_at"`
}

// ArchiveResult stores one result callback as <camera_id>/<unix nanos>.json.
func (c *Client) ArchiveResult(ctx context.Context, cameraID string, results map[string]string) error {
	at := c.now().UTC()
	body, err := json.Marshal(archivedResult{CameraID: cameraID, Results: results, ReceivedAt: at})
	if err != nil {
		return err
	}

	url, err := c.upload(ctx, ObjectName(cameraID, at), bytes.NewReader(body), int64(len(body)), "application/json")
	if err != nil {
		return err
	}

	log.Debug().Str("camera_id", cameraID).Str("url", url).Msg("Result archived")
	return nil
}

// ObjectName is the key of a result archived at the given time.
func ObjectName(cameraID string, at time.Time) string {
	return cameraID + "/" + strconv.FormatInt(at.UnixNano(), 10) + ".json"
}

func (c *Client) upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := c.client.PutObject(
		ctx,
		c.bucket,
		objectName,
		reader,
		size,
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", c.client.EndpointURL(), c.bucket, objectName)
	return url, nil
}
