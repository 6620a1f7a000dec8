// Package images hands out presigned S3 upload URLs for listing photos.
// The API never proxies image bytes; clients PUT straight to the bucket and
// then send the returned ImageURL as a car's imageUrl.
package images

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadTTL = 15 * time.Minute

var ErrUnsupportedType = errors.New("unsupported image content type")

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type Config struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for MinIO and other S3-compatible stores
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // optional, defaults to <endpoint>/<bucket>
}

type UploadTicket struct {
	UploadURL string    `json:"uploadUrl"`
	ImageURL  string    `json:"imageUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Presigner struct {
	client     *s3.PresignClient
	bucket     string
	publicBase string
	now        func() time.Time
}

func NewPresigner(ctx context.Context, cfg Config) (*Presigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("images: empty bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Presigner{
		client:     s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		publicBase: publicBase(cfg),
		now:        time.Now,
	}, nil
}

// PresignUpload returns a short-lived PUT URL under the user's prefix.
func (p *Presigner) PresignUpload(ctx context.Context, userID, contentType string) (UploadTicket, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return UploadTicket{}, ErrUnsupportedType
	}

	now := p.now().UTC()
	key := fmt.Sprintf("cars/%s/%d/%02d/%s.%s", userID, now.Year(), now.Month(), uuid.NewString(), ext)

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadTTL))
	if err != nil {
		return UploadTicket{}, fmt.Errorf("presign put: %w", err)
	}

	return UploadTicket{
		UploadURL: req.URL,
		ImageURL:  p.publicBase + "/" + key,
		Key:       key,
		ExpiresAt: now.Add(uploadTTL),
	}, nil
}

func publicBase(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}
