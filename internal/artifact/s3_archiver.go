package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Archiver uploads a promotion's registry copies to object storage.
type Archiver interface {
	ArchivePromotion(ctx context.Context, promotedAt time.Time, localPaths ...string) error
}

// S3Archiver mirrors registry copies to S3 under paths like:
//
//	s3://<bucket>/<prefix>/registry/YYYY/MM/DD/<filename>
//
// giving the registry an off-site copy of every promoted artifact and its
// metrics snapshot.
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from the
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET etc.).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// ArchivePromotion uploads each local file, keyed by the promotion date.
func (a *S3Archiver) ArchivePromotion(ctx context.Context, promotedAt time.Time, localPaths ...string) error {
	ts := promotedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	year, month, day := ts.Date()
	for _, local := range localPaths {
		f, err := os.Open(local)
		if err != nil {
			return fmt.Errorf("open %s: %w", local, err)
		}
		key := path.Join(a.prefix, "registry",
			fmt.Sprintf("%04d", year),
			fmt.Sprintf("%02d", int(month)),
			fmt.Sprintf("%02d", day),
			path.Base(local),
		)
		_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(a.bucket),
			Key:                  aws.String(key),
			Body:                 f,
			ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("s3 upload %s: %w", key, err)
		}
	}
	return nil
}
