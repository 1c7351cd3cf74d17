package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ceased/internal/ceased"
	"ceased/internal/config"
)

// S3Store implements the RemoteStore interface on an S3 bucket. The
// hierarchical id scheme maps onto flat keys:
//
//	folder id = key prefix ending in "/" (held by a zero-byte marker object)
//	object id = full key
//
// ListChildren uses a delimited listing, so one level of the "tree" costs
// one listing per 1000 entries.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

var _ ceased.RemoteStore = (*S3Store)(nil)

// NewS3Store creates an S3-backed remote store from configuration. When an
// access key is configured it is used as a static credentials provider;
// otherwise the default AWS credential chain applies. A custom endpoint
// switches the client to path-style addressing for S3-compatible stores.
func NewS3Store(ctx context.Context, cfg config.RemoteConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 remote store requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
	}, nil
}

func (s *S3Store) ListChildren(ctx context.Context, folderID string) ([]ceased.RemoteEntry, error) {
	var entries []ceased.RemoteEntry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(folderID),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing %s: %v", ceased.ErrRemoteIO, folderID, err)
		}

		for _, p := range page.CommonPrefixes {
			prefix := aws.ToString(p.Prefix)
			entries = append(entries, ceased.RemoteEntry{
				ID:       prefix,
				Name:     strings.TrimSuffix(strings.TrimPrefix(prefix, folderID), "/"),
				IsFolder: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == folderID {
				continue // the folder's own marker object
			}
			entries = append(entries, ceased.RemoteEntry{
				ID:       key,
				Name:     strings.TrimPrefix(key, folderID),
				IsFolder: false,
			})
		}
	}

	return entries, nil
}

func (s *S3Store) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id := parentID + name + "/"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating folder %s: %v", ceased.ErrRemoteIO, id, err)
	}
	return id, nil
}

func (s *S3Store) Upload(ctx context.Context, data []byte, name, parentID, mimeType string) (string, error) {
	id := parentID + name
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(id),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: uploading %s: %v", ceased.ErrRemoteIO, id, err)
	}
	return id, nil
}

func (s *S3Store) Download(ctx context.Context, id string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: downloading %s: %v", ceased.ErrRemoteIO, id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ceased.ErrRemoteIO, id, err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	if strings.HasSuffix(id, "/") {
		return s.deletePrefix(ctx, id)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %v", ceased.ErrRemoteIO, id, err)
	}
	return nil
}

// deletePrefix removes a folder marker and everything beneath it in batches.
func (s *S3Store) deletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("%w: listing %s for delete: %v", ceased.ErrRemoteIO, prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("%w: deleting under %s: %v", ceased.ErrRemoteIO, prefix, err)
		}
	}

	return nil
}
