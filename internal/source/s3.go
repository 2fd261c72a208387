package source

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hrsync/internal/hrsync"
)

// S3Source treats a bucket as the drop location. A directory is a key
// prefix; only objects directly under it are listed.
type S3Source struct {
	client *s3.Client
	bucket string
}

var _ hrsync.FileSource = (*S3Source)(nil)

func NewS3Source(client *s3.Client, bucket string) *S3Source {
	return &S3Source{client: client, bucket: bucket}
}

func prefixFor(dir string) string {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}

func (s *S3Source) ListFiles(ctx context.Context, dir string) ([]hrsync.RemoteFile, error) {
	prefix := prefixFor(dir)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var files []hrsync.RemoteFile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			f := hrsync.RemoteFile{Name: name, Path: key, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				f.ModifiedAt = obj.LastModified.UTC()
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func (s *S3Source) Download(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if resp.ContentLength != nil && *resp.ContentLength > 0 {
		buf.Grow(int(*resp.ContentLength))
	}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Source) Close() error { return nil }
