package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"robotics-catalog/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var s3AuthCodes = map[string]bool{
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"AccessDenied":          true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

// S3 stores images as objects under folder/. The storage handle is the object key.
type S3 struct {
	client        *s3.Client
	bucket        string
	region        string
	folder        string
	publicBaseURL string
}

func NewS3(ctx context.Context, bucket, region, folder, publicBaseURL string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, region, folder, publicBaseURL), nil
}

func NewS3WithClient(client *s3.Client, bucket, region, folder, publicBaseURL string) *S3 {
	return &S3{
		client:        client,
		bucket:        bucket,
		region:        region,
		folder:        strings.Trim(folder, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3) Upload(ctx context.Context, localPath string) (model.Image, error) {
	mtype, err := mimetype.DetectFile(localPath)
	if err != nil {
		return model.Image{}, &model.UploadError{Op: "upload", Err: fmt.Errorf("inspect %s: %w", filepath.Base(localPath), err)}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return model.Image{}, &model.UploadError{Op: "upload", Err: err}
	}
	defer f.Close()

	key := s.objectKey(localPath)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(mtype.String()),
	})
	if err != nil {
		return model.Image{}, s3Error("upload", err)
	}

	return model.Image{URL: s.objectURL(key), StorageHandle: key}, nil
}

func (s *S3) Delete(ctx context.Context, storageHandle string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageHandle),
	})
	if err != nil {
		return s3Error("delete", err)
	}
	return nil
}

func (s *S3) objectKey(localPath string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(localPath))
	if s.folder == "" {
		return name
	}
	return path.Join(s.folder, name)
}

func (s *S3) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func s3Error(op string, err error) *model.UploadError {
	var apiErr smithy.APIError
	auth := errors.As(err, &apiErr) && s3AuthCodes[apiErr.ErrorCode()]
	return &model.UploadError{Op: op, Auth: auth, Err: err}
}
