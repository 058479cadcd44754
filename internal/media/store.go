// Package media talks to the hosted image store. Every implementation returns
// *model.UploadError for failures so callers can tell credential problems
// from everything else.
package media

import (
	"context"
	"fmt"
	"time"

	"robotics-catalog/internal/config"
	"robotics-catalog/internal/metrics"
	"robotics-catalog/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Store interface {
	Upload(ctx context.Context, localPath string) (model.Image, error)
	Delete(ctx context.Context, storageHandle string) error
}

var MediaTracer = otel.Tracer("MediaStore")

// New builds the store selected by MEDIA_DRIVER, wrapped with metrics and tracing.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.MediaDriver {
	case config.MediaDriverCloudinary:
		store, err := NewCloudinary(cfg.CloudinaryCloud, cfg.CloudinaryAPIKey, cfg.CloudinarySecret, cfg.MediaFolder)
		if err != nil {
			return nil, err
		}
		return Instrument(config.MediaDriverCloudinary, store), nil
	case config.MediaDriverS3:
		store, err := NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.MediaFolder, cfg.MediaPublicBaseURL)
		if err != nil {
			return nil, err
		}
		return Instrument(config.MediaDriverS3, store), nil
	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.MediaDriver)
	}
}

type instrumented struct {
	next   Store
	driver string
}

// Instrument records Prometheus metrics and a span around every call of next.
func Instrument(driver string, next Store) Store {
	return &instrumented{next: next, driver: driver}
}

func (s *instrumented) Upload(ctx context.Context, localPath string) (model.Image, error) {
	ctx, span := MediaTracer.Start(ctx, "MediaStore.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("media.driver", s.driver))

	start := time.Now()
	img, err := s.next.Upload(ctx, localPath)
	metrics.ObserveMedia(s.driver, "upload", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return model.Image{}, err
	}
	span.SetAttributes(attribute.String("media.handle", img.StorageHandle))
	return img, nil
}

func (s *instrumented) Delete(ctx context.Context, storageHandle string) error {
	ctx, span := MediaTracer.Start(ctx, "MediaStore.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.driver", s.driver),
		attribute.String("media.handle", storageHandle),
	)

	start := time.Now()
	err := s.next.Delete(ctx, storageHandle)
	metrics.ObserveMedia(s.driver, "delete", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}
