package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"

	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/media"
	"robotics-catalog/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	FindAll(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	UpdateByID(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error)
	DeleteByID(ctx context.Context, id string) error
}

// CreateInput is a create request. Files are local temp paths that the
// service owns from the moment Create is called: every one of them is
// removed before Create returns.
type CreateInput struct {
	Fields ProductFields
	Files  []string
}

// UpdateInput is a partial update. Files follow the same ownership rule as
// CreateInput. KeepOldImages appends new uploads to the current images
// instead of replacing them; it has no effect when no files are supplied.
type UpdateInput struct {
	Fields        ProductFields
	Files         []string
	KeepOldImages bool
}

type ProductService struct {
	repo              ProductRepository
	store             media.Store
	uploadConcurrency int
}

type Option func(*ProductService)

// WithUploadConcurrency bounds how many files of one request upload at once.
// Values below 1 mean sequential.
func WithUploadConcurrency(n int) Option {
	return func(s *ProductService) {
		if n < 1 {
			n = 1
		}
		s.uploadConcurrency = n
	}
}

var ProductServiceTracer = otel.Tracer("ProductService")

func NewProductService(repo ProductRepository, store media.Store, opts ...Option) *ProductService {
	s := &ProductService{repo: repo, store: store, uploadConcurrency: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the fields, uploads the files in order and persists the
// product. If anything fails after an upload succeeded, the uploaded images
// are deleted again.
func (s *ProductService) Create(ctx context.Context, in CreateInput) (*model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.Create")
	defer span.End()
	defer removeFiles(ctx, in.Files)
	logger.Info(ctx, "Service", logger.Op("create"), slog.Int("files", len(in.Files)))

	product, err := buildProduct(in.Fields)
	if err != nil {
		return nil, err
	}

	images, err := s.uploadAll(ctx, in.Files)
	if err != nil {
		return nil, err
	}
	product.Images = images

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		s.deleteImages(ctx, "retract", images)
		return nil, err
	}
	span.SetAttributes(attribute.String("product.id", created.ID.Hex()))
	return created, nil
}

func (s *ProductService) GetAll(ctx context.Context) ([]model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.GetAll")
	defer span.End()
	logger.Info(ctx, "Service", logger.Op("get_all"))

	return s.repo.FindAll(ctx)
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.GetByID")
	defer span.End()
	logger.Info(ctx, "Service", logger.Op("get_by_id"), slog.String("id", id))

	return s.repo.FindByID(ctx, id)
}

// Update applies the supplied fields. When files are supplied they become
// the new images, either appended (KeepOldImages) or replacing the current
// ones. Replaced images are deleted from the media store only after the
// record was written; a failed delete is logged and the image is orphaned.
func (s *ProductService) Update(ctx context.Context, id string, in UpdateInput) (*model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.Update")
	defer span.End()
	defer removeFiles(ctx, in.Files)
	span.SetAttributes(attribute.String("product.id", id))
	logger.Info(ctx, "Service", logger.Op("update"), slog.String("id", id),
		slog.Int("files", len(in.Files)), slog.Bool("keep_old_images", in.KeepOldImages))

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := buildPatch(in.Fields)
	if err != nil {
		return nil, err
	}

	var uploaded []model.Image
	if len(in.Files) > 0 {
		if uploaded, err = s.uploadAll(ctx, in.Files); err != nil {
			return nil, err
		}
		images := uploaded
		if in.KeepOldImages {
			images = make([]model.Image, 0, len(existing.Images)+len(uploaded))
			images = append(images, existing.Images...)
			images = append(images, uploaded...)
		}
		patch.Images = &images
	}

	updated, err := s.repo.UpdateByID(ctx, id, patch)
	if err != nil {
		s.deleteImages(ctx, "retract", uploaded)
		return nil, err
	}

	if len(in.Files) > 0 && !in.KeepOldImages {
		s.deleteImages(ctx, "replace", existing.Images)
	}
	return updated, nil
}

// Delete removes every image of the product from the media store, best
// effort, and then the record itself.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))
	logger.Info(ctx, "Service", logger.Op("delete"), slog.String("id", id))

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.deleteImages(ctx, "delete", existing.Images)

	return s.repo.DeleteByID(ctx, id)
}

// uploadAll uploads files keeping their order in the result. Each temp file
// is removed right after its own upload attempt. On the first failure no
// further uploads are started and whatever did upload is deleted again.
func (s *ProductService) uploadAll(ctx context.Context, files []string) ([]model.Image, error) {
	images := make([]model.Image, len(files))
	if len(files) == 0 {
		return images, nil
	}
	done := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			img, err := s.store.Upload(gctx, path)
			removeFile(ctx, path)
			if err != nil {
				logger.Warn(ctx, "Image upload failed", slog.String("file", path), logger.Err(err))
				return asUploadError(err)
			}
			images[i] = img
			done[i] = true
			return nil
		})
	}

	err := g.Wait()
	if err == nil && slices.Contains(done, false) {
		// cancelled before every file went up
		err = ctx.Err()
		if err == nil {
			err = context.Canceled
		}
	}
	if err != nil {
		var uploaded []model.Image
		for i, ok := range done {
			if ok {
				uploaded = append(uploaded, images[i])
			}
		}
		s.deleteImages(ctx, "retract", uploaded)
		return nil, err
	}
	return images, nil
}

func asUploadError(err error) error {
	var upErr *model.UploadError
	if errors.As(err, &upErr) {
		return err
	}
	return &model.UploadError{Op: "upload", Err: err}
}

// deleteImages is best effort. It runs detached from request cancellation
// so a disconnecting client cannot leave images behind half way.
func (s *ProductService) deleteImages(ctx context.Context, reason string, images []model.Image) {
	if len(images) == 0 {
		return
	}
	cleanupCtx := context.WithoutCancel(ctx)
	for _, img := range images {
		if err := s.store.Delete(cleanupCtx, img.StorageHandle); err != nil {
			logger.Warn(cleanupCtx, "Image delete failed",
				slog.String("reason", reason),
				slog.String("public_id", img.StorageHandle),
				logger.Err(err),
			)
		}
	}
}

func removeFiles(ctx context.Context, paths []string) {
	for _, p := range paths {
		removeFile(ctx, p)
	}
}

func removeFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn(ctx, "Temp file cleanup failed", slog.String("file", path), logger.Err(err))
	}
}
