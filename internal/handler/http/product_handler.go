package http

import (
	"context"
	"log/slog"
	"net/http"

	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/model"
	"robotics-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

type ProductService interface {
	Create(ctx context.Context, in service.CreateInput) (*model.Product, error)
	GetAll(ctx context.Context) ([]model.Product, error)
	GetByID(ctx context.Context, id string) (*model.Product, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}

// Options controls request intake.
type Options struct {
	UploadDir      string
	MaxUploadFiles int
	MaxUploadBytes int64
	Development    bool
}

type ProductHandler struct {
	service   ProductService
	opts      Options
	errWriter errorWriter
}

var HttpProductHandlerTracer = otel.Tracer("HttpProductHandler")

func NewProductHandler(service ProductService, opts Options) *ProductHandler {
	if opts.MaxUploadFiles < 1 {
		opts.MaxUploadFiles = 5
	}
	if opts.MaxUploadBytes < 1 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &ProductHandler{
		service:   service,
		opts:      opts,
		errWriter: errorWriter{development: opts.Development},
	}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.GetAll)
		r.Post("/", h.Create)
		r.Get("/{id}", h.GetByID)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := HttpProductHandlerTracer.Start(r.Context(), "HttpProductHandler.GetAll")
	defer span.End()

	products, err := h.service.GetAll(ctx)
	if err != nil {
		h.errWriter.write(ctx, w, err, "Error fetching products")
		return
	}
	count := len(products)
	writeJSON(w, http.StatusOK, Response{Success: true, Count: &count, Data: products})
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := HttpProductHandlerTracer.Start(r.Context(), "HttpProductHandler.GetByID")
	defer span.End()

	product, err := h.service.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.errWriter.write(ctx, w, err, "Error fetching product")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: product})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := HttpProductHandlerTracer.Start(r.Context(), "HttpProductHandler.Create")
	defer span.End()

	fields, files, err := h.readRequest(w, r)
	if err != nil {
		h.errWriter.write(ctx, w, err, "Error creating product")
		return
	}
	delete(fields, "keepOldImages")
	logger.Debug(ctx, "HttpProductHandler", logger.Op("create"), slog.Int("files", len(files)))

	product, err := h.service.Create(ctx, service.CreateInput{Fields: fields, Files: files})
	if err != nil {
		h.errWriter.write(ctx, w, err, "Error creating product")
		return
	}
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "Product created successfully", Data: product})
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, span := HttpProductHandlerTracer.Start(r.Context(), "HttpProductHandler.Update")
	defer span.End()

	fields, files, err := h.readRequest(w, r)
	if err != nil {
		h.errWriter.write(ctx, w, err, "Error updating product")
		return
	}
	keep := takeBool(fields, "keepOldImages")
	logger.Debug(ctx, "HttpProductHandler", logger.Op("update"), slog.Int("files", len(files)), slog.Bool("keep_old_images", keep))

	product, err := h.service.Update(ctx, chi.URLParam(r, "id"), service.UpdateInput{
		Fields:        fields,
		Files:         files,
		KeepOldImages: keep,
	})
	if err != nil {
		h.errWriter.write(ctx, w, err, "Error updating product")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Product updated successfully", Data: product})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := HttpProductHandlerTracer.Start(r.Context(), "HttpProductHandler.Delete")
	defer span.End()

	if err := h.service.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.errWriter.write(ctx, w, err, "Error deleting product")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Product deleted successfully"})
}
