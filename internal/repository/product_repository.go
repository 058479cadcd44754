package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const CollectionName = "products"

type ProductRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

var ProductRepositoryTracer = otel.Tracer("ProductRepository")

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{
		collection: db.Collection(CollectionName),
		now:        time.Now,
	}
}

// timestamp is truncated to what BSON dates can hold so a stored product
// compares equal to the value returned from Create.
func (r *ProductRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// EnsureIndexes creates the index backing the newest-first listing.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.EnsureIndexes")
	defer span.End()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("createdAt_desc"),
	})
	if err != nil {
		return fmt.Errorf("create createdAt index: %w", err)
	}
	return nil
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) (*model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.Create")
	defer span.End()
	logger.Debug(ctx, "Repository", logger.Op("create"))

	if err := product.Validate(); err != nil {
		return nil, err
	}

	created := *product
	created.ID = primitive.NewObjectID()
	created.CreatedAt = r.timestamp()
	created.UpdatedAt = created.CreatedAt
	if created.Images == nil {
		created.Images = []model.Image{}
	}
	if created.Features == nil {
		created.Features = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, &created); err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	span.SetAttributes(attribute.String("product.id", created.ID.Hex()))
	return &created, nil
}

func (r *ProductRepository) FindAll(ctx context.Context) ([]model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()
	logger.Debug(ctx, "Repository", logger.Op("find_all"))

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]model.Product, 0)
	for cursor.Next(ctx) {
		var product model.Product
		if err := cursor.Decode(&product); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		products = append(products, product)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))
	logger.Debug(ctx, "Repository", logger.Op("find_by_id"))

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, model.ErrProductNotFound
	}

	var product model.Product
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return &product, nil
}

// UpdateByID applies the non-nil fields of patch in one atomic write and
// returns the document as it is after the update.
func (r *ProductRepository) UpdateByID(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.UpdateByID")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))
	logger.Debug(ctx, "Repository", logger.Op("update_by_id"))

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, model.ErrProductNotFound
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	set := setDocument(patch)
	set = append(set, bson.E{Key: "updatedAt", Value: r.timestamp()})

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Product
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return &updated, nil
}

func setDocument(patch model.ProductPatch) bson.D {
	set := bson.D{}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *patch.Name})
	}
	if patch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *patch.Description})
	}
	if patch.Price != nil {
		set = append(set, bson.E{Key: "price", Value: *patch.Price})
	}
	if patch.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *patch.Category})
	}
	if patch.Images != nil {
		images := *patch.Images
		if images == nil {
			images = []model.Image{}
		}
		set = append(set, bson.E{Key: "images", Value: images})
	}
	if patch.Features != nil {
		features := *patch.Features
		if features == nil {
			features = []string{}
		}
		set = append(set, bson.E{Key: "features", Value: features})
	}
	if patch.Stock != nil {
		set = append(set, bson.E{Key: "stock", Value: *patch.Stock})
	}
	if patch.Specifications != nil {
		set = append(set, bson.E{Key: "specifications", Value: *patch.Specifications})
	}
	return set
}

func (r *ProductRepository) DeleteByID(ctx context.Context, id string) error {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))
	logger.Debug(ctx, "Repository", logger.Op("delete_by_id"))

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.ErrProductNotFound
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return model.ErrProductNotFound
	}
	return nil
}
