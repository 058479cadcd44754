package service

import (
	"context"
	"time"

	"robotics-catalog/internal/logger"

	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

type HealthService struct {
	Mongo Pinger
}

type HealthStatus struct {
	Mongo string
}

func (s HealthStatus) Up() bool {
	return s.Mongo == "UP"
}

var HealthServiceTracer = otel.Tracer("HealthService")

func NewHealthService(mongo Pinger) *HealthService {
	return &HealthService{
		Mongo: mongo,
	}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	ctx, span := HealthServiceTracer.Start(ctx, "HealthService.Check")
	defer span.End()
	logger.Debug(ctx, "Service", logger.Op("health"))

	status := HealthStatus{Mongo: "UP"}

	mongoCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Mongo.Ping(mongoCtx, readpref.Primary()); err != nil {
		logger.Warn(ctx, "MongoDB ping failed", logger.Err(err))
		status.Mongo = "DOWN"
	}

	return status
}
