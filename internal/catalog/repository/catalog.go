package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogerrors "turnera/internal/catalog/errors"
	"turnera/pkg/config"
	"turnera/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ProfessionalsCollection     = "Professionals"
	ServicesCollection          = "Services"
	BlockingIntervalsCollection = "BlockingIntervals"
	HolidaysCollection          = "Holidays"
	BusinessHoursCollection     = "BusinessHours"
)

type mongoCatalogRepository struct {
	cfg           *config.Config
	db            *mongo.Database
	professionals *mongo.Collection
	services      *mongo.Collection
	blocks        *mongo.Collection
	holidays      *mongo.Collection
	businessHours *mongo.Collection
}

type CatalogRepository interface {
	FindProfessionalByID(ctx context.Context, id string) (*model.Professional, error)
	FindActiveProfessionalsByCategory(ctx context.Context, category string) ([]*model.Professional, error)
	FindServicesByIDs(ctx context.Context, ids []string) ([]*model.Service, error)
	FindAllServices(ctx context.Context) ([]*model.Service, error)
	FindBlockingIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]*model.BlockingInterval, error)
	FindHolidays(ctx context.Context, from, to time.Time) ([]*model.Holiday, error)
	FindBusinessHours(ctx context.Context) ([]*model.BusinessHours, error)
}

func NewMongoCatalogRepository(cfg *config.Config) CatalogRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCatalogRepository{
		cfg:           cfg,
		db:            db,
		professionals: db.Collection(ProfessionalsCollection),
		services:      db.Collection(ServicesCollection),
		blocks:        db.Collection(BlockingIntervalsCollection),
		holidays:      db.Collection(HolidaysCollection),
		businessHours: db.Collection(BusinessHoursCollection),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context
// unchanged with a no-op cancel function.
func (r *mongoCatalogRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoCatalogRepository) FindProfessionalByID(ctx context.Context, id string) (*model.Professional, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", catalogerrors.ErrInvalidID, id)
	}

	var professional model.Professional
	err = r.professionals.FindOne(ctx, bson.M{"_id": objectID}).Decode(&professional)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}

	return &professional, nil
}

func (r *mongoCatalogRepository) FindActiveProfessionalsByCategory(ctx context.Context, category string) ([]*model.Professional, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"active":     true,
		"categories": category,
	}

	cursor, err := r.professionals.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find professionals: %w", err)
	}
	defer cursor.Close(ctx)

	var professionals []*model.Professional
	if err = cursor.All(ctx, &professionals); err != nil {
		return nil, fmt.Errorf("failed to decode professionals: %w", err)
	}

	return professionals, nil
}

func (r *mongoCatalogRepository) FindServicesByIDs(ctx context.Context, ids []string) ([]*model.Service, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", catalogerrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, objectID)
	}

	cursor, err := r.services.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find services: %w", err)
	}
	defer cursor.Close(ctx)

	var services []*model.Service
	if err = cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}

	return services, nil
}

func (r *mongoCatalogRepository) FindAllServices(ctx context.Context) ([]*model.Service, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.services.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find services: %w", err)
	}
	defer cursor.Close(ctx)

	var services []*model.Service
	if err = cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}

	return services, nil
}

func (r *mongoCatalogRepository) FindBlockingIntervals(ctx context.Context, professionalID string, from, to time.Time) ([]*model.BlockingInterval, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"professional_id": professionalID,
		"start":           bson.M{"$lt": to},
		"end":             bson.M{"$gt": from},
	}

	cursor, err := r.blocks.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find blocking intervals: %w", err)
	}
	defer cursor.Close(ctx)

	var blocks []*model.BlockingInterval
	if err = cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode blocking intervals: %w", err)
	}

	return blocks, nil
}

func (r *mongoCatalogRepository) FindHolidays(ctx context.Context, from, to time.Time) ([]*model.Holiday, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"date": bson.M{"$gte": from, "$lt": to},
	}

	cursor, err := r.holidays.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find holidays: %w", err)
	}
	defer cursor.Close(ctx)

	var holidays []*model.Holiday
	if err = cursor.All(ctx, &holidays); err != nil {
		return nil, fmt.Errorf("failed to decode holidays: %w", err)
	}

	return holidays, nil
}

func (r *mongoCatalogRepository) FindBusinessHours(ctx context.Context) ([]*model.BusinessHours, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.businessHours.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to find business hours: %w", err)
	}
	defer cursor.Close(ctx)

	var hours []*model.BusinessHours
	if err = cursor.All(ctx, &hours); err != nil {
		return nil, fmt.Errorf("failed to decode business hours: %w", err)
	}

	return hours, nil
}
