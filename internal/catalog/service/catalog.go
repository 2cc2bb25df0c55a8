package service

import (
	"context"

	catalogerrors "turnera/internal/catalog/errors"
	"turnera/internal/catalog/repository"
	"turnera/pkg/config"
	"turnera/pkg/model"
)

type CatalogService interface {
	// ResolveServices fetches every requested service, verifies they all
	// share one category and returns the services, the category and the
	// summed duration in minutes.
	ResolveServices(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error)

	// ResolveActiveProfessional fetches a professional and verifies it is
	// active and offers the given category.
	ResolveActiveProfessional(ctx context.Context, professionalID, category string) (*model.Professional, error)

	ListServices(ctx context.Context) ([]*model.Service, error)
	ListProfessionalsByCategory(ctx context.Context, category string) ([]*model.Professional, error)
}

type catalogService struct {
	repo repository.CatalogRepository
	cfg  *config.Config
}

func NewCatalogService(repo repository.CatalogRepository, cfg *config.Config) CatalogService {
	return &catalogService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *catalogService) ResolveServices(ctx context.Context, serviceIDs []string) ([]*model.Service, string, int, error) {
	if len(serviceIDs) == 0 {
		return nil, "", 0, catalogerrors.ErrNoServices
	}
	// Duplicates would collapse in the $in query and masquerade as a
	// missing service.
	seen := make(map[string]struct{}, len(serviceIDs))
	for _, id := range serviceIDs {
		if _, dup := seen[id]; dup {
			return nil, "", 0, catalogerrors.ErrDuplicateService
		}
		seen[id] = struct{}{}
	}

	services, err := s.repo.FindServicesByIDs(ctx, serviceIDs)
	if err != nil {
		return nil, "", 0, err
	}

	if len(services) != len(serviceIDs) {
		s.cfg.Log.Warn("Some requested services do not exist",
			"requested", len(serviceIDs),
			"found", len(services),
		)
		return nil, "", 0, catalogerrors.ErrServiceNotFound
	}

	category := services[0].Category
	totalMin := 0
	for _, svc := range services {
		if svc.Category != category {
			return nil, "", 0, catalogerrors.ErrCategoryMismatch
		}
		totalMin += svc.DurationMin
	}

	return services, category, totalMin, nil
}

func (s *catalogService) ResolveActiveProfessional(ctx context.Context, professionalID, category string) (*model.Professional, error) {
	professional, err := s.repo.FindProfessionalByID(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	if !professional.Active {
		return nil, catalogerrors.ErrProfessionalInactive
	}
	if category != "" && !professional.OffersCategory(category) {
		return nil, catalogerrors.ErrCategoryNotOffered
	}

	return professional, nil
}

func (s *catalogService) ListServices(ctx context.Context) ([]*model.Service, error) {
	return s.repo.FindAllServices(ctx)
}

func (s *catalogService) ListProfessionalsByCategory(ctx context.Context, category string) ([]*model.Professional, error) {
	return s.repo.FindActiveProfessionalsByCategory(ctx, category)
}
