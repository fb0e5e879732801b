package services

import (
	"context"
	"fmt"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"go.uber.org/zap"
)

// DefaultProps is the library a fresh database starts with.
var DefaultProps = []models.Prop{
	{Name: "Modern Sofa", Category: "Furniture", ModelURL: "https://example.com/models/sofa.glb", Thumbnail: "https://images.unsplash.com/photo-1555041469-a586c61ea9bc?w=500"},
	{Name: "Dining Table", Category: "Furniture", ModelURL: "https://example.com/models/table.glb", Thumbnail: "https://images.unsplash.com/photo-1577140917170-285929fb55b7?w=500"},
	{Name: "Floor Lamp", Category: "Lighting", ModelURL: "https://example.com/models/lamp.glb", Thumbnail: "https://images.unsplash.com/photo-1507473885765-e6ed057f782c?w=500"},
	{Name: "Bookshelf", Category: "Storage", ModelURL: "https://example.com/models/bookshelf.glb", Thumbnail: "https://images.unsplash.com/photo-1594620302200-9a762244a156?w=500"},
}

type LibraryService interface {
	Search(ctx context.Context, who Identity, query string) ([]models.Prop, error)
	Seed(ctx context.Context, props []models.Prop) (int, error)
}

type libraryService struct {
	props  repository.PropRepository
	policy *access.Policy
	ids    IDGenerator
	log    *zap.Logger
}

func NewLibraryService(props repository.PropRepository, policy *access.Policy, ids IDGenerator, log *zap.Logger) LibraryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &libraryService{props: props, policy: policy, ids: ids, log: log.Named("library")}
}

// Search matches the query against prop names and categories.
func (s *libraryService) Search(ctx context.Context, who Identity, query string) ([]models.Prop, error) {
	if err := translate(s.policy.Authorize(who.Role, access.ViewOrder)); err != nil {
		return nil, err
	}
	props, err := s.props.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search props: %w", err)
	}
	if props == nil {
		props = []models.Prop{}
	}
	return props, nil
}

// Seed fills an empty library. A library that already has entries is left
// alone and Seed reports zero inserts.
func (s *libraryService) Seed(ctx context.Context, props []models.Prop) (int, error) {
	n, err := s.props.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count props: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	for i := range props {
		p := props[i]
		if p.ID == 0 {
			p.ID = s.ids.Generate()
		}
		if err := s.props.Create(ctx, &p); err != nil {
			return i, fmt.Errorf("create prop %q: %w", p.Name, err)
		}
	}
	s.log.Info("model library seeded", zap.Int("props", len(props)))
	return len(props), nil
}
