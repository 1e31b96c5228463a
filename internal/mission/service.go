// AngelaMos | 2026
// service.go

package mission

import (
	"context"
	"fmt"
)

type Service struct {
	repo        Repository
	defaultName string
}

func NewService(repo Repository, defaultName string) *Service {
	return &Service{repo: repo, defaultName: defaultName}
}

func (s *Service) DefaultName() string {
	return s.defaultName
}

func (s *Service) Progress(
	ctx context.Context,
	name string,
) (*ProgressResponse, error) {
	if name == "" {
		name = s.defaultName
	}

	m, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	planted, err := s.repo.CountForestTrees(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("mission progress: %w", err)
	}

	return toProgressResponse(m, planted), nil
}

func (s *Service) ListProgress(
	ctx context.Context,
) ([]ProgressResponse, error) {
	missions, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ProgressResponse, 0, len(missions))
	for i := range missions {
		planted, err := s.repo.CountForestTrees(ctx, missions[i].ID)
		if err != nil {
			return nil, fmt.Errorf("mission progress: %w", err)
		}
		out = append(out, *toProgressResponse(&missions[i], planted))
	}

	return out, nil
}

func (s *Service) Forest(
	ctx context.Context,
	name string,
) ([]ForestTreeResponse, error) {
	if name == "" {
		name = s.defaultName
	}

	m, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	trees, err := s.repo.ListForestTrees(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	out := make([]ForestTreeResponse, 0, len(trees))
	for _, t := range trees {
		out = append(out, ForestTreeResponse{
			X:         t.X,
			Y:         t.Y,
			PlantedAt: t.PlantedAt,
		})
	}

	return out, nil
}
