package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/apperr"
)

// Service applies catalog rules on top of a Repository and classifies
// failures for the HTTP boundary.
type Service struct {
	repo Repository
	log  logrus.FieldLogger
}

func NewService(repo Repository, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, log: log.WithField("module", "catalog")}
}

func (s *Service) Create(ctx context.Context, part Part) (*Part, error) {
	part.Identifier = strings.TrimSpace(part.Identifier)
	if NormalizeKey(part.Identifier) == "" {
		return nil, apperr.Validation("identifier is required")
	}
	if part.Class == "" {
		part.Class = ClassStandard
		if part.AltIdentifier != "" {
			part.Class = ClassAlternate
		}
	}
	if err := validClass(part.Class); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, part); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, apperr.Conflict("part %s already exists", part.Identifier)
		}
		return nil, apperr.Wrap(err, "create part %s", part.Identifier)
	}
	part.Key = NormalizeKey(part.Identifier)
	s.log.WithField("part", part.Key).Info("part created")
	return &part, nil
}

// Get returns the part or a NotFound error.
func (s *Service) Get(ctx context.Context, identifier string) (*Part, error) {
	p, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, apperr.Wrap(err, "find part %s", identifier)
	}
	if p == nil {
		return nil, apperr.NotFound("part %s not found", identifier)
	}
	return p, nil
}

func (s *Service) Exists(ctx context.Context, identifier string) (bool, error) {
	if NormalizeKey(identifier) == "" {
		return false, apperr.Validation("value parameter is required")
	}
	ok, err := s.repo.Exists(ctx, identifier)
	if err != nil {
		return false, apperr.Wrap(err, "check part %s", identifier)
	}
	return ok, nil
}

func (s *Service) List(ctx context.Context) ([]Part, error) {
	parts, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list parts")
	}
	return parts, nil
}

// Search returns every part whose identifier contains query. An empty query
// lists the catalog; a query with no match is NotFound.
func (s *Service) Search(ctx context.Context, query string) ([]Part, error) {
	parts, err := s.repo.SearchByIdentifierSubstring(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(err, "search parts")
	}
	if len(parts) == 0 {
		return nil, apperr.NotFound("no parts match %s", query)
	}
	return parts, nil
}

func (s *Service) Update(ctx context.Context, identifier string, patch Patch) (*Part, error) {
	if NormalizeKey(identifier) == "" {
		return nil, apperr.Validation("identifier is required")
	}
	if patch.Empty() {
		return nil, apperr.Validation("no fields provided to update")
	}
	if patch.Class != nil {
		if err := validClass(*patch.Class); err != nil {
			return nil, err
		}
	}
	p, err := s.repo.UpdateFields(ctx, identifier, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("part %s not found", identifier)
		}
		return nil, apperr.Wrap(err, "update part %s", identifier)
	}
	s.log.WithField("part", p.Key).Info("part updated")
	return p, nil
}

func (s *Service) Delete(ctx context.Context, identifier string) error {
	if err := s.repo.Delete(ctx, identifier); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("part %s not found", identifier)
		}
		return apperr.Wrap(err, "delete part %s", identifier)
	}
	s.log.WithField("part", NormalizeKey(identifier)).Info("part deleted")
	return nil
}

func validClass(c Class) error {
	switch c {
	case ClassStandard, ClassAlternate:
		return nil
	}
	return apperr.Validation("unknown part class %q", c)
}
