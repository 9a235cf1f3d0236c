// Package representatives resolves a submitter's postcode to their Member of
// Parliament using postcodes.io and a CSV directory of members.
package representatives

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
)

// ErrNoRepresentative is returned when a constituency has no directory entry.
var ErrNoRepresentative = errors.New("no representative for constituency")

// ConstituencyResolver maps a normalized postcode to a constituency name.
type ConstituencyResolver interface {
	Constituency(ctx context.Context, postcode string) (string, error)
}

// Service implements workflow.RepresentativeLookup.
type Service struct {
	resolver  ConstituencyResolver
	directory *Directory
	logger    *slog.Logger
}

var _ workflow.RepresentativeLookup = (*Service)(nil)

func New(resolver ConstituencyResolver, directory *Directory, logger *slog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		directory: directory,
		logger:    logger.With("system", "representatives"),
	}
}

func (s *Service) Lookup(ctx context.Context, locationKey string) (*submissions.Representative, error) {
	postcode := NormalizePostcode(locationKey)
	if !ValidPostcode(postcode) {
		return nil, fmt.Errorf("%w: invalid postcode format", workflow.ErrBadLocationKey)
	}

	constituency, err := s.resolver.Constituency(ctx, postcode)
	if err != nil {
		return nil, err
	}

	rep, ok := s.directory.Find(constituency)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRepresentative, constituency)
	}

	s.logger.InfoContext(ctx, "representative resolved", "constituency", constituency)
	return rep, nil
}
