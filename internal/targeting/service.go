// Package targeting executes typed inserts and targeted reads through the
// statement matrix and the read/write pool pair.
package targeting

import (
	"context"

	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/internal/database"
	"github.com/goliatone/go-targeted-ads/internal/matrix"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Querier is the read and write surface shared by the service and its
// cached decorator.
type Querier interface {
	Insert(ctx context.Context, ad ads.Advertisement) error
	QueryPartial(ctx context.Context, cond ads.Condition, page ads.Page) ([]ads.PartialAdvertisement, error)
}

// Service binds advertisements and conditions to matrix statements.
type Service struct {
	pools  database.Pools
	matrix *matrix.Matrix
	logger zerolog.Logger
}

var _ Querier = (*Service)(nil)

// NewService returns a Service over pools using the compiled matrix m.
func NewService(pools database.Pools, m *matrix.Matrix, logger zerolog.Logger) *Service {
	return &Service{
		pools:  pools,
		matrix: m,
		logger: logger.With().Str("component", "targeting").Logger(),
	}
}

// Insert writes ad through the write pool.
func (s *Service) Insert(ctx context.Context, ad ads.Advertisement) error {
	if err := ad.Validate(); err != nil {
		return errors.Wrap(err, "invalid advertisement")
	}

	conn, err := s.pools.AcquireWrite(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("acquire write connection")
		return err
	}
	defer conn.Release()

	if err := conn.Exec(ctx, s.matrix.Insert(), matrix.InsertArgs(ad)...); err != nil {
		s.logger.Error().Err(err).Str("title", ad.Title).Msg("insert advertisement")
		return errors.Wrap(err, "insert advertisement")
	}
	return nil
}

// QueryPartial returns the active advertisements matching cond, ordered by
// id. An empty page never reaches the store. No match yields an empty,
// non-nil slice.
func (s *Service) QueryPartial(ctx context.Context, cond ads.Condition, page ads.Page) ([]ads.PartialAdvertisement, error) {
	if page.Empty() {
		return []ads.PartialAdvertisement{}, nil
	}
	if err := cond.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid condition")
	}
	if err := page.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid page")
	}

	stmt := s.matrix.Lookup(cond)

	conn, err := s.pools.AcquireRead(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("acquire read connection")
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, stmt, matrix.SelectArgs(cond, page)...)
	if err != nil {
		s.logger.Error().Err(err).Str("statement", stmt.Name).Msg("query advertisements")
		return nil, errors.Wrapf(err, "query %s", stmt.Index)
	}
	defer rows.Close()

	out := make([]ads.PartialAdvertisement, 0, min(page.Limit, 64))
	for rows.Next() {
		var ad ads.PartialAdvertisement
		if err := rows.Scan(&ad.ID, &ad.Title, &ad.EndAt); err != nil {
			return nil, errors.Wrap(err, "scan advertisement")
		}
		out = append(out, ad)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Str("statement", stmt.Name).Msg("read advertisements")
		return nil, errors.Wrap(err, "read advertisements")
	}
	return out, nil
}
