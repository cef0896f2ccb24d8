package sinks

import (
	"context"
	"errors"

	"github.com/daniacca/genekin/internal/kinetics"
)

// Multi fans every report out to several sinks in order. The first write
// error stops the fan-out.
type Multi []kinetics.CountSink

func (m Multi) WriteRows(ctx context.Context, rows []kinetics.CountRow) error {
	for _, s := range m {
		if err := s.WriteRows(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
