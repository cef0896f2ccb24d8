// Package sinks persists the periodic count reports of a simulation.
package sinks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/daniacca/genekin/internal/kinetics"
)

// TSVSink writes count rows as tab-separated lines after a single header.
type TSVSink struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewTSVSink writes the header to w and returns a sink appending rows to it.
// Close flushes but does not close w.
func NewTSVSink(w io.Writer) (*TSVSink, error) {
	s := &TSVSink{w: bufio.NewWriter(w)}
	if _, err := s.w.WriteString(kinetics.CountsHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

// CreateTSVFile truncates or creates path and returns a sink that owns it.
func CreateTSVFile(path string) (*TSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	s, err := NewTSVSink(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

func (s *TSVSink) WriteRows(_ context.Context, rows []kinetics.CountRow) error {
	return kinetics.EncodeRowsTSV(s.w, rows)
}

// Flush pushes buffered rows to the underlying writer.
func (s *TSVSink) Flush() error {
	return s.w.Flush()
}

func (s *TSVSink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
