package store

import (
	"context"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

var _ model.JobStore = (*NopStore)(nil)

// NopStore is a no-op store used in dry-run mode. It never remembers
// anything, so every record appears new on each run.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Exists(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
func (s *NopStore) InsertMany(context.Context, []model.JobRecord) (int, error) { return 0, nil }
func (s *NopStore) Cleanup(context.Context, time.Duration) (int, error)      { return 0, nil }
func (s *NopStore) Close() error                                             { return nil }
