package sync

import (
	"context"

	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

// NoRemote is the remote store of an instance with no remote credentials:
// every call reports unreachable, so the engine stays local-only and keeps
// queueing. Used when DB config is absent.
type NoRemote struct{}

func (NoRemote) Select(context.Context, string, string) ([]entity.Record, error) {
	return nil, domain.ErrUnreachable
}

func (NoRemote) Upsert(context.Context, string, string, entity.Record) (entity.Record, error) {
	return entity.Record{}, domain.ErrUnreachable
}

func (NoRemote) Delete(context.Context, string, string, string) error {
	return domain.ErrUnreachable
}
