package main

import (
	"context"
	"errors"
	"net/http"

	"deepscan/internal/api"
	"deepscan/internal/apiclient"
	"deepscan/internal/history"
)

type historyAPI interface {
	List(ctx context.Context, limit int) ([]api.HistoryRecord, error)
	Describe(ctx context.Context, id string) (*api.HistoryRecord, error)
	Remove(ctx context.Context, id string) error
}

// --- HTTP adapter ---

type historyHTTPAdapter struct {
	client *apiclient.Client
}

func (a *historyHTTPAdapter) List(ctx context.Context, limit int) ([]api.HistoryRecord, error) {
	return a.client.History(ctx, limit)
}

func (a *historyHTTPAdapter) Describe(ctx context.Context, id string) (*api.HistoryRecord, error) {
	rec, err := a.client.HistoryItem(ctx, id)
	if err != nil {
		return nil, notFoundAsSentinel(err)
	}
	return &rec, nil
}

func (a *historyHTTPAdapter) Remove(ctx context.Context, id string) error {
	return notFoundAsSentinel(a.client.DeleteHistory(ctx, id))
}

func notFoundAsSentinel(err error) error {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return history.ErrNotFound
	}
	return err
}

// --- store adapter ---

type historyStoreAdapter struct {
	svc *api.HistoryService
}

func (a *historyStoreAdapter) List(ctx context.Context, limit int) ([]api.HistoryRecord, error) {
	return a.svc.List(ctx, limit)
}

func (a *historyStoreAdapter) Describe(ctx context.Context, id string) (*api.HistoryRecord, error) {
	return a.svc.Describe(ctx, id)
}

func (a *historyStoreAdapter) Remove(ctx context.Context, id string) error {
	return a.svc.Remove(ctx, id)
}

// withHistory runs fn against the server when --server is set and against the
// local store otherwise. store is nil in remote mode.
func (c *commandContext) withHistory(ctx context.Context, fn func(historyAPI, *history.Store) error) error {
	if c.remote() {
		client, err := c.client()
		if err != nil {
			return err
		}
		if err := fn(&historyHTTPAdapter{client: client}, nil); err != nil {
			return wrapClientError(err, c.serverAddress())
		}
		return nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("history is disabled (set history.enabled = true)")
	}
	store, err := history.OpenFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(&historyStoreAdapter{svc: api.NewHistoryService(store)}, store)
}
