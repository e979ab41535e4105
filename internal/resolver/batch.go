package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"trackmatch/internal/domain"
	"trackmatch/internal/metrics"
)

const (
	defaultBatchWorkers = 4
	maxBatchWorkers     = 16
	maxBatchSongs       = 500
)

type preparedBatch struct {
	songs    []domain.Song
	selected []Provider
	options  resolvedOptions
	workers  int
	noCache  bool
}

func (s *Service) prepareBatch(request domain.BatchRequest) (preparedBatch, error) {
	if len(request.Songs) == 0 {
		return preparedBatch{}, ErrEmptyBatch
	}
	songs := request.Songs
	if len(songs) > maxBatchSongs {
		songs = songs[:maxBatchSongs]
	}
	selected, err := s.resolveProviders(request.Providers)
	if err != nil {
		return preparedBatch{}, err
	}
	workers := request.Workers
	if workers <= 0 {
		workers = s.batchWorkers
	}
	if workers > maxBatchWorkers {
		workers = maxBatchWorkers
	}
	return preparedBatch{
		songs:    songs,
		selected: selected,
		options:  s.engineOptions(request.Options),
		workers:  workers,
		noCache:  request.NoCache,
	}, nil
}

// ResolveBatch resolves every song over a bounded worker pool. Items come back
// in input order; a failing song is reported in its item and does not fail
// the batch.
func (s *Service) ResolveBatch(ctx context.Context, request domain.BatchRequest) (domain.BatchResponse, error) {
	prepared, err := s.prepareBatch(request)
	if err != nil {
		return domain.BatchResponse{}, err
	}

	startedAt := time.Now()
	items := make([]domain.BatchItem, len(prepared.songs))
	s.runBatch(ctx, prepared, func(item domain.BatchItem) {
		items[item.Index] = item
	})

	response := domain.BatchResponse{
		ID:        uuid.NewString(),
		Items:     items,
		ElapsedMS: time.Since(startedAt).Milliseconds(),
	}
	for _, item := range items {
		switch {
		case item.Error != "":
			response.Failed++
		case item.Response != nil && item.Response.Match.Found:
			response.Found++
		}
	}
	s.logger.Info("batch resolved",
		slog.String("id", response.ID),
		slog.Int("songs", len(items)),
		slog.Int("found", response.Found),
		slog.Int("failed", response.Failed),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response, nil
}

// ResolveBatchStream is ResolveBatch emitting items as they complete. The
// channel is closed once every song has been handled or ctx is done.
func (s *Service) ResolveBatchStream(ctx context.Context, request domain.BatchRequest) (<-chan domain.BatchItem, error) {
	prepared, err := s.prepareBatch(request)
	if err != nil {
		return nil, err
	}
	ch := make(chan domain.BatchItem, len(prepared.songs))
	go func() {
		defer close(ch)
		s.runBatch(ctx, prepared, func(item domain.BatchItem) {
			ch <- item
		})
	}()
	return ch, nil
}

// runBatch calls emit once per song, possibly concurrently from different
// workers but never twice for the same index.
func (s *Service) runBatch(ctx context.Context, prepared preparedBatch, emit func(domain.BatchItem)) {
	metrics.BatchSongsTotal.Add(float64(len(prepared.songs)))

	sem := semaphore.NewWeighted(int64(prepared.workers))
	var (
		wg     sync.WaitGroup
		emitMu sync.Mutex
	)
	send := func(item domain.BatchItem) {
		emitMu.Lock()
		defer emitMu.Unlock()
		emit(item)
	}

	for index, song := range prepared.songs {
		if err := sem.Acquire(ctx, 1); err != nil {
			send(domain.BatchItem{Index: index, Error: err.Error()})
			continue
		}
		wg.Add(1)
		go func(index int, song domain.Song) {
			defer wg.Done()
			defer sem.Release(1)
			send(s.resolveBatchItem(ctx, index, song, prepared))
		}(index, song)
	}
	wg.Wait()
}

func (s *Service) resolveBatchItem(ctx context.Context, index int, song domain.Song, prepared preparedBatch) domain.BatchItem {
	item := domain.BatchItem{Index: index}
	if strings.TrimSpace(song.Name) == "" {
		item.Error = ErrInvalidSong.Error()
		return item
	}

	// Each song gets its own deadline so one slow song cannot starve the rest.
	songCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.resolvePrepared(songCtx, song, prepared.selected, prepared.options, prepared.noCache)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Response = &response
	return item
}
