package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gen-mind/echo-mind/internal/checkpoint"
	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/core/ports/driving"
	"github.com/gen-mind/echo-mind/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOrchestrator coordinates connector synchronisation: it resolves the
// connector, restores its checkpoint, drains one provider sync pass into the
// storage sink and persists the advanced checkpoint.
type SyncOrchestrator struct {
	connectors  driven.ConnectorStore
	checkpoints driven.CheckpointStore
	runs        driven.RunStore
	registry    *ProviderRegistry
	storage     driven.StorageClient
	bucket      string

	// Status tracking
	mu          sync.RWMutex
	activeSyncs map[string]*driving.SyncStatus
}

// NewSyncOrchestrator creates a new sync orchestrator. The storage client is
// optional; when nil, downloaded content is counted but not delivered to a
// sink.
func NewSyncOrchestrator(
	connectors driven.ConnectorStore,
	checkpoints driven.CheckpointStore,
	runs driven.RunStore,
	registry *ProviderRegistry,
	storage driven.StorageClient,
	bucket string,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		connectors:  connectors,
		checkpoints: checkpoints,
		runs:        runs,
		registry:    registry,
		storage:     storage,
		bucket:      bucket,
		activeSyncs: make(map[string]*driving.SyncStatus),
	}
}

// Sync runs one sync pass for a connector. At most one pass per connector
// runs at a time; a second call while one is in flight returns
// ErrSyncInProgress. The checkpoint is persisted whether the pass succeeds
// or aborts, so the next call resumes instead of starting over.
func (o *SyncOrchestrator) Sync(ctx context.Context, connectorID string) error {
	connector, err := o.connectors.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("get connector: %w", err)
	}

	status := &driving.SyncStatus{ConnectorID: connectorID, Running: true}
	if !o.tryStart(connectorID, status) {
		return fmt.Errorf("%w: connector %s", domain.ErrSyncInProgress, connectorID)
	}
	defer o.clearStatus(connectorID)

	provider, err := o.registry.Create(connector.Provider)
	if err != nil {
		return err
	}
	defer provider.Close()

	cp, err := o.restoreCheckpoint(ctx, connectorID, provider)
	if err != nil {
		return err
	}

	base := cp.Base()
	startDocs := base.DocumentsProcessed
	startErrs := base.ErrorCount

	run := domain.SyncRun{
		ID:          uuid.NewString(),
		ConnectorID: connectorID,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.runs.Save(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	logger.Info("Starting sync for connector %s (provider %s)", connectorID, connector.Provider)

	items, errsCh := provider.Sync(ctx, connector.Config, cp)
	runErr := o.processItems(ctx, connector, items, errsCh, status)

	// The checkpoint is valid mid-pass: persist it even when the pass
	// aborted so the failure point is not lost.
	if saveErr := o.persistCheckpoint(ctx, connectorID, cp); saveErr != nil {
		if runErr == nil {
			runErr = saveErr
		} else {
			logger.Warn("persisting checkpoint for %s: %v", connectorID, saveErr)
		}
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Documents = base.DocumentsProcessed - startDocs
	run.Errors = base.ErrorCount - startErrs
	run.HasMore = base.HasMore
	if runErr != nil {
		run.Failure = runErr.Error()
	}
	if err := o.runs.Save(ctx, run); err != nil {
		logger.Warn("recording run for %s: %v", connectorID, err)
	}

	if runErr != nil {
		return fmt.Errorf("sync %s: %w", connectorID, runErr)
	}

	logger.Info("Sync complete: %d documents, %d errors, has more: %t",
		run.Documents, run.Errors, run.HasMore)
	o.updateStatus(status, func(s *driving.SyncStatus) {
		s.Running = false
		s.HasMore = base.HasMore
	})
	return nil
}

// SyncAll runs one sync pass for every configured connector.
func (o *SyncOrchestrator) SyncAll(ctx context.Context) error {
	connectors, err := o.connectors.List(ctx)
	if err != nil {
		return fmt.Errorf("list connectors: %w", err)
	}

	var errs []error
	for _, connector := range connectors {
		if err := o.Sync(ctx, connector.ID); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Status returns sync status for a connector.
func (o *SyncOrchestrator) Status(_ context.Context, connectorID string) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if status, ok := o.activeSyncs[connectorID]; ok {
		// Return a copy to avoid race conditions
		return &driving.SyncStatus{
			ConnectorID:        status.ConnectorID,
			Running:            status.Running,
			DocumentsProcessed: status.DocumentsProcessed,
			ErrorCount:         status.ErrorCount,
			HasMore:            status.HasMore,
		}, nil
	}

	// Not running - return idle status
	return &driving.SyncStatus{
		ConnectorID: connectorID,
		Running:     false,
	}, nil
}

// restoreCheckpoint loads and decodes the stored checkpoint, or asks the
// provider for a fresh one when none exists yet.
func (o *SyncOrchestrator) restoreCheckpoint(
	ctx context.Context,
	connectorID string,
	provider driven.Provider,
) (checkpoint.Checkpoint, error) {
	data, err := o.checkpoints.Get(ctx, connectorID)
	if errors.Is(err, domain.ErrNotFound) {
		return provider.CreateCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("restore checkpoint: %w", err)
	}
	return cp, nil
}

// persistCheckpoint serializes and stores the checkpoint.
func (o *SyncOrchestrator) persistCheckpoint(ctx context.Context, connectorID string, cp checkpoint.Checkpoint) error {
	data, err := checkpoint.Serialize(cp)
	if err != nil {
		return fmt.Errorf("serialize checkpoint: %w", err)
	}
	if err := o.checkpoints.Save(ctx, connectorID, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// processItems drains one provider pass, delivering downloads to the storage
// sink and keeping the live status current.
func (o *SyncOrchestrator) processItems(
	ctx context.Context,
	connector domain.Connector,
	items <-chan domain.SyncItem,
	errsCh <-chan error,
	status *driving.SyncStatus,
) error {
	for items != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil {
				return err
			}

		case item, ok := <-items:
			if !ok {
				items = nil
				continue
			}

			switch {
			case item.Downloaded != nil:
				logger.Debug("Processing: %s", item.Downloaded.SourceID)
				if err := o.deliver(ctx, connector, item.Downloaded); err != nil {
					o.updateStatus(status, func(s *driving.SyncStatus) { s.ErrorCount++ })
					logger.Warn("Failed to deliver %s: %v", item.Downloaded.SourceID, err)
					continue
				}
				o.updateStatus(status, func(s *driving.SyncStatus) { s.DocumentsProcessed++ })

			case item.Deleted != nil:
				logger.Debug("Deleted upstream: %s", item.Deleted.SourceID)
				o.updateStatus(status, func(s *driving.SyncStatus) { s.DocumentsProcessed++ })
			}
		}
	}
	return nil
}

// deliver ships one downloaded item to the storage sink, if configured.
func (o *SyncOrchestrator) deliver(ctx context.Context, connector domain.Connector, file *domain.DownloadedFile) error {
	if o.storage == nil {
		return nil
	}

	key := fmt.Sprintf("%s/%s/%s", connector.ID, file.SourceID, file.Name)
	if _, err := o.storage.Upload(ctx, o.bucket, key, file.Content, file.MIMEType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// tryStart registers the status if no sync is running for the connector.
func (o *SyncOrchestrator) tryStart(connectorID string, status *driving.SyncStatus) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.activeSyncs[connectorID]; running {
		return false
	}
	o.activeSyncs[connectorID] = status
	return true
}

// clearStatus removes the sync status for a connector.
func (o *SyncOrchestrator) clearStatus(connectorID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeSyncs, connectorID)
}

// updateStatus mutates the live status under the lock so Status readers see
// consistent values.
func (o *SyncOrchestrator) updateStatus(status *driving.SyncStatus, fn func(*driving.SyncStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(status)
}
