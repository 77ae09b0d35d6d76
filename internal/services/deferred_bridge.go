package services

import (
	"context"
	"encoding/json"

	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/internal/infrastructure/buffer"
	"github.com/planloop/backend/usecase"
)

// DeferredBridge adapts the deferred processor to the use-case ports.
type DeferredBridge struct {
	processor *DeferredProcessor
}

func NewDeferredBridge(processor *DeferredProcessor) *DeferredBridge {
	return &DeferredBridge{processor: processor}
}

func (b *DeferredBridge) IncrementView(ctx context.Context, activityID string) error {
	return b.enqueueCounter(activityID, buffer.OperationIncrementView)
}

func (b *DeferredBridge) IncrementAdoption(ctx context.Context, activityID string) error {
	return b.enqueueCounter(activityID, buffer.OperationIncrementAdoption)
}

func (b *DeferredBridge) BufferCompletion(ctx context.Context, taskID string, completed bool) error {
	if b.processor == nil || taskID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(buffer.CompletionPayload{TaskID: taskID, Completed: completed})
	if err != nil {
		return err
	}
	return b.processor.Enqueue(buffer.Item{
		Entity:    buffer.EntityCompletion,
		Operation: buffer.OperationSetCompleted,
		Data:      payload,
		Priority:  4,
	})
}

func (b *DeferredBridge) enqueueCounter(activityID, operation string) error {
	if b.processor == nil || activityID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(buffer.CounterPayload{ActivityID: activityID})
	if err != nil {
		return err
	}
	return b.processor.Enqueue(buffer.Item{
		Entity:    buffer.EntityCounter,
		Operation: operation,
		Data:      payload,
		Priority:  2,
	})
}

var (
	_ usecase.CounterSink      = (*DeferredBridge)(nil)
	_ usecase.CompletionBuffer = (*DeferredBridge)(nil)
)
