package worker

import (
	"context"
	"errors"
	"fmt"

	"splitledger/internal/amqp"
	"splitledger/internal/core"
	"splitledger/internal/log"
	"splitledger/internal/sheets"
)

// ExpenseReader is the storage surface the worker needs.
type ExpenseReader interface {
	GetExpense(ctx context.Context, id string) (core.Expense, error)
}

// ExportWorker consumes expense events and appends newly created
// expenses to an external report sheet. Updates and deletes are
// acknowledged without action: the export is an append-only journal.
type ExportWorker struct {
	store  ExpenseReader
	writer sheets.ExpenseWriter
	logger *log.Logger
}

func NewExportWorker(store ExpenseReader, writer sheets.ExpenseWriter, logger *log.Logger) *ExportWorker {
	return &ExportWorker{
		store:  store,
		writer: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single expense event. Returning an error
// causes the message to be requeued by the consumer.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldOperation, msg.Action)

	if msg.Action != amqp.ActionCreated {
		w.logger.DebugContext(ctx, "Event requires no export", log.FieldOperation, msg.Action)
		return nil
	}

	expense, err := w.store.GetExpense(ctx, msg.ExpenseID)
	if err != nil {
		// Deleted before the event was consumed; nothing to export.
		if errors.Is(err, core.ErrExpenseNotFound) {
			w.logger.WarnContext(ctx, "Expense gone before export", log.FieldExpenseID, msg.ExpenseID)
			return nil
		}
		return fmt.Errorf("load expense %s: %w", msg.ExpenseID, err)
	}

	ref, err := w.writer.Append(ctx, expense)
	if err != nil {
		return fmt.Errorf("export expense %s: %w", msg.ExpenseID, err)
	}

	w.logger.InfoContext(ctx, "Expense exported",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldAmountCents, expense.Amount.Cents,
		log.FieldSheetsRef, ref)
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, consumer EventConsumer) error {
	w.logger.InfoContext(ctx, "Export worker started", log.FieldOperation, log.OpStartup)
	return consumer.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEventMessage) error {
		return w.HandleEvent(ctx, msg)
	})
}

// EventConsumer delivers expense events to a handler until the context
// is cancelled.
type EventConsumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler func(*amqp.ExpenseEventMessage) error) error
}
