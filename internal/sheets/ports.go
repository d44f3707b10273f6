// Package sheets defines the outbound ports for the spreadsheet mirror.
package sheets

import (
	"context"
	"time"

	"uscite/internal/core"
)

// Ports for outbound adapters.
type (
	// MirrorWriter appends one expense row to the mirror.
	MirrorWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// MirrorDeleter removes the mirrored row of a deleted expense.
	MirrorDeleter interface {
		Delete(ctx context.Context, e core.Expense) error
	}

	// SummaryWriter appends a dispatched-summary row.
	SummaryWriter interface {
		AppendSummary(ctx context.Context, mk core.MonthKey, total core.Money, sentAt time.Time) error
	}

	// MirrorLister reports the IDs already present in the mirror, so a
	// reconcile pass can re-append rows lost to missed messages.
	MirrorLister interface {
		ListIDs(ctx context.Context) ([]string, error)
	}
)
