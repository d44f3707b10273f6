package dispatch

import (
	"context"
	"fmt"

	"uscite/internal/core"
	applog "uscite/internal/log"
)

// MarkerWriter records the month in which a dispatch happened.
type MarkerWriter interface {
	SetMarker(ctx context.Context, mk core.MonthKey) error
}

// Dispatcher builds summary texts and performs the dispatch side-effect
// sequence: invoke the composer first, update the marker only afterwards.
type Dispatcher struct {
	composer  Composer
	markers   MarkerWriter
	recipient string
	label     string
	logger    *applog.Logger
}

func NewDispatcher(composer Composer, markers MarkerWriter, recipient, label string, logger *applog.Logger) *Dispatcher {
	return &Dispatcher{
		composer:  composer,
		markers:   markers,
		recipient: recipient,
		label:     label,
		logger:    logger.WithComponent(applog.ComponentDispatch),
	}
}

// BuildSummaryText renders the fixed label, a human month/year form and the
// total with exactly two decimals, e.g. "Spese 08/2025: 120.50".
func (d *Dispatcher) BuildSummaryText(mk core.MonthKey, total core.Money) string {
	return fmt.Sprintf("%s %s: %s", d.label, mk.Human(), total.Format())
}

// Dispatch sends the summary for target and records the send.
//
// The marker is set to the current session month, not the summarized one,
// and only after the composer invocation succeeded. A failed invocation
// leaves the marker untouched so the reminder stays pending for retry.
// Delivery itself is fire-and-forget and never awaited.
func (d *Dispatcher) Dispatch(ctx context.Context, target core.MonthKey, total core.Money, current core.MonthKey) error {
	text := d.BuildSummaryText(target, total)

	if err := d.composer.Compose(ctx, d.recipient, text); err != nil {
		d.logger.WarnContext(ctx, "Summary dispatch failed, marker unchanged",
			applog.FieldMonthKey, target.String(),
			applog.FieldError, err)
		return fmt.Errorf("compose summary: %w", err)
	}

	if err := d.markers.SetMarker(ctx, current); err != nil {
		// The message is already on its way; the reminder will simply
		// reappear next session until the marker write sticks.
		d.logger.WarnContext(ctx, "Dispatched but marker update failed",
			applog.FieldMarker, current.String(),
			applog.FieldError, err)
		return fmt.Errorf("record dispatch: %w", err)
	}

	d.logger.InfoContext(ctx, "Summary dispatched",
		applog.FieldMonthKey, target.String(),
		applog.FieldMarker, current.String(),
		applog.FieldAmountCents, total.Cents)
	return nil
}
