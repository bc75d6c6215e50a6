package handler

import (
	"caltalk/src-server/model"
	"caltalk/src-server/session"
	"caltalk/src-server/utils"
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// resyncHorizon bounds how far ahead the cache mirrors the provider.
const resyncHorizon = 90 * 24 * time.Hour

// Resync rebuilds the session's event cache from the provider: clear
// everything, then re-insert the current window. Runs after every mutation
// and on the periodic schedule, so the cache never drifts for long.
func (h *Handler) Resync(ctx context.Context, bundle *session.Bundle) error {
	startTimer := time.Now()
	now := time.Now().UTC()
	events, err := h.provider.ListRange(ctx, now.Add(-24*time.Hour), now.Add(resyncHorizon))
	h.appState.MetricChans.ProviderRequest <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		return fmt.Errorf("(*Handler).Resync: %w", err)
	}

	startTimer = time.Now()
	err = bundle.BunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// keep created_at across rebuilds
		createdAt := map[string]string{}
		existing := []model.Event{}
		if err := tx.NewSelect().
			Model(&existing).
			Column("id", "created_at").
			Scan(ctx); err != nil {
			return fmt.Errorf("cannot read creation timestamps: %w", err)
		}
		for _, event := range existing {
			createdAt[event.ID] = event.CreatedAt
		}

		if err := model.ClearEvents(ctx, tx); err != nil {
			return err
		}
		nowStamp := time.Now().UTC().Format(utils.StorageTimeLayout)
		for _, event := range events {
			row := model.Event{
				ID:          event.ID,
				Summary:     event.Summary,
				Description: event.Description,
				StartTime:   event.Start.UTC().Format(utils.StorageTimeLayout),
				EndTime:     event.End.UTC().Format(utils.StorageTimeLayout),
				Location:    event.Location,
				Status:      event.Status,
				HtmlLink:    event.HtmlLink,
				CreatedAt:   nowStamp,
				UpdatedAt:   nowStamp,
			}
			if stamp, ok := createdAt[event.ID]; ok {
				row.CreatedAt = stamp
			}
			if err := row.SetAttendees(event.Attendees); err != nil {
				return err
			}
			if err := row.Upsert(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	h.appState.MetricChans.DatabaseWrite <- float64(time.Since(startTimer).Microseconds())
	if err != nil {
		return fmt.Errorf("(*Handler).Resync: %w", err)
	}
	bundle.MarkResynced()
	return nil
}
