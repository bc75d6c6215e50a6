package provider

import (
	"context"
	"fmt"
	"time"
)

// ActionResult is the uniform outcome shape every mutation reports. Err
// carries the underlying provider error string for the user-facing message;
// nothing is retried.
type ActionResult struct {
	Success bool
	EventID string
	Summary string
	Message string
	Err     string
}

// Patch describes a modification. A nil field means "leave unchanged"; an
// empty string (or empty list) means "clear". The two are never conflated.
type Patch struct {
	Summary     *string
	Start       *time.Time
	End         *time.Time
	Description *string
	Location    *string
	Attendees   *[]string
}

// Mutator performs create/modify/cancel against the provider, one round trip
// each (modify reads first to merge unchanged fields).
type Mutator struct {
	provider CalendarProvider
}

func NewMutator(provider CalendarProvider) *Mutator {
	return &Mutator{provider: provider}
}

func (m *Mutator) Create(ctx context.Context, event Event) ActionResult {
	if !event.Start.Before(event.End) {
		return ActionResult{
			Success: false,
			Err:     "start must be before end",
			Message: fmt.Sprintf("Can't create '%s': the start time must be before the end time", event.Summary),
		}
	}

	created, err := m.provider.Insert(ctx, event)
	if err != nil {
		return ActionResult{
			Success: false,
			Err:     err.Error(),
			Message: fmt.Sprintf("Failed to create event: %s", err.Error()),
		}
	}
	return ActionResult{
		Success: true,
		EventID: created.ID,
		Summary: created.Summary,
		Message: fmt.Sprintf("Event '%s' created successfully", created.Summary),
	}
}

func (m *Mutator) Modify(ctx context.Context, eventID string, patch Patch) ActionResult {
	original, err := m.provider.Get(ctx, eventID)
	if err != nil {
		return ActionResult{
			Success: false,
			EventID: eventID,
			Err:     err.Error(),
			Message: fmt.Sprintf("Failed to modify event: %s", err.Error()),
		}
	}

	merged := original
	if patch.Summary != nil && *patch.Summary != "" {
		merged.Summary = *patch.Summary
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Location != nil {
		merged.Location = *patch.Location
	}
	if patch.Attendees != nil {
		merged.Attendees = *patch.Attendees
	}
	if patch.Start != nil {
		merged.Start = *patch.Start
		if patch.End == nil {
			// keep the original duration when only a new start is given
			merged.End = patch.Start.Add(original.End.Sub(original.Start))
		}
	}
	if patch.End != nil {
		merged.End = *patch.End
	}
	if !merged.Start.Before(merged.End) {
		return ActionResult{
			Success: false,
			EventID: eventID,
			Err:     "start must be before end",
			Message: fmt.Sprintf("Can't modify '%s': the start time must be before the end time", merged.Summary),
		}
	}

	updated, err := m.provider.Update(ctx, eventID, merged)
	if err != nil {
		return ActionResult{
			Success: false,
			EventID: eventID,
			Err:     err.Error(),
			Message: fmt.Sprintf("Failed to modify event: %s", err.Error()),
		}
	}
	return ActionResult{
		Success: true,
		EventID: eventID,
		Summary: updated.Summary,
		Message: fmt.Sprintf("Event '%s' updated successfully", updated.Summary),
	}
}

func (m *Mutator) Cancel(ctx context.Context, eventID string) ActionResult {
	summary := "Event"
	if event, err := m.provider.Get(ctx, eventID); err == nil {
		summary = event.Summary
	}

	if err := m.provider.Delete(ctx, eventID); err != nil {
		return ActionResult{
			Success: false,
			EventID: eventID,
			Err:     err.Error(),
			Message: fmt.Sprintf("Failed to cancel event: %s", err.Error()),
		}
	}
	return ActionResult{
		Success: true,
		EventID: eventID,
		Summary: summary,
		Message: fmt.Sprintf("Event '%s' cancelled successfully", summary),
	}
}
