package llm

import (
	"caltalk/src-server/model"
	"caltalk/src-server/utils"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// maxEventsForParser caps how many cached events are shown to the extraction
// prompts when resolving which event a modify/cancel request refers to.
const maxEventsForParser = 10

// CreateParams are the extracted details of a new event, with times resolved
// in the user's timezone.
type CreateParams struct {
	Summary     string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Attendees   []string
}

// ModifyParams carry the target event and only the fields the user asked to
// change. A nil field is untouched; a pointer to the zero value clears it.
type ModifyParams struct {
	EventID     string
	Summary     *string
	Start       *time.Time
	End         *time.Time
	Description *string
	Location    *string
	Attendees   *[]string
}

const createSystemPrompt = `You extract event details from a calendar request.

Today's date is %s. The user's request is relative to that date.

Respond with a JSON object only, no prose:
{"summary": string, "start_time": "YYYY-MM-DD HH:MM", "end_time": "YYYY-MM-DD HH:MM", "description": string, "location": string, "attendees": [string]}

Rules:
- summary, start_time and end_time are mandatory.
- If the user gives no end time, set end_time to one hour after start_time.
- If the user gives no duration and no end, the event lasts one hour.
- Omit description, location and attendees when the user did not mention them.`

// ExtractCreate pulls the details of a new event out of the utterance. Wall
// times come back in the user's timezone.
func ExtractCreate(ctx context.Context, completer Completer, utterance string, tz *utils.Timezone) (CreateParams, error) {
	raw, err := completer.Complete(ctx,
		fmt.Sprintf(createSystemPrompt, tz.Today()),
		utterance,
		CompleteOptions{Temperature: 0.3, MaxTokens: 200},
	)
	if err != nil {
		return CreateParams{}, fmt.Errorf("ExtractCreate: %w", err)
	}
	var parsed struct {
		Summary     string   `json:"summary"`
		StartTime   string   `json:"start_time"`
		EndTime     string   `json:"end_time"`
		Description string   `json:"description"`
		Location    string   `json:"location"`
		Attendees   []string `json:"attendees"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		return CreateParams{}, fmt.Errorf("ExtractCreate: failed to unmarshal: %w", err)
	}
	if parsed.Summary == "" {
		return CreateParams{}, fmt.Errorf("ExtractCreate: summary is blank")
	}
	start, err := tz.ParseWall(parsed.StartTime)
	if err != nil {
		return CreateParams{}, fmt.Errorf("ExtractCreate: bad start_time: %w", err)
	}
	var end time.Time
	if parsed.EndTime == "" {
		end = start.Add(time.Hour)
	} else if end, err = tz.ParseWall(parsed.EndTime); err != nil {
		return CreateParams{}, fmt.Errorf("ExtractCreate: bad end_time: %w", err)
	}
	return CreateParams{
		Summary:     utils.TidySummary(parsed.Summary),
		Start:       start,
		End:         end,
		Description: parsed.Description,
		Location:    parsed.Location,
		Attendees:   parsed.Attendees,
	}, nil
}

const modifySystemPrompt = `You work out which calendar event the user wants to change and what changes they asked for.

Today's date is %s.

Recent events:
%s

Respond with a JSON object only, no prose:
{"event_id": string, "summary": string, "start_time": "YYYY-MM-DD HH:MM", "end_time": "YYYY-MM-DD HH:MM", "description": string, "location": string, "attendees": [string]}

Rules:
- event_id is mandatory and must be one of the ids above.
- Include ONLY the fields the user asked to change; omit everything else.
- To clear a field, include it with an empty value.`

func ExtractModify(ctx context.Context, completer Completer, utterance string, events []model.CachedEvent, tz *utils.Timezone) (ModifyParams, error) {
	raw, err := completer.Complete(ctx,
		fmt.Sprintf(modifySystemPrompt, tz.Today(), FormatEventLines(events, maxEventsForParser)),
		utterance,
		CompleteOptions{Temperature: 0.3, MaxTokens: 200},
	)
	if err != nil {
		return ModifyParams{}, fmt.Errorf("ExtractModify: %w", err)
	}
	var parsed struct {
		EventID     string    `json:"event_id"`
		Summary     *string   `json:"summary"`
		StartTime   *string   `json:"start_time"`
		EndTime     *string   `json:"end_time"`
		Description *string   `json:"description"`
		Location    *string   `json:"location"`
		Attendees   *[]string `json:"attendees"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		return ModifyParams{}, fmt.Errorf("ExtractModify: failed to unmarshal: %w", err)
	}
	if parsed.EventID == "" {
		return ModifyParams{}, fmt.Errorf("ExtractModify: event_id is blank")
	}
	params := ModifyParams{
		EventID:     parsed.EventID,
		Summary:     parsed.Summary,
		Description: parsed.Description,
		Location:    parsed.Location,
		Attendees:   parsed.Attendees,
	}
	if parsed.StartTime != nil && *parsed.StartTime != "" {
		start, err := tz.ParseWall(*parsed.StartTime)
		if err != nil {
			return ModifyParams{}, fmt.Errorf("ExtractModify: bad start_time: %w", err)
		}
		params.Start = &start
	}
	if parsed.EndTime != nil && *parsed.EndTime != "" {
		end, err := tz.ParseWall(*parsed.EndTime)
		if err != nil {
			return ModifyParams{}, fmt.Errorf("ExtractModify: bad end_time: %w", err)
		}
		params.End = &end
	}
	return params, nil
}

const cancelSystemPrompt = `You work out which calendar event the user wants to cancel.

Recent events:
%s

Respond with a JSON object only, no prose: {"event_id": string}
event_id must be one of the ids above.`

func ExtractCancel(ctx context.Context, completer Completer, utterance string, events []model.CachedEvent) (string, error) {
	raw, err := completer.Complete(ctx,
		fmt.Sprintf(cancelSystemPrompt, FormatEventLines(events, maxEventsForParser)),
		utterance,
		CompleteOptions{Temperature: 0.3, MaxTokens: 200},
	)
	if err != nil {
		return "", fmt.Errorf("ExtractCancel: %w", err)
	}
	var parsed struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		return "", fmt.Errorf("ExtractCancel: failed to unmarshal: %w", err)
	}
	if parsed.EventID == "" {
		return "", fmt.Errorf("ExtractCancel: event_id is blank")
	}
	return parsed.EventID, nil
}

// FormatEventLines renders cached events as a bullet list for prompt context,
// at most max lines.
func FormatEventLines(events []model.CachedEvent, max int) string {
	if len(events) == 0 {
		return "(no events)"
	}
	if len(events) > max {
		events = events[:max]
	}
	var sb strings.Builder
	for _, event := range events {
		fmt.Fprintf(&sb, "- %s: %s on %s\n", event.ID, event.Summary, event.Start.Format("2006-01-02 03:04 PM"))
	}
	return strings.TrimRight(sb.String(), "\n")
}
