package store

import (
	"encoding/json"
	"fmt"

	"github.com/growthloop/coachflow/internal/models"
)

// sessionColumns is the column list shared by both SQL backends.
const sessionColumns = "id, user_id, topic, current_stage, conversation_history, insights, actions, tracker, created_at, updated_at"

// sessionRow groups the JSON-encoded columns of one session record.
type sessionRow struct {
	historyJSON  string
	insightsJSON string
	actionsJSON  string
	trackerJSON  string
}

func encodeSession(state models.ConversationState) (sessionRow, error) {
	var row sessionRow

	history, err := json.Marshal(state.ConversationHistory)
	if err != nil {
		return row, fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	insights, err := json.Marshal(state.Insights)
	if err != nil {
		return row, fmt.Errorf("failed to marshal insights: %w", err)
	}
	actions, err := json.Marshal(state.Actions)
	if err != nil {
		return row, fmt.Errorf("failed to marshal actions: %w", err)
	}
	tracker, err := json.Marshal(state.Tracker)
	if err != nil {
		return row, fmt.Errorf("failed to marshal tracker: %w", err)
	}

	row.historyJSON = string(history)
	row.insightsJSON = string(insights)
	row.actionsJSON = string(actions)
	row.trackerJSON = string(tracker)
	return row, nil
}

func decodeSession(state *models.ConversationState, row sessionRow) error {
	if err := json.Unmarshal([]byte(row.historyJSON), &state.ConversationHistory); err != nil {
		return fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	if err := json.Unmarshal([]byte(row.insightsJSON), &state.Insights); err != nil {
		return fmt.Errorf("failed to unmarshal insights: %w", err)
	}
	if err := json.Unmarshal([]byte(row.actionsJSON), &state.Actions); err != nil {
		return fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	if err := json.Unmarshal([]byte(row.trackerJSON), &state.Tracker); err != nil {
		return fmt.Errorf("failed to unmarshal tracker: %w", err)
	}
	return nil
}
