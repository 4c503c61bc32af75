// Package models defines the core data structures for CoachFlow.
//
// This file contains the session state machine types: stages, messages,
// action commitments, and the per-session conversation state.
package models

import (
	"time"
)

// Stage represents the current stage of a coaching conversation.
type Stage string

const (
	// StageIntake is the opening stage where the topic is chosen.
	StageIntake Stage = "intake"
	// StageExploration is the open exploration of the chosen topic.
	StageExploration Stage = "exploration"
	// StageReflection surfaces patterns and insights.
	StageReflection Stage = "reflection"
	// StageActionPlanning turns insights into concrete commitments.
	StageActionPlanning Stage = "action_planning"
	// StageFollowUp reviews progress against prior commitments.
	StageFollowUp Stage = "follow_up"
)

// IsValidStage checks if the given stage is one of the five conversation stages.
func IsValidStage(s Stage) bool {
	switch s {
	case StageIntake, StageExploration, StageReflection, StageActionPlanning, StageFollowUp:
		return true
	default:
		return false
	}
}

// Message roles in conversation history.
const (
	RoleUser  = "user"
	RoleCoach = "coach"
)

// Message is a single entry in a session's conversation history.
type Message struct {
	Role      string    `json:"role"` // user or coach
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionCommitment is a structured commitment recorded during action planning.
type ActionCommitment struct {
	Action             string    `json:"action"`
	ByWhen             string    `json:"by_when"`
	SuccessCriteria    string    `json:"success_criteria"`
	PotentialObstacles string    `json:"potential_obstacles"`
	SupportNeeded      string    `json:"support_needed"`
	CommittedAt        time.Time `json:"committed_at"`
}

// ResponseTracker holds the fallback engine's per-session anti-repetition
// state. It is persisted alongside the session so variety survives restarts.
type ResponseTracker struct {
	RecentResponses []string `json:"recent_responses,omitempty"` // bounded window of recent fallback messages
	AskedQuestions  []string `json:"asked_questions,omitempty"`  // every question asked this session
}

// ConversationState is the full persistent state of one coaching session.
type ConversationState struct {
	SessionID           string             `json:"session_id"`
	UserID              string             `json:"user_id"`
	CurrentStage        Stage              `json:"current_stage"`
	Topic               string             `json:"topic,omitempty"` // topic key, set once during intake
	ConversationHistory []Message          `json:"conversation_history"`
	Insights            []string           `json:"insights,omitempty"`
	Actions             []ActionCommitment `json:"actions,omitempty"`
	Tracker             ResponseTracker    `json:"tracker,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// UserDepth returns the number of user messages in the conversation history.
func (s *ConversationState) UserDepth() int {
	depth := 0
	for _, m := range s.ConversationHistory {
		if m.Role == RoleUser {
			depth++
		}
	}
	return depth
}

// AddMessage appends a message to the conversation history and bumps UpdatedAt.
func (s *ConversationState) AddMessage(role, content string, now time.Time) {
	s.ConversationHistory = append(s.ConversationHistory, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	s.UpdatedAt = now
}

// Clone returns a deep copy of the conversation state. Stores hand out copies
// so callers cannot mutate cached state through shared slices.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	c.ConversationHistory = append([]Message(nil), s.ConversationHistory...)
	c.Insights = append([]string(nil), s.Insights...)
	c.Actions = append([]ActionCommitment(nil), s.Actions...)
	c.Tracker.RecentResponses = append([]string(nil), s.Tracker.RecentResponses...)
	c.Tracker.AskedQuestions = append([]string(nil), s.Tracker.AskedQuestions...)
	return &c
}

// EmotionalAnalysis summarizes the detected emotional state for the envelope.
type EmotionalAnalysis struct {
	PrimaryEmotion string  `json:"primary_emotion"`
	Intensity      float64 `json:"intensity"`
}

// ActionTemplate is the empty commitment scaffold offered during action planning.
type ActionTemplate struct {
	Action             string `json:"action"`
	ByWhen             string `json:"by_when"`
	SuccessCriteria    string `json:"success_criteria"`
	PotentialObstacles string `json:"potential_obstacles"`
	SupportNeeded      string `json:"support_needed"`
}

// CoachingResponse is the uniform envelope returned for every coaching turn.
type CoachingResponse struct {
	Message            string             `json:"message"`
	Questions          []string           `json:"questions"`
	Stage              Stage              `json:"stage"`
	CompetencyApplied  string             `json:"competency_applied"`
	AIConfidence       float64            `json:"ai_confidence"`
	DemoMode           bool               `json:"demo_mode"`
	EmotionalAnalysis  *EmotionalAnalysis `json:"emotional_analysis,omitempty"`
	AvailableTopics    []string           `json:"available_topics,omitempty"`
	Topic              string             `json:"topic,omitempty"`
	Insights           []string           `json:"insights,omitempty"`
	ActionTemplate     *ActionTemplate    `json:"action_template,omitempty"`
	ActionSummary      *ActionCommitment  `json:"action_summary,omitempty"`
	SuggestedNextStage Stage              `json:"suggested_next_stage,omitempty"`
}
