package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/growthloop/coachflow/internal/fallback"
	"github.com/growthloop/coachflow/internal/models"
	"github.com/growthloop/coachflow/internal/store"
)

// mockGenerator implements ResponseGenerator for testing.
type mockGenerator struct {
	text  string
	err   error
	calls int
}

func (m *mockGenerator) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithStore(store.NewInMemoryStore()),
		WithFallback(fallback.NewEngineWithSeed(1)),
	}
	return New(append(base, opts...)...)
}

func startSession(t *testing.T, e *Engine) string {
	t.Helper()
	result, err := e.StartSession(context.Background(), "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return result.SessionID
}

func sendText(t *testing.T, e *Engine, sessionID, message string) *models.CoachingResponse {
	t.Helper()
	resp, err := e.ProcessMessage(context.Background(), sessionID, models.SendMessageRequest{Message: message})
	if err != nil {
		t.Fatalf("ProcessMessage(%q): %v", message, err)
	}
	if resp.Message == "" {
		t.Fatalf("empty coaching message for %q", message)
	}
	if len(resp.Questions) == 0 {
		t.Fatalf("no questions for %q", message)
	}
	return resp
}

func TestStartSession(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.StartSession(context.Background(), "user-42")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if result.SessionID == "" {
		t.Error("expected generated session id")
	}
	if result.UserID != "user-42" {
		t.Errorf("user id = %q, want user-42", result.UserID)
	}
	resp := result.Response
	if resp.Stage != models.StageIntake {
		t.Errorf("stage = %q, want intake", resp.Stage)
	}
	if resp.CompetencyApplied != "establishing_trust_and_intimacy" {
		t.Errorf("competency = %q", resp.CompetencyApplied)
	}
	if len(resp.Questions) != 3 {
		t.Errorf("expected 3 intake questions, got %d", len(resp.Questions))
	}
	if len(resp.AvailableTopics) != 4 {
		t.Errorf("expected 4 available topics, got %v", resp.AvailableTopics)
	}

	state, err := e.GetSession(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("GetSession after start: %v", err)
	}
	if state.CurrentStage != models.StageIntake {
		t.Errorf("persisted stage = %q, want intake", state.CurrentStage)
	}
}

func TestStartSession_GeneratesUserID(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.StartSession(context.Background(), "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if result.UserID == "" {
		t.Error("expected generated user id for empty request")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetSession(context.Background(), "missing")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProcessMessage_SessionNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ProcessMessage(context.Background(), "missing", models.SendMessageRequest{Message: "hello there"})
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProcessMessage_TopicSelection(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	resp, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "performance_improvement",
		Type:    models.MessageTypeTopicSelection,
	})
	if err != nil {
		t.Fatalf("topic selection: %v", err)
	}

	if resp.Stage != models.StageExploration {
		t.Errorf("stage = %q, want exploration", resp.Stage)
	}
	if resp.Topic != "Performance Improvement" {
		t.Errorf("topic = %q", resp.Topic)
	}
	if len(resp.Questions) != 2 {
		t.Errorf("expected 2 intro questions, got %v", resp.Questions)
	}
	if resp.CompetencyApplied != "active_listening" {
		t.Errorf("competency = %q", resp.CompetencyApplied)
	}

	state, _ := e.GetSession(context.Background(), id)
	if state.Topic != "performance_improvement" {
		t.Errorf("persisted topic = %q", state.Topic)
	}
	if len(state.ConversationHistory) != 2 {
		t.Errorf("expected topic turn in history, got %d messages", len(state.ConversationHistory))
	}
}

func TestProcessMessage_TopicReselection(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	if _, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "career_development", Type: models.MessageTypeTopicSelection,
	}); err != nil {
		t.Fatalf("first selection: %v", err)
	}

	// A different topic is rejected once one is set.
	_, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "leadership_growth", Type: models.MessageTypeTopicSelection,
	})
	if !errors.Is(err, models.ErrTopicAlreadySet) {
		t.Errorf("expected ErrTopicAlreadySet, got %v", err)
	}

	// Re-selecting the same topic replays the intro without changing state.
	before, _ := e.GetSession(context.Background(), id)
	resp, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "career_development", Type: models.MessageTypeTopicSelection,
	})
	if err != nil {
		t.Fatalf("same-topic reselection: %v", err)
	}
	if resp.Topic != "Career Development" {
		t.Errorf("topic = %q", resp.Topic)
	}
	after, _ := e.GetSession(context.Background(), id)
	if len(after.ConversationHistory) != len(before.ConversationHistory) {
		t.Error("same-topic reselection modified history")
	}
}

func TestProcessMessage_InvalidTopic(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	_, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "underwater_basket_weaving", Type: models.MessageTypeTopicSelection,
	})
	if !errors.Is(err, models.ErrInvalidTopic) {
		t.Errorf("expected ErrInvalidTopic, got %v", err)
	}
}

func TestProcessMessage_Validation(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	_, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{Message: ""})
	if !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}

	_, err = e.ProcessMessage(context.Background(), id, models.SendMessageRequest{Message: "hi there", Type: "carrier_pigeon"})
	if !errors.Is(err, models.ErrInvalidMessageType) {
		t.Errorf("expected ErrInvalidMessageType, got %v", err)
	}
}

func TestProcessMessage_LLMSuccess(t *testing.T) {
	gen := &mockGenerator{text: "That sounds challenging. What support would help you move forward right now? How might you approach this differently tomorrow?"}
	e := newTestEngine(t, WithGenerator(gen))
	id := startSession(t, e)

	resp := sendText(t, e, id, "I had a difficult week at work")
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if resp.DemoMode {
		t.Error("expected demo_mode false for LLM turn")
	}
	if resp.AIConfidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", resp.AIConfidence)
	}
	if len(resp.Questions) != 2 {
		t.Fatalf("expected 2 extracted questions, got %v", resp.Questions)
	}
	if resp.Questions[0] != "What support would help you move forward right now?" {
		t.Errorf("question[0] = %q", resp.Questions[0])
	}
}

func TestProcessMessage_LLMFailureFallsBack(t *testing.T) {
	gen := &mockGenerator{err: errors.New("upstream unavailable")}
	e := newTestEngine(t, WithGenerator(gen))
	id := startSession(t, e)

	resp := sendText(t, e, id, "I keep procrastinating on everything")
	if !resp.DemoMode {
		t.Error("expected demo_mode true after LLM failure")
	}
	if resp.AIConfidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", resp.AIConfidence)
	}
	if resp.EmotionalAnalysis == nil {
		t.Error("expected emotional analysis in envelope")
	}
}

func TestProcessMessage_StageProgressionWithFailingLLM(t *testing.T) {
	gen := &mockGenerator{err: errors.New("upstream unavailable")}
	e := newTestEngine(t, WithGenerator(gen))
	id := startSession(t, e)

	if _, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "work_life_balance", Type: models.MessageTypeTopicSelection,
	}); err != nil {
		t.Fatalf("topic selection: %v", err)
	}

	stages := []models.Stage{}
	for i := 0; i < 5; i++ {
		resp := sendText(t, e, id, "just checking in about how things are going")
		stages = append(stages, resp.Stage)
	}

	// Depth thresholds alone must carry the session to follow-up.
	if stages[len(stages)-1] != models.StageFollowUp {
		t.Errorf("expected follow_up by message 5, got %v", stages)
	}
	// Stages never move backwards.
	order := map[models.Stage]int{
		models.StageExploration:    1,
		models.StageReflection:     2,
		models.StageActionPlanning: 3,
		models.StageFollowUp:       4,
	}
	for i := 1; i < len(stages); i++ {
		if order[stages[i]] < order[stages[i-1]] {
			t.Errorf("stage regressed at turn %d: %v", i, stages)
		}
	}
}

func TestProcessMessage_FallbackTiersEscalatePerUserMention(t *testing.T) {
	gen := &mockGenerator{err: errors.New("upstream unavailable")}
	e := newTestEngine(t, WithGenerator(gen))
	id := startSession(t, e)

	// Three turns naming procrastination walk the fallback tiers 1 -> 2 -> 3,
	// one tier per user mention. Coach replies echo the word and the current
	// message is already in history when the fallback runs; neither may skip
	// a tier.
	var replies []string
	for i := 0; i < 3; i++ {
		resp := sendText(t, e, id, "my procrastination is getting in the way")
		replies = append(replies, strings.ToLower(resp.Message))
	}

	if strings.Contains(replies[0], "before") || strings.Contains(replies[0], "small") {
		t.Errorf("first mention should acknowledge and explore, got %q", replies[0])
	}
	if !strings.Contains(replies[1], "before") {
		t.Errorf("second mention should probe what happens before, got %q", replies[1])
	}
	if !strings.Contains(replies[2], "small") {
		t.Errorf("third mention should push toward a small step, got %q", replies[2])
	}
}

func TestProcessMessage_InsightAdvancesToReflection(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	if _, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: "performance_improvement", Type: models.MessageTypeTopicSelection,
	}); err != nil {
		t.Fatalf("topic selection: %v", err)
	}

	resp := sendText(t, e, id, "I'm starting to see the pattern behind all of this")
	if resp.Stage != models.StageReflection {
		t.Errorf("stage = %q, want reflection on insight language", resp.Stage)
	}
	if resp.SuggestedNextStage != models.StageReflection {
		t.Errorf("suggested stage = %q", resp.SuggestedNextStage)
	}
	if len(resp.Insights) == 0 {
		t.Error("expected insights in reflection envelope")
	}
}

func TestProcessMessage_ActionPlanningIncludesTemplate(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	if _, err := e.TransitionStage(context.Background(), id, models.StageReflection); err != nil {
		t.Fatalf("transition: %v", err)
	}
	resp := sendText(t, e, id, "I'm ready, let's create an action plan")
	if resp.Stage != models.StageActionPlanning {
		t.Fatalf("stage = %q, want action_planning", resp.Stage)
	}
	if resp.ActionTemplate == nil {
		t.Error("expected empty action template in action planning envelope")
	}
}

func TestProcessMessage_ActionCommitment(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)
	if _, err := e.TransitionStage(context.Background(), id, models.StageActionPlanning); err != nil {
		t.Fatalf("transition: %v", err)
	}

	payload := `{"action":"finish the quarterly report","by_when":"Friday","success_criteria":"report submitted","potential_obstacles":"meetings","support_needed":"quiet mornings"}`
	resp, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
		Message: payload, Type: models.MessageTypeActionCommitment,
	})
	if err != nil {
		t.Fatalf("action commitment: %v", err)
	}

	if resp.Message != commitmentConfirmation {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.ActionSummary == nil || resp.ActionSummary.Action != "finish the quarterly report" {
		t.Errorf("action summary = %+v", resp.ActionSummary)
	}
	if resp.Stage != models.StageFollowUp {
		t.Errorf("stage = %q, want follow_up after commitment", resp.Stage)
	}

	state, _ := e.GetSession(context.Background(), id)
	if len(state.Actions) != 1 {
		t.Fatalf("expected 1 recorded action, got %d", len(state.Actions))
	}
	if state.Actions[0].ByWhen != "Friday" {
		t.Errorf("recorded action = %+v", state.Actions[0])
	}
}

func TestProcessMessage_ActionCommitmentInvalidPayload(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	cases := []string{
		"not json at all",
		`{"by_when":"Friday"}`,
		`{"action":"   "}`,
	}
	for _, payload := range cases {
		_, err := e.ProcessMessage(context.Background(), id, models.SendMessageRequest{
			Message: payload, Type: models.MessageTypeActionCommitment,
		})
		if !errors.Is(err, models.ErrInvalidActionPayload) {
			t.Errorf("payload %q: expected ErrInvalidActionPayload, got %v", payload, err)
		}
	}
}

func TestTransitionStage(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	resp, err := e.TransitionStage(context.Background(), id, models.StageActionPlanning)
	if err != nil {
		t.Fatalf("TransitionStage: %v", err)
	}
	if resp.Stage != models.StageActionPlanning {
		t.Errorf("stage = %q", resp.Stage)
	}
	if resp.Message != actionPlanningPrompt {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.ActionTemplate == nil {
		t.Error("expected action template")
	}

	state, _ := e.GetSession(context.Background(), id)
	if state.CurrentStage != models.StageActionPlanning {
		t.Errorf("persisted stage = %q", state.CurrentStage)
	}
}

func TestTransitionStage_Invalid(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	_, err := e.TransitionStage(context.Background(), id, "daydreaming")
	if !errors.Is(err, models.ErrInvalidStage) {
		t.Errorf("expected ErrInvalidStage, got %v", err)
	}
}

func TestHandleText_HistoryAlternates(t *testing.T) {
	e := newTestEngine(t)
	id := startSession(t, e)

	for i := 0; i < 3; i++ {
		sendText(t, e, id, "thinking through my options for the week ahead")
	}

	state, _ := e.GetSession(context.Background(), id)
	if len(state.ConversationHistory) != 6 {
		t.Fatalf("expected 6 history messages, got %d", len(state.ConversationHistory))
	}
	for i, m := range state.ConversationHistory {
		wantRole := models.RoleUser
		if i%2 == 1 {
			wantRole = models.RoleCoach
		}
		if m.Role != wantRole {
			t.Errorf("history[%d].Role = %q, want %q", i, m.Role, wantRole)
		}
		if m.Timestamp.IsZero() {
			t.Errorf("history[%d] has zero timestamp", i)
		}
	}
}

func TestEngine_ClockAndIDOverrides(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(t,
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "fixed-id" }),
	)

	result, err := e.StartSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if result.SessionID != "fixed-id" {
		t.Errorf("session id = %q", result.SessionID)
	}
	state, _ := e.GetSession(context.Background(), "fixed-id")
	if !state.CreatedAt.Equal(fixed) {
		t.Errorf("created at = %v, want %v", state.CreatedAt, fixed)
	}
}
