// Package flow orchestrates coaching conversations. The Engine owns the stage
// state machine, routes each turn to the LLM or the fallback engine, and
// persists session state through a store backend.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/growthloop/coachflow/internal/analyzer"
	"github.com/growthloop/coachflow/internal/competency"
	"github.com/growthloop/coachflow/internal/fallback"
	"github.com/growthloop/coachflow/internal/genai"
	"github.com/growthloop/coachflow/internal/models"
	"github.com/growthloop/coachflow/internal/store"
)

const (
	welcomeMessage = "Welcome to your coaching session! I'm here to support you in exploring what's important to you. This is a confidential space where you can share openly."

	commitmentConfirmation = "Thank you for making that commitment. I'm confident you can achieve this."

	actionPlanningPrompt = "Based on our conversation and the insights you've gained, what feels like the most important action you could take?"

	// historyLimit bounds how many prior messages accompany a completion call.
	historyLimit = 6

	// Envelope confidence: 0.9 for LLM-generated turns, 0.8 for fallback.
	aiConfidence       = 0.9
	fallbackConfidence = 0.8
)

var welcomeQuestions = []string{
	"What brings you to coaching right now?",
	"What would you like to explore in this session?",
	"How can I best support you today?",
}

// ResponseGenerator produces coaching text from a message transcript. The
// genai client satisfies this; tests substitute their own.
type ResponseGenerator interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Opts holds configuration for the coaching engine.
type Opts struct {
	Store      store.Store
	Generator  ResponseGenerator
	Fallback   *fallback.Engine
	Thresholds Thresholds
	Now        func() time.Time
	NewID      func() string
}

// Option configures Opts.
type Option func(*Opts)

// WithStore sets the session store backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithGenerator sets the LLM response generator. A nil generator means every
// turn uses the fallback engine.
func WithGenerator(g ResponseGenerator) Option {
	return func(o *Opts) { o.Generator = g }
}

// WithFallback sets the fallback response engine.
func WithFallback(f *fallback.Engine) Option {
	return func(o *Opts) { o.Fallback = f }
}

// WithThresholds overrides the stage progression depths.
func WithThresholds(t Thresholds) Option {
	return func(o *Opts) { o.Thresholds = t }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// WithIDGenerator overrides session ID generation, for tests.
func WithIDGenerator(newID func() string) Option {
	return func(o *Opts) { o.NewID = newID }
}

// Engine drives coaching sessions through the five conversation stages.
type Engine struct {
	store      store.Store
	generator  ResponseGenerator
	fallback   *fallback.Engine
	thresholds Thresholds
	now        func() time.Time
	newID      func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a coaching engine. Defaults: in-memory store, no LLM generator,
// randomly seeded fallback engine, standard thresholds.
func New(opts ...Option) *Engine {
	cfg := Opts{
		Thresholds: DefaultThresholds(),
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		cfg.Store = store.NewInMemoryStore()
	}
	if cfg.Fallback == nil {
		cfg.Fallback = fallback.NewEngine()
	}

	slog.Debug("flow.New: engine created", "llm_configured", cfg.Generator != nil,
		"thresholds", fmt.Sprintf("%d,%d,%d", cfg.Thresholds.Reflection, cfg.Thresholds.ActionPlanning, cfg.Thresholds.FollowUp))

	return &Engine{
		store:      cfg.Store,
		generator:  cfg.Generator,
		fallback:   cfg.Fallback,
		thresholds: cfg.Thresholds,
		now:        cfg.Now,
		newID:      cfg.NewID,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Store exposes the session store for health reporting.
func (e *Engine) Store() store.Store {
	return e.store
}

// LLMConfigured reports whether an LLM generator is wired in.
func (e *Engine) LLMConfigured() bool {
	return e.generator != nil
}

// sessionLock returns the per-session mutex, creating it on first use.
// Serializing turns per session keeps read-modify-write cycles consistent.
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[sessionID] = l
	}
	return l
}

// StartSession creates a new coaching session in the intake stage.
func (e *Engine) StartSession(ctx context.Context, userID string) (*models.StartSessionResult, error) {
	now := e.now()
	if userID == "" {
		userID = e.newID()
	}
	state := models.ConversationState{
		SessionID:    e.newID(),
		UserID:       userID,
		CurrentStage: models.StageIntake,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.SaveSession(state); err != nil {
		slog.Error("Engine.StartSession: failed to persist session", "error", err, "sessionID", state.SessionID)
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}

	comp := competency.ForStage(models.StageIntake)
	resp := &models.CoachingResponse{
		Message:           welcomeMessage,
		Questions:         welcomeQuestions,
		Stage:             models.StageIntake,
		CompetencyApplied: string(comp.Competency),
		AIConfidence:      aiConfidence,
		AvailableTopics:   TopicKeys(),
	}

	slog.Debug("Engine.StartSession: session created", "sessionID", state.SessionID, "userID", state.UserID)
	return &models.StartSessionResult{
		SessionID: state.SessionID,
		UserID:    state.UserID,
		Response:  resp,
	}, nil
}

// GetSession returns the stored state for a session.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	state, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if state == nil {
		return nil, models.ErrSessionNotFound
	}
	return state, nil
}

// ProcessMessage handles one conversation turn. Turns for the same session
// are serialized.
func (e *Engine) ProcessMessage(ctx context.Context, sessionID string, req models.SendMessageRequest) (*models.CoachingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case models.MessageTypeTopicSelection:
		return e.handleTopicSelection(state, req.Message)
	case models.MessageTypeActionCommitment:
		return e.handleActionCommitment(state, req.Message)
	default:
		return e.handleText(ctx, state, req.Message)
	}
}

// handleTopicSelection records the session topic and moves to exploration.
// The topic is set once; re-selecting the same topic replays the intro
// without changing state, any other topic is rejected.
func (e *Engine) handleTopicSelection(state *models.ConversationState, message string) (*models.CoachingResponse, error) {
	key := strings.ToLower(strings.TrimSpace(message))
	topic, ok := LookupTopic(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTopic, key)
	}

	comp := competency.Get(competency.ActiveListening)
	resp := &models.CoachingResponse{
		Message:           topic.intro,
		Questions:         topic.introQuestions,
		Stage:             models.StageExploration,
		CompetencyApplied: string(comp.Competency),
		AIConfidence:      aiConfidence,
		Topic:             topic.Name,
		EmotionalAnalysis: &models.EmotionalAnalysis{PrimaryEmotion: "engaged", Intensity: 0.7},
	}

	if state.Topic == key {
		// Same topic again: replay the intro, leave state untouched.
		return resp, nil
	}
	if state.Topic != "" {
		return nil, fmt.Errorf("%w: session topic is %s", models.ErrTopicAlreadySet, state.Topic)
	}

	now := e.now()
	state.Topic = key
	state.CurrentStage = models.StageExploration
	state.AddMessage(models.RoleUser, key, now)
	state.AddMessage(models.RoleCoach, topic.intro, now)
	e.persist(state, "handleTopicSelection")

	slog.Debug("Engine.handleTopicSelection: topic set", "sessionID", state.SessionID, "topic", key)
	return resp, nil
}

// actionPayload is the JSON body of an action_commitment message.
type actionPayload struct {
	Action             string `json:"action"`
	ByWhen             string `json:"by_when"`
	SuccessCriteria    string `json:"success_criteria"`
	PotentialObstacles string `json:"potential_obstacles"`
	SupportNeeded      string `json:"support_needed"`
}

// handleActionCommitment records a structured commitment and confirms it.
func (e *Engine) handleActionCommitment(state *models.ConversationState, message string) (*models.CoachingResponse, error) {
	var payload actionPayload
	if err := json.Unmarshal([]byte(message), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidActionPayload, err)
	}
	if strings.TrimSpace(payload.Action) == "" {
		return nil, fmt.Errorf("%w: action is required", models.ErrInvalidActionPayload)
	}

	now := e.now()
	commitment := models.ActionCommitment{
		Action:             payload.Action,
		ByWhen:             payload.ByWhen,
		SuccessCriteria:    payload.SuccessCriteria,
		PotentialObstacles: payload.PotentialObstacles,
		SupportNeeded:      payload.SupportNeeded,
		CommittedAt:        now,
	}
	state.Actions = append(state.Actions, commitment)
	state.AddMessage(models.RoleUser, payload.Action, now)
	state.AddMessage(models.RoleCoach, commitmentConfirmation, now)
	if state.CurrentStage == models.StageActionPlanning {
		state.CurrentStage = models.StageFollowUp
	}
	e.persist(state, "handleActionCommitment")

	comp := competency.ForStage(state.CurrentStage)
	slog.Debug("Engine.handleActionCommitment: commitment recorded", "sessionID", state.SessionID, "action", payload.Action)
	return &models.CoachingResponse{
		Message:           commitmentConfirmation,
		Questions:         comp.FollowUpQuestions[:2],
		Stage:             state.CurrentStage,
		CompetencyApplied: string(comp.Competency),
		AIConfidence:      aiConfidence,
		ActionSummary:     &commitment,
		EmotionalAnalysis: &models.EmotionalAnalysis{PrimaryEmotion: "engaged", Intensity: 0.7},
	}, nil
}

// handleText runs a free-text coaching turn: analyze, generate (LLM with
// fallback), evaluate stage progression, persist.
func (e *Engine) handleText(ctx context.Context, state *models.ConversationState, message string) (*models.CoachingResponse, error) {
	now := e.now()
	state.AddMessage(models.RoleUser, message, now)
	userCtx := analyzer.Analyze(message, state.ConversationHistory)

	if state.CurrentStage == models.StageIntake {
		state.CurrentStage = models.StageExploration
	}
	depth := len(state.ConversationHistory)

	var (
		replyText string
		questions []string
		demoMode  bool
	)
	if e.generator != nil {
		text, err := e.generator.GenerateWithMessages(ctx, e.buildMessages(state, message, userCtx))
		if err == nil {
			replyText = text
			questions = extractQuestions(text)
		} else {
			kind := genai.Classify(err)
			slog.Warn("Engine.handleText: completion failed, using fallback",
				"error", err, "kind", kind, "sessionID", state.SessionID)
		}
	}
	if replyText == "" {
		fb := e.fallback.Respond(userCtx, message, state)
		replyText = fb.Message
		questions = fb.Questions
		demoMode = true
	}

	prior := state.CurrentStage
	next := suggestNextStage(prior, message, depth, e.thresholds)
	if next != prior {
		state.CurrentStage = next
		slog.Debug("Engine.handleText: stage advanced", "sessionID", state.SessionID, "from", prior, "to", next)
	}

	comp := competency.ForStage(state.CurrentStage)
	confidence := aiConfidence
	if demoMode {
		confidence = fallbackConfidence
	}
	resp := &models.CoachingResponse{
		Message:           replyText,
		Questions:         questions,
		Stage:             state.CurrentStage,
		CompetencyApplied: string(comp.Competency),
		AIConfidence:      confidence,
		DemoMode:          demoMode,
		EmotionalAnalysis: &models.EmotionalAnalysis{
			PrimaryEmotion: userCtx.PrimaryEmotion(),
			Intensity:      userCtx.Intensity(),
		},
	}
	if next != prior {
		resp.SuggestedNextStage = next
	}

	if state.CurrentStage == models.StageReflection {
		insights := reflectionInsights(state, userCtx.KeyThemes)
		for _, in := range insights {
			if !containsString(state.Insights, in) {
				state.Insights = append(state.Insights, in)
			}
		}
		resp.Insights = insights
	}
	if state.CurrentStage == models.StageActionPlanning {
		resp.ActionTemplate = &models.ActionTemplate{}
	}

	state.AddMessage(models.RoleCoach, replyText, e.now())
	e.persist(state, "handleText")
	return resp, nil
}

// buildMessages assembles the completion transcript: system prompt, trimmed
// history, current user message.
func (e *Engine) buildMessages(state *models.ConversationState, message string, userCtx analyzer.UserContext) []openai.ChatCompletionMessageParamUnion {
	emotionalState := userCtx.PrimaryEmotion()
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(state, emotionalState)),
	}

	// The current user message is already the history tail; exclude it so it
	// is not sent twice.
	history := state.ConversationHistory
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, m := range history {
		if m.Role == models.RoleUser {
			msgs = append(msgs, openai.UserMessage(m.Content))
		} else {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return append(msgs, openai.UserMessage(message))
}

// TransitionStage moves a session to the requested stage and returns the
// stage entry response.
func (e *Engine) TransitionStage(ctx context.Context, sessionID string, stage models.Stage) (*models.CoachingResponse, error) {
	if !models.IsValidStage(stage) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidStage, stage)
	}

	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state.CurrentStage = stage
	state.UpdatedAt = e.now()
	e.persist(state, "TransitionStage")

	slog.Debug("Engine.TransitionStage: stage set", "sessionID", sessionID, "stage", stage)
	return e.stageEntryResponse(state), nil
}

// stageEntryResponse builds the envelope announcing entry into a stage.
func (e *Engine) stageEntryResponse(state *models.ConversationState) *models.CoachingResponse {
	comp := competency.ForStage(state.CurrentStage)
	resp := &models.CoachingResponse{
		Stage:             state.CurrentStage,
		CompetencyApplied: string(comp.Competency),
		AIConfidence:      aiConfidence,
		EmotionalAnalysis: &models.EmotionalAnalysis{PrimaryEmotion: "engaged", Intensity: 0.7},
	}

	switch state.CurrentStage {
	case models.StageIntake:
		resp.Message = welcomeMessage
		resp.Questions = welcomeQuestions
		resp.AvailableTopics = TopicKeys()
	case models.StageExploration:
		if topic, ok := LookupTopic(state.Topic); ok {
			resp.Message = fmt.Sprintf("Great, let's explore %s. %s", topic.Name, comp.ResponseTemplate)
			resp.Questions = topic.InitialQuestions
			resp.Topic = topic.Name
		} else {
			resp.Message = "Let's keep exploring what matters most to you. " + comp.ResponseTemplate
			resp.Questions = comp.FollowUpQuestions[:2]
		}
	case models.StageReflection:
		insights := reflectionInsights(state, nil)
		lead := "What patterns do you see in what we've discussed?"
		if len(insights) > 0 {
			lead = insights[0]
		}
		resp.Message = "I'm noticing some patterns in what you've shared. " + lead
		resp.Questions = comp.FollowUpQuestions[:3]
		resp.Insights = insights
	case models.StageActionPlanning:
		resp.Message = actionPlanningPrompt
		resp.Questions = comp.FollowUpQuestions
		resp.ActionTemplate = &models.ActionTemplate{}
	case models.StageFollowUp:
		resp.Message = comp.ResponseTemplate
		resp.Questions = comp.FollowUpQuestions[:3]
	}
	return resp
}

// reflectionInsights summarizes conversation patterns once the user has
// shared enough to reflect on. At most two insights per turn.
func reflectionInsights(state *models.ConversationState, themes []string) []string {
	if state.UserDepth() < 2 {
		return nil
	}
	theme := "what's holding you back"
	if len(themes) > 0 {
		theme = strings.ReplaceAll(themes[0], "_", " ")
	}
	insights := []string{
		"I notice you've mentioned several interconnected challenges.",
		"There seems to be a pattern around " + theme + " in what you're sharing.",
		"You appear to have clear awareness of what's not working.",
	}
	return insights[:2]
}

// persist saves session state, logging failures without failing the turn.
func (e *Engine) persist(state *models.ConversationState, op string) {
	if err := e.store.SaveSession(*state); err != nil {
		slog.Error("Engine."+op+": failed to persist session", "error", err, "sessionID", state.SessionID)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
