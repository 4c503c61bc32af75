// Package competency defines the static ICF coaching competency catalog.
//
// Each competency carries a response template, follow-up questions, and
// indicator tags. The catalog is fixed at compile time; ForStage maps each
// conversation stage to the competency a coach would lead with.
package competency

import (
	"github.com/growthloop/coachflow/internal/models"
)

// Competency identifies one of the six ICF core competencies used here.
type Competency string

const (
	EstablishingTrust   Competency = "establishing_trust_and_intimacy"
	ActiveListening     Competency = "active_listening"
	PowerfulQuestioning Competency = "powerful_questioning"
	CreatingAwareness   Competency = "creating_awareness"
	DesigningActions    Competency = "designing_actions"
	ManagingProgress    Competency = "managing_progress_and_accountability"
)

// Response bundles the coaching material associated with one competency.
type Response struct {
	Competency        Competency
	ResponseTemplate  string
	FollowUpQuestions []string
	Indicators        []string
}

var catalog = map[Competency]Response{
	EstablishingTrust: {
		Competency:       EstablishingTrust,
		ResponseTemplate: "I appreciate you sharing this with me. This feels like a safe space where we can explore this together.",
		FollowUpQuestions: []string{
			"What feels most important to you about this situation?",
			"How comfortable do you feel discussing this openly?",
			"What would make this conversation most valuable for you?",
		},
		Indicators: []string{"trust", "safety", "openness", "vulnerability"},
	},
	ActiveListening: {
		Competency:       ActiveListening,
		ResponseTemplate: "What I'm hearing is... Is that accurate?",
		FollowUpQuestions: []string{
			"Can you tell me more about that?",
			"What else is important here?",
			"Help me understand what you mean by...",
		},
		Indicators: []string{"clarification", "paraphrasing", "reflection", "deeper_understanding"},
	},
	PowerfulQuestioning: {
		Competency:       PowerfulQuestioning,
		ResponseTemplate: "I'm curious about...",
		FollowUpQuestions: []string{
			"What would happen if...?",
			"How does this connect to your broader goals?",
			"What assumptions might you be making here?",
			"What would success look like?",
			"What's the real challenge behind this challenge?",
		},
		Indicators: []string{"curiosity", "assumptions", "possibilities", "different_perspectives"},
	},
	CreatingAwareness: {
		Competency:       CreatingAwareness,
		ResponseTemplate: "I notice... What do you make of that?",
		FollowUpQuestions: []string{
			"What patterns do you see here?",
			"What's working well that you might build on?",
			"What blind spots might exist?",
			"How does this align with your values?",
		},
		Indicators: []string{"patterns", "insights", "blind_spots", "values_alignment"},
	},
	DesigningActions: {
		Competency:       DesigningActions,
		ResponseTemplate: "Based on what we've explored, what feels like the right next step?",
		FollowUpQuestions: []string{
			"What specific action will you take?",
			"By when will you do this?",
			"What support do you need?",
			"How will you know you've succeeded?",
			"What might get in the way?",
		},
		Indicators: []string{"specific_actions", "timeline", "commitment", "obstacles"},
	},
	ManagingProgress: {
		Competency:       ManagingProgress,
		ResponseTemplate: "Let's check in on your progress since our last conversation.",
		FollowUpQuestions: []string{
			"What progress have you made?",
			"What worked well?",
			"What challenges did you encounter?",
			"What adjustments do we need to make?",
			"What have you learned about yourself?",
		},
		Indicators: []string{"progress_review", "adjustments", "learning", "accountability"},
	},
}

// Get returns the catalog entry for a competency.
func Get(c Competency) Response {
	return catalog[c]
}

// stageMapping associates each conversation stage with the competency a coach
// leads with in that stage.
var stageMapping = map[models.Stage]Competency{
	models.StageIntake:         EstablishingTrust,
	models.StageExploration:    ActiveListening,
	models.StageReflection:     CreatingAwareness,
	models.StageActionPlanning: DesigningActions,
	models.StageFollowUp:       ManagingProgress,
}

// ForStage returns the competency to apply for a given conversation stage.
// Unknown stages default to active listening.
func ForStage(stage models.Stage) Response {
	c, ok := stageMapping[stage]
	if !ok {
		c = ActiveListening
	}
	return catalog[c]
}

// Guidance returns the one-line competency guidance used when building LLM
// system prompts.
func Guidance(c Competency) string {
	return guidance[c]
}

var guidance = map[Competency]string{
	EstablishingTrust:   "Create a safe, supportive, and confidential coaching environment. Show genuine care and concern.",
	ActiveListening:     "Focus completely on what the client is saying. Listen for meaning, emotion, and what's not being said.",
	PowerfulQuestioning: "Ask questions that reveal underlying assumptions, create greater clarity, and move the client forward.",
	CreatingAwareness:   "Help the client identify patterns, gain insights, and see new perspectives.",
	DesigningActions:    "Partner with the client to create specific, measurable actions that move them toward their goals.",
	ManagingProgress:    "Hold the client accountable and celebrate their progress.",
}
