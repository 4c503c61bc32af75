package flow

import (
	"strings"

	"github.com/growthloop/coachflow/internal/models"
)

// Thresholds are the conversation depths at which stages advance even without
// content signals. Depth counts every history message, both roles.
type Thresholds struct {
	Reflection     int
	ActionPlanning int
	FollowUp       int
}

// DefaultThresholds returns the standard stage progression depths.
func DefaultThresholds() Thresholds {
	return Thresholds{Reflection: 5, ActionPlanning: 7, FollowUp: 9}
}

var insightIndicators = []string{
	"i notice", "i realize", "i see that", "i understand", "it's because",
	"the pattern", "what drives this", "i think it's", "maybe it's",
	"i'm starting to see", "now i understand", "it seems like", "i believe",
}

var actionIndicators = []string{
	"i want to", "i need to", "i should", "what should i do", "how do i",
	"what's the next step", "i'm ready", "i want to change", "help me",
	"what can i do", "i'd like to try", "how can i", "that's exactly why",
	"yes", "absolutely", "let's do it", "ready to create",
	"action plan", "let's create", "ready for action", "move forward",
	"take action", "next step",
}

var commitmentIndicators = []string{
	"i will", "i'll try", "i commit", "i'm going to", "my goal is",
	"i'll start", "i'll work on", "i'll practice", "i'll focus on",
	"as a first step", "if i take", "my plan is",
	"i'll implement", "i'll apply", "i'll begin", "starting this week",
	"my action", "i plan to", "i intend to", "i want to pick up",
	"stretch project", "i want to take on",
}

// suggestNextStage advances the stage when the user's message signals insight,
// readiness, or commitment, or when the conversation is deep enough that the
// stage has run its course. Stages only move forward.
func suggestNextStage(current models.Stage, userMessage string, depth int, th Thresholds) models.Stage {
	userLower := strings.ToLower(userMessage)

	switch current {
	case models.StageExploration:
		if containsAnyIndicator(userLower, insightIndicators) || depth >= th.Reflection {
			return models.StageReflection
		}
	case models.StageReflection:
		if containsAnyIndicator(userLower, actionIndicators) || depth >= th.ActionPlanning {
			return models.StageActionPlanning
		}
	case models.StageActionPlanning:
		if containsAnyIndicator(userLower, commitmentIndicators) || depth >= th.FollowUp {
			return models.StageFollowUp
		}
	}
	return current
}

func containsAnyIndicator(text string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}
