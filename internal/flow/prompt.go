package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/growthloop/coachflow/internal/competency"
	"github.com/growthloop/coachflow/internal/models"
)

// stageGuidance maps each stage to the focus instruction injected into the
// system prompt.
var stageGuidance = map[models.Stage]string{
	models.StageIntake:         "Focus on understanding what the client wants to work on. Create safety and establish the coaching relationship.",
	models.StageExploration:    "Help the client explore the situation deeply. Listen for patterns, emotions, and underlying beliefs.",
	models.StageReflection:     "Help the client gain insights and awareness. Point out patterns and help them see new perspectives.",
	models.StageActionPlanning: "Partner with the client to create specific, actionable steps. Focus on commitment and accountability.",
	models.StageFollowUp:       "Review progress, celebrate successes, and adjust plans as needed.",
}

func guidanceForStage(stage models.Stage) string {
	if g, ok := stageGuidance[stage]; ok {
		return g
	}
	return "Focus on the client's needs and help them move forward."
}

// systemPrompt builds the coaching system prompt for one completion call.
func systemPrompt(state *models.ConversationState, emotionalState string) string {
	comp := competency.ForStage(state.CurrentStage)
	topicName := "general coaching"
	if t, ok := LookupTopic(state.Topic); ok {
		topicName = t.Name
	}

	return fmt.Sprintf(`You are a professional ICF-certified executive coach conducting a coaching session.

CURRENT CONTEXT:
- Topic: %s
- Conversation Stage: %s
- ICF Competency Focus: %s
- User's Emotional State: %s

ICF COMPETENCY GUIDANCE:
%s

COACHING APPROACH:
- Use powerful, open-ended questions that create awareness
- Listen for underlying beliefs, patterns, and assumptions
- Create a safe, non-judgmental space
- Help the client discover their own insights rather than giving advice
- Be curious, empathetic, and present
- Keep responses concise but meaningful (2-3 sentences max)
- End with a thoughtful question that moves the conversation forward

STAGE-SPECIFIC FOCUS:
%s

Respond as a skilled coach would - with genuine curiosity, empathy, and powerful questions that help the client gain clarity and move forward.`,
		topicName, state.CurrentStage, comp.Competency, emotionalState,
		competency.Guidance(comp.Competency), guidanceForStage(state.CurrentStage))
}

// questionPattern matches one question: everything since the previous sentence
// end (or line break) up to a question mark.
var questionPattern = regexp.MustCompile(`[^.!?\n]*\?`)

// minExtractedQuestionLen filters out fragments and throwaway questions.
const minExtractedQuestionLen = 15

// extractQuestions pulls coaching questions out of generated text. When the
// text contains no usable questions, content-matched defaults keep the
// envelope's questions field populated.
func extractQuestions(text string) []string {
	var questions []string
	for _, q := range questionPattern.FindAllString(text, -1) {
		q = strings.TrimSpace(q)
		q = strings.TrimPrefix(q, "- ")
		q = strings.TrimSpace(q)
		if len(q) > minExtractedQuestionLen && !strings.HasPrefix(strings.ToLower(q), "what do you think") {
			questions = append(questions, q)
		}
	}
	if len(questions) > 2 {
		questions = questions[len(questions)-2:]
	}
	if len(questions) > 0 {
		return questions
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "fear") || strings.Contains(lower, "afraid"):
		return []string{
			"What would it look like to approach this with curiosity instead of fear?",
			"What evidence do you have that contradicts this fear?",
		}
	case strings.Contains(lower, "procrastination") || strings.Contains(lower, "delay"):
		return []string{
			"What would help you take the first step on a challenging task?",
			"What patterns do you notice about when procrastination shows up?",
		}
	default:
		return []string{
			"What patterns are you noticing as we explore this?",
			"What feels most important for you to understand about this situation?",
		}
	}
}
