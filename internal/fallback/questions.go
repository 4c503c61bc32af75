package fallback

import (
	"strings"

	"github.com/growthloop/coachflow/internal/models"
)

// questionBank groups the follow-up question pool by coaching purpose. Category
// mix shifts with conversation depth so early turns explore and later turns
// push toward action.
var questionBank = map[string][]string{
	"exploration": {
		"What beliefs about yourself might be contributing to this situation?",
		"What thoughts go through your mind when facing these situations?",
		"What physical sensations do you notice when this happens?",
		"What stories do you tell yourself in these moments?",
		"What would your best friend say about this situation?",
		"What's underneath this challenge for you?",
		"What does this situation remind you of from your past?",
		"What are you learning about yourself through this?",
		"What assumptions might you be making here?",
		"What's the most surprising thing about this pattern?",
	},
	"patterns": {
		"What patterns do you notice about when this happens most?",
		"When you do feel confident and capable, what's different?",
		"What circumstances tend to trigger this response?",
		"How does this show up in other areas of your life?",
		"What would need to be different for you to feel more confident?",
		"What environments or situations bring out your best?",
		"What's worked for you in similar situations before?",
		"What would someone who knows you well say about your strengths?",
		"How has this pattern served you in the past?",
		"What's changed recently that might be affecting this?",
	},
	"resources": {
		"What resources or support systems do you currently have?",
		"What skills do you already possess that could help here?",
		"Who in your life believes in your capabilities?",
		"What past successes can you draw strength from?",
		"What would accessing your full potential look like?",
		"What support would be most helpful right now?",
		"What internal resources can you tap into?",
		"What would encourage you to take the next step?",
		"What would your wisest self advise you to do?",
		"What energizes you most about making this change?",
	},
	"action": {
		"What feels like the most natural first step for you?",
		"What small experiment could you try this week?",
		"What would make taking action feel easier?",
		"What obstacles do you anticipate, and how might you address them?",
		"What would accountability look like for you?",
		"What would motivate you to follow through?",
		"How could you break this down into smaller pieces?",
		"What would you need to believe about yourself to move forward?",
		"What would happen if you trusted yourself more?",
		"What commitment are you ready to make to yourself?",
	},
	"success": {
		"What would it feel like to have overcome this challenge?",
		"How would others notice the change in you?",
		"What would become possible if you solved this?",
		"What impact would this change have on your work/life?",
		"What legacy do you want to create around this?",
		"How will you celebrate when you make progress?",
		"What would your future self thank you for doing now?",
		"What excites you most about this potential change?",
		"What would confidence look like in your daily life?",
		"How would you know you're making real progress?",
	},
	"procrastination": {
		"What typically happens right before you decide to postpone a task?",
		"How long do tasks usually sit before you finally tackle them?",
		"What's the difference between tasks you complete immediately vs. those you postpone?",
	},
	"confidence": {
		"When was the last time you felt truly confident in your abilities?",
		"What would need to happen for you to trust yourself more with new challenges?",
		"How do you typically build confidence when learning something new?",
	},
	"new_tasks": {
		"What makes a task feel 'manageable' vs. 'overwhelming' to you?",
		"How do you usually approach learning something completely new?",
		"What support would help you feel more prepared for unfamiliar work?",
	},
}

// reserveQuestions is the fixed pool used once the bank is exhausted for a
// session. Using it resets the asked set so long sessions keep getting
// questions.
var reserveQuestions = []string{
	"What insight feels most important right now?",
	"What would you like to explore further?",
	"What's calling for your attention in this situation?",
}

// secondaryCategoryCut limits how many questions a secondary category contributes.
const secondaryCategoryCut = 3

func questionCategories(userLower string, depth int) (primary, secondary []string) {
	if strings.Contains(userLower, "procrastination") || strings.Contains(userLower, "procrastinate") {
		primary = append(primary, "procrastination")
	}
	if strings.Contains(userLower, "confidence") || strings.Contains(userLower, "doubt") {
		primary = append(primary, "confidence")
	}
	if strings.Contains(userLower, "new task") || strings.Contains(userLower, "unfamiliar") {
		primary = append(primary, "new_tasks")
	}

	switch {
	case depth <= 2:
		primary = append(primary, "exploration", "patterns")
		secondary = []string{"resources"}
	case depth <= 4:
		primary = append(primary, "patterns", "resources")
		secondary = []string{"exploration", "action"}
	default:
		primary = append(primary, "action", "success")
		secondary = []string{"resources", "patterns"}
	}
	return primary, secondary
}

// selectQuestions picks two follow-up questions never asked before in this
// session, preferring the active rule's questions, then the depth-appropriate
// bank categories. The tracker records everything handed out.
func (e *Engine) selectQuestions(userLower string, depth int, ruleQuestions []string, tracker *models.ResponseTracker) []string {
	candidates := append([]string(nil), ruleQuestions...)

	primary, secondary := questionCategories(userLower, depth)
	for _, cat := range primary {
		candidates = append(candidates, questionBank[cat]...)
	}
	for _, cat := range secondary {
		pool := questionBank[cat]
		if len(pool) > secondaryCategoryCut {
			pool = pool[:secondaryCategoryCut]
		}
		candidates = append(candidates, pool...)
	}

	available := filterNotIn(candidates, tracker.AskedQuestions)
	if len(available) < 2 {
		tracker.AskedQuestions = nil
		available = append([]string(nil), reserveQuestions...)
	}

	selected := e.sampleTwo(available)
	tracker.AskedQuestions = append(tracker.AskedQuestions, selected...)
	return selected
}

// sampleTwo picks up to two distinct entries uniformly.
func (e *Engine) sampleTwo(pool []string) []string {
	if len(pool) == 1 {
		return []string{pool[0]}
	}
	i := e.rng.IntN(len(pool))
	j := e.rng.IntN(len(pool) - 1)
	if j >= i {
		j++
	}
	return []string{pool[i], pool[j]}
}
