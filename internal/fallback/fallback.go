// Package fallback implements the rule-based coaching response engine used
// whenever the LLM is unavailable or fails.
//
// Responses are chosen from priority-ordered content rules (procrastination,
// fear, physical symptoms, goals, then depth-based defaults), with each rule
// escalating through mention tiers as a theme recurs across the recent
// conversation window. Variant pools plus bounded recently-used tracking keep
// consecutive turns from repeating; the question bank never repeats a question
// within a session until exhausted.
package fallback

import (
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/growthloop/coachflow/internal/analyzer"
	"github.com/growthloop/coachflow/internal/models"
)

const (
	// historyWindow is how many trailing history messages feed the
	// mention counters and theme tracking.
	historyWindow = 8
	// recentResponseWindow bounds the recently-used response memory.
	recentResponseWindow = 3
)

// Reply is a generated fallback coaching turn.
type Reply struct {
	Message   string
	Questions []string
}

// Engine selects fallback responses. It holds no per-session state; all
// anti-repetition tracking lives in the session's ResponseTracker so it
// persists with the session.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine with a randomly seeded generator.
func NewEngine() *Engine {
	return &Engine{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewEngineWithSeed creates an engine with a fixed seed for deterministic tests.
func NewEngineWithSeed(seed uint64) *Engine {
	return &Engine{rng: rand.New(rand.NewPCG(seed, seed))}
}

// conversationSignals summarizes the trailing history window. Mention
// counters and themes track only the user's own prior messages; coach replies
// echo rule text ("procrastination", "fear") and must not advance the tiers.
type conversationSignals struct {
	procrastinationMentions int
	fearMentions            int
	previousThemes          []string
	sharingInsights         bool
	showingGrowth           bool
}

var insightPhrases = []string{
	"when i started", "i learned", "i realized", "i think", "i believe",
	"eventually i", "i was able to", "has stayed with me", "i got better",
	"i discovered", "i found that", "looking back", "now i see",
}

var growthPhrases = []string{
	"got better", "improved", "eventually", "was able to", "learned",
	"overcame", "managed to", "succeeded", "figured out",
}

func analyzeSignals(userLower string, history []models.Message) conversationSignals {
	var sig conversationSignals

	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	for _, entry := range window {
		if entry.Role != models.RoleUser {
			continue
		}
		content := strings.ToLower(entry.Content)
		if strings.Contains(content, "fear") || strings.Contains(content, "scared") ||
			strings.Contains(content, "afraid") || strings.Contains(content, "worried") {
			sig.previousThemes = appendUnique(sig.previousThemes, "fear")
			sig.fearMentions++
		}
		if strings.Contains(content, "stress") || strings.Contains(content, "anxiety") || strings.Contains(content, "anxious") {
			sig.previousThemes = appendUnique(sig.previousThemes, "stress")
		}
		if strings.Contains(content, "confidence") {
			sig.previousThemes = appendUnique(sig.previousThemes, "confidence")
		}
		if strings.Contains(content, "procrastination") || strings.Contains(content, "procrastinate") {
			sig.procrastinationMentions++
		}
	}

	sig.sharingInsights = containsAny(userLower, insightPhrases)
	sig.showingGrowth = containsAny(userLower, growthPhrases)
	return sig
}

// Respond generates a coaching reply for one turn without the LLM. The
// session's tracker is mutated to record the selected response and questions.
func (e *Engine) Respond(userCtx analyzer.UserContext, userMessage string, state *models.ConversationState) Reply {
	userLower := strings.ToLower(userCtx.CorrectedText)
	if userLower == "" {
		userLower = strings.ToLower(userMessage)
	}
	depth := len(state.ConversationHistory)

	// The engine appends the current user message to history before asking for
	// a reply; it must not count as a prior mention of its own themes.
	prior := state.ConversationHistory
	if n := len(prior); n > 0 && prior[n-1].Role == models.RoleUser && prior[n-1].Content == userMessage {
		prior = prior[:n-1]
	}
	sig := analyzeSignals(userLower, prior)

	rule := e.selectRule(userLower, depth, sig, state.CurrentStage)
	message := e.pickUnused(rule.pool, &state.Tracker)
	questions := e.selectQuestions(userLower, depth, rule.questions, &state.Tracker)

	slog.Debug("fallback.Respond generated reply", "sessionID", state.SessionID,
		"rule", rule.name, "depth", depth,
		"procrastinationMentions", sig.procrastinationMentions, "fearMentions", sig.fearMentions)

	return Reply{Message: message, Questions: questions}
}

// rule is a resolved content rule: a variant pool plus preferred questions.
type rule struct {
	name      string
	pool      []string
	questions []string
}

var procrastinationKeywords = []string{"procrastination", "procrastinate", "putting off", "delay", "avoiding", "struggle"}
var fearKeywords = []string{"fear", "scared", "afraid", "failure", "fail", "worried"}
var physicalKeywords = []string{"body", "shiver", "sweat", "profusely", "physical", "symptoms", "jittery", "run away"}
var goalKeywords = []string{"want to", "complete tasks", "on time", "without procrastination", "reputation", "opportunities"}
var actionReadyPhrases = []string{"take the first step", "overcome this fear"}

// selectRule applies content rules in priority order. Stage-specific pools
// take over once the conversation reaches action planning or follow-up.
func (e *Engine) selectRule(userLower string, depth int, sig conversationSignals, stage models.Stage) rule {
	switch stage {
	case models.StageActionPlanning:
		return actionPlanningRule(userLower)
	case models.StageFollowUp:
		return followUpRule(userLower)
	}

	switch {
	case containsAny(userLower, procrastinationKeywords):
		return procrastinationRule(sig.procrastinationMentions)
	case containsAny(userLower, fearKeywords):
		return fearRule(userLower, sig)
	case containsAny(userLower, physicalKeywords):
		return physicalSymptomsRule()
	case containsAny(userLower, goalKeywords):
		return goalsRule(depth)
	default:
		return defaultRule(depth, sig)
	}
}

func procrastinationRule(mentions int) rule {
	switch {
	case mentions == 0:
		return rule{
			name: "procrastination_first",
			pool: []string{
				"I hear that procrastination is showing up as a significant challenge for you. That takes courage to name directly. What do you notice about when procrastination tends to happen most for you?",
				"I hear that procrastination is creating real challenges for you. Can you help me understand what procrastination looks like in your day-to-day work?",
				"Procrastination can feel overwhelming when it becomes a pattern. What types of tasks do you find yourself putting off most often?",
			},
			questions: []string{
				"What tasks do you find yourself putting off most often?",
				"What might be underneath the procrastination - fear, perfectionism, or something else?",
			},
		}
	case mentions == 1:
		return rule{
			name: "procrastination_second",
			pool: []string{
				"You've mentioned procrastination again, which tells me it's really central to what you're experiencing. Let's explore the pattern more deeply. What happens right before you start to procrastinate?",
				"I can hear that procrastination feels like a major barrier for you. What happens in the moments just before you decide to postpone a task?",
			},
			questions: []string{
				"What thoughts or feelings show up just before you avoid a task?",
				"If procrastination wasn't an option, what would you do instead?",
			},
		}
	default:
		return rule{
			name: "procrastination_action",
			pool: []string{
				"I'm noticing procrastination keeps coming up in our conversation. This suggests we're touching on something really important. What would be one small step you could take today to break this pattern?",
				"Procrastination has been a steady thread in what you're sharing, which tells me it matters deeply. What's one small commitment you could make to yourself this week to interrupt the cycle?",
			},
			questions: []string{
				"What's the smallest possible action you could take on a challenging task right now?",
				"What would success look like if you completed just one difficult task this week?",
			},
		}
	}
}

func fearRule(userLower string, sig conversationSignals) rule {
	switch {
	case sig.fearMentions == 0:
		return rule{
			name: "fear_first",
			pool: []string{
				"I can hear that fear is playing a significant role in your experience. Fear of failure is incredibly common, and it takes real courage to name it. What do you think this fear is trying to protect you from?",
				"Fear of failure shows up for so many people, and naming it the way you just did takes courage. What do you imagine this fear is guarding you against?",
			},
			questions: []string{
				"When you imagine completing the task successfully, what comes up for you?",
				"What would it mean about you if you did fail at this task?",
			},
		}
	case sig.fearMentions == 1 && !sig.sharingInsights:
		return rule{
			name: "fear_second",
			pool: []string{
				"Fear seems to be a central theme in what you're experiencing. I'm curious - when did you first learn to be afraid of failing? What message did you receive about making mistakes?",
				"Fear keeps surfacing as we talk. When do you first remember learning that failing was something to be afraid of?",
			},
			questions: []string{
				"What would you tell a good friend who was experiencing this same fear?",
				"What evidence do you have that contradicts this fear?",
			},
		}
	case sig.sharingInsights && sig.showingGrowth:
		return rule{
			name: "fear_growth",
			pool: []string{
				"Thank you for sharing that personal experience of working through those early roadblocks. It sounds like you've actually proven to yourself that you can push through challenges and get better. What do you think helped you persist back then?",
				"What you just shared is important - you've already lived through getting stuck and coming out stronger. What made the difference when you worked through those earlier challenges?",
			},
			questions: []string{
				"How might you apply what helped you improve back then to your current challenges?",
				"What would it look like to trust your ability to eventually get better at new complex tasks?",
			},
		}
	case sig.sharingInsights:
		return rule{
			name: "fear_insight",
			pool: []string{
				"I appreciate you sharing the origin of this fear - that moment when early roadblocks first triggered the fear of failing. It takes real self-awareness to connect current patterns to past experiences. What do you notice about how this early fear might be influencing you now?",
				"Connecting today's pattern back to where the fear began takes real self-awareness. How do you see that early experience shaping the way you approach difficult work now?",
			},
			questions: []string{
				"How has this fear served you over the years, and how might it be limiting you now?",
				"What would you need to feel more confident when facing new complex challenges?",
			},
		}
	case containsAny(userLower, actionReadyPhrases):
		return rule{
			name: "fear_ready",
			pool: []string{
				"I can hear your readiness to move beyond this fear pattern. That's a powerful shift from feeling stuck to wanting action. What would taking just one small step look like for you?",
				"Something just shifted - you've moved from describing the fear to wanting to act on it. What's the smallest first move that feels possible?",
			},
			questions: []string{
				"What's the smallest possible first step you could take on a complex task?",
				"What support or resources would make that first step feel more manageable?",
			},
		}
	default:
		return rule{
			name: "fear_deep",
			pool: []string{
				"I'm hearing how deeply this fear has influenced your relationship with challenging tasks. Given everything you've shared about where this fear comes from, what feels most important to address right now?",
				"This fear has clearly shaped how you approach demanding work for a long time. Of everything we've touched on, what feels most important to work with right now?",
			},
			questions: []string{
				"What would be different if you could approach complex tasks with curiosity instead of fear?",
				"What's one way you could start building evidence that you can handle challenging work?",
			},
		}
	}
}

func physicalSymptomsRule() rule {
	return rule{
		name: "physical_symptoms",
		pool: []string{
			"I can hear how intensely your body is responding to these challenging situations. Your body is giving you important information about your stress response. It sounds like your nervous system is trying to protect you. What helps you feel most grounded when you notice these physical reactions?",
			"Your body is clearly carrying a lot of this stress - that's important information about how intense these situations feel. What helps you come back to feeling grounded when those reactions start?",
		},
		questions: []string{
			"What would it be like to approach a challenging task when your body feels calm and ready?",
			"What strategies have helped you manage anxiety in other areas of your life?",
		},
	}
}

func goalsRule(depth int) rule {
	if depth >= 4 {
		return rule{
			name: "goals_concrete",
			pool: []string{
				"I hear how important this is to you - completing tasks on time and protecting your reputation. Given everything we've discussed about fear and procrastination, what would be one specific strategy you could try this week?",
				"Delivering on time clearly matters to you, and so does how others see your work. Drawing on everything we've explored, what's one concrete strategy you could test this week?",
			},
			questions: []string{
				"What would completing tasks on time give you that you don't have now?",
				"What's one task you've been putting off that you could commit to finishing this week?",
			},
		}
	}
	return rule{
		name: "goals_vision",
		pool: []string{
			"That's a powerful goal - completing tasks on time without procrastination. I can hear how much this matters to you, especially when you mention reputation and missed opportunities. What would change in your life if you achieved this?",
			"Finishing what you start, on time - that's a meaningful goal, and I can hear what's at stake for you in it. What would be different in your life if you got there?",
		},
		questions: []string{
			"What would be different about how you feel about yourself?",
			"What opportunities might open up for you?",
		},
	}
}

func defaultRule(depth int, sig conversationSignals) rule {
	switch {
	case sig.sharingInsights && depth >= 3:
		return rule{
			name: "default_insight",
			pool: []string{
				"I can hear the self-reflection and awareness in what you're sharing. You're making connections between past experiences and current patterns. What insights are becoming clearer for you through our conversation?",
				"There's real reflection in what you just said - you're linking what happened before to what's happening now. What's coming into focus for you as we talk?",
			},
			questions: []string{
				"What feels most important to take away from what we've explored?",
				"How might you use these insights to approach challenges differently?",
			},
		}
	case depth <= 2:
		return rule{
			name: "default_early",
			pool: []string{
				"Thank you for sharing that with me. I can sense there's a lot beneath the surface of what you're describing. What feels most important for us to explore together right now?",
				"I appreciate you opening up about this. What's the most important thing you'd like me to understand about your experience?",
				"That gives me a good sense of what you're dealing with. What feels like the biggest challenge in this situation?",
			},
			questions: []string{
				"What would you most like to understand about this situation?",
				"If you could change one thing about how you handle challenging tasks, what would it be?",
			},
		}
	default:
		themeText := ""
		if len(sig.previousThemes) > 0 {
			themes := sig.previousThemes
			if len(themes) > 2 {
				themes = themes[:2]
			}
			themeText = " building on what we've discussed about " + strings.Join(themes, ", ")
		}
		return rule{
			name: "default_deep",
			pool: []string{
				"I can hear the depth of what you're sharing" + themeText + ". What insight or awareness is emerging for you as we talk about this?",
				"There are clearly several layers to what you're describing" + themeText + ". What stands out most to you as we explore this together?",
			},
			questions: []string{
				"What patterns are becoming clearer to you?",
				"What would you like to take away from our conversation today?",
			},
		}
	}
}

func actionPlanningRule(userLower string) rule {
	switch {
	case containsAny(userLower, []string{"ready", "action plan", "want to", "commit", "yes"}):
		return rule{
			name: "action_ready",
			pool: []string{
				"That's wonderful to hear your readiness! What specific action feels most important to focus on first?",
				"I can sense your commitment to moving forward. What would be the most meaningful first step you could take?",
				"Your willingness to take action is inspiring. What concrete step could you commit to this week?",
				"I appreciate your readiness to create change. What action would have the biggest impact on your situation?",
			},
			questions: actionPlanningQuestions,
		}
	case containsAny(userLower, []string{"break down", "smaller", "steps", "plan"}):
		return rule{
			name: "action_breakdown",
			pool: []string{
				"Breaking things down into smaller steps is such a powerful strategy! How might you structure these smaller tasks?",
				"That approach of breaking complex tasks down shows real insight. What would be your first small step?",
				"I love how you're thinking about manageable pieces. What's the smallest step you could take to get started?",
				"Your plan to break things down is excellent. How will you organize these smaller tasks to maintain momentum?",
			},
			questions: actionPlanningQuestions,
		}
	case containsAny(userLower, []string{"fear", "scared", "overcome", "challenge"}):
		return rule{
			name: "action_fear",
			pool: []string{
				"Moving through fear takes real courage. What support would help you take that first brave step?",
				"I hear your determination to overcome these challenges. What would make the first action feel more manageable?",
				"Your awareness of fear is the first step to moving through it. What would help you feel more prepared?",
				"It takes strength to face fears head-on. What resources could you tap into to support this change?",
			},
			questions: actionPlanningQuestions,
		}
	default:
		return rule{
			name: "action_general",
			pool: []string{
				"Let's focus on turning your insights into action. What specific change would make the biggest difference?",
				"I can see you're ready to move forward. What concrete step feels most important to commit to?",
				"Your self-awareness gives you a strong foundation for action. What would you like to focus on implementing?",
				"What action could you take that would start to shift the patterns we've been discussing?",
				"How can we translate your insights into specific, actionable steps?",
				"What would be the most meaningful action you could commit to right now?",
			},
			questions: actionPlanningQuestions,
		}
	}
}

var actionPlanningQuestions = []string{
	"What specific action feels most important right now?",
	"What support do you need to make this happen?",
}

func followUpRule(userLower string) rule {
	switch {
	case containsAny(userLower, []string{"progress", "better", "working", "success"}):
		return rule{
			name: "followup_progress",
			pool: []string{
				"That's fantastic progress! What has been the most surprising part of your journey so far?",
				"I'm thrilled to hear about your success! What's been the key to making this progress?",
				"Your progress is inspiring! What difference are you noticing in how you approach challenges now?",
				"It's wonderful to see your hard work paying off. What would you like to build on next?",
			},
			questions: followUpQuestions,
		}
	case containsAny(userLower, []string{"struggle", "difficult", "challenge", "hard"}):
		return rule{
			name: "followup_struggle",
			pool: []string{
				"Thank you for being honest about the challenges. What support would be most helpful right now?",
				"I appreciate you sharing what's been difficult. What adjustments might help you move forward?",
				"It takes courage to acknowledge when things are tough. What have you learned about yourself through these challenges?",
				"Struggles are part of the growth process. What strengths can you draw on to navigate this?",
			},
			questions: followUpQuestions,
		}
	case containsAny(userLower, []string{"maintain", "continue", "momentum", "keep going"}):
		return rule{
			name: "followup_momentum",
			pool: []string{
				"Maintaining momentum is so important! What systems are helping you stay consistent?",
				"I love your focus on sustainability. What's working best to keep you motivated?",
				"Your commitment to continuous progress is admirable. How are you celebrating your wins along the way?",
				"Consistency is key to lasting change. What habits are you building to support your growth?",
			},
			questions: followUpQuestions,
		}
	default:
		return rule{
			name: "followup_general",
			pool: []string{
				"It's great to reconnect and hear about your journey. What's been most significant for you since we last talked?",
				"I'm curious to learn about your experience. What insights have emerged as you've been implementing changes?",
				"Thank you for sharing your progress. What feels most important to focus on as you continue growing?",
				"I appreciate you taking time to reflect on your growth. What would be most helpful to explore today?",
				"Your continued commitment to growth is inspiring. What's calling for your attention right now?",
			},
			questions: followUpQuestions,
		}
	}
}

var followUpQuestions = []string{
	"What progress have you made since our last conversation?",
	"What adjustments do you need to make to your approach?",
}

// pickUnused selects a pool entry not in the recently-used window. When the
// whole pool has been used recently the window resets and any entry may recur.
func (e *Engine) pickUnused(pool []string, tracker *models.ResponseTracker) string {
	available := filterNotIn(pool, tracker.RecentResponses)
	if len(available) == 0 {
		tracker.RecentResponses = nil
		available = pool
	}

	choice := available[e.rng.IntN(len(available))]
	tracker.RecentResponses = append(tracker.RecentResponses, choice)
	if len(tracker.RecentResponses) > recentResponseWindow {
		tracker.RecentResponses = tracker.RecentResponses[len(tracker.RecentResponses)-recentResponseWindow:]
	}
	return choice
}

func filterNotIn(pool, used []string) []string {
	var out []string
	for _, p := range pool {
		if !stringIn(p, used) {
			out = append(out, p)
		}
	}
	return out
}

func stringIn(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, item string) []string {
	if stringIn(item, list) {
		return list
	}
	return append(list, item)
}
