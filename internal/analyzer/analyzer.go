// Package analyzer provides lightweight context analysis for coaching input.
//
// It corrects common misspellings, scores sentiment, and extracts emotions,
// challenges, strengths, intent, confidence, readiness, and themes from a user
// message using fixed keyword tables. Analysis is deterministic and never
// fails; empty input yields a neutral context.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/growthloop/coachflow/internal/models"
)

// Confidence levels reported in UserContext.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Readiness levels reported in UserContext.
const (
	ReadinessReady     = "ready"
	ReadinessExploring = "exploring"
	ReadinessResistant = "resistant"
)

// Intent values reported in UserContext, in priority order.
const (
	IntentSeekingUnderstanding = "seeking_understanding"
	IntentSeekingSolutions     = "seeking_solutions"
	IntentReadyForAction       = "ready_for_action"
	IntentSharingInformation   = "sharing_information"
	IntentExpressingFeelings   = "expressing_feelings"
	IntentExploring            = "exploring"
)

const (
	maxEmotions = 3
	maxThemes   = 3
)

// UserContext represents the understood context from one user message.
type UserContext struct {
	CorrectedText       string   `json:"corrected_text"`
	PrimaryEmotions     []string `json:"primary_emotions"`
	ChallengesMentioned []string `json:"challenges_mentioned"`
	StrengthsMentioned  []string `json:"strengths_mentioned"`
	Intent              string   `json:"intent"`
	ConfidenceLevel     string   `json:"confidence_level"`
	ReadinessForAction  string   `json:"readiness_for_action"`
	KeyThemes           []string `json:"key_themes"`
	SentimentScore      float64  `json:"sentiment_score"` // clamped to [-1, 1]
}

// correction is a whole-word, case-insensitive spelling fix.
type correction struct {
	re      *regexp.Regexp
	replace string
}

var spellingCorrections = buildCorrections([][2]string{
	{"procastination", "procrastination"},
	{"procastinate", "procrastinate"},
	{"procastinating", "procrastinating"},
	{"sucessfully", "successfully"},
	{"sucessful", "successful"},
	{"chalenge", "challenge"},
	{"chalenges", "challenges"},
	{"bigest", "biggest"},
	{"strenghts", "strengths"},
	{"strenght", "strength"},
	{"confidance", "confidence"},
	{"overwheled", "overwhelmed"},
	{"perfomance", "performance"},
	{"experiance", "experience"},
	{"responsability", "responsibility"},
})

func buildCorrections(pairs [][2]string) []correction {
	out := make([]correction, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, correction{
			re:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p[0]) + `\b`),
			replace: p[1],
		})
	}
	return out
}

// keywordGroup is an ordered label with its trigger keywords. Matching is by
// substring on the lowercased text, so "procrastin" also matches
// "procrastinating".
type keywordGroup struct {
	label    string
	keywords []string
}

var emotionPatterns = []keywordGroup{
	{"anxiety", []string{"scared", "afraid", "anxious", "worried", "nervous", "jittery", "fearful", "stressed", "terrified"}},
	{"doubt", []string{"doubt", "uncertain", "unsure", "questioning", "hesitant", "skeptical", "confused"}},
	{"frustration", []string{"frustrated", "annoyed", "irritated", "stuck", "blocked", "angry", "upset"}},
	{"confidence", []string{"confident", "sure", "certain", "capable", "skilled", "competent", "able"}},
	{"motivation", []string{"motivated", "driven", "determined", "committed", "ready", "eager", "excited"}},
}

var difficultyWords = []string{"can't", "unable", "difficult", "hard", "struggle", "challenging"}
var motivationPhrases = []string{"want to", "need to", "have to", "should", "ready to"}

var challengePatterns = []keywordGroup{
	{"procrastination", []string{"procrastin", "delay", "postpone", "avoid", "put off", "stall", "defer"}},
	{"confidence_issues", []string{"self-doubt", "imposter", "not good enough", "inadequate", "insecure", "doubt myself"}},
	{"new_tasks", []string{"new task", "unfamiliar", "unknown", "never done", "first time", "learning", "new to"}},
	{"overwhelm", []string{"overwhelm", "too much", "overload", "stress", "burden", "pressure", "swamped"}},
	{"perfectionism", []string{"perfect", "flawless", "exactly right", "mistake", "failure", "wrong", "error"}},
}

var strengthPatterns = []keywordGroup{
	{"execution", []string{"execution", "deliver", "complete", "finish", "accomplish", "achieve", "get things done"}},
	{"analytical", []string{"analyze", "think", "logical", "systematic", "methodical", "structured", "organized"}},
	{"leadership", []string{"lead", "guide", "manage", "influence", "inspire", "motivate", "direct"}},
	{"creativity", []string{"creative", "innovative", "imaginative", "original", "artistic", "inventive"}},
	{"communication", []string{"communicate", "explain", "present", "articulate", "express", "speak", "write"}},
}

var selfAwarenessPhrases = []string{"good at", "excel at", "strength", "capable of", "skilled in"}

var positiveWords = []string{"good", "great", "excellent", "confident", "capable", "ready", "excited", "motivated", "strong", "successful"}
var negativeWords = []string{"bad", "terrible", "awful", "scared", "worried", "anxious", "frustrated", "stuck", "failed", "overwhelmed"}

// Intent keyword groups, checked in priority order.
var intentGroups = []keywordGroup{
	{IntentSeekingUnderstanding, []string{"understand", "why", "reason", "cause", "behind", "what drives", "what makes"}},
	{IntentSeekingSolutions, []string{"how", "what can i do", "help me", "solution", "fix", "resolve", "overcome"}},
	{IntentReadyForAction, []string{"want to change", "ready to", "commit", "action", "will do", "plan to"}},
	{IntentSharingInformation, []string{"explain", "describe", "tell you", "share", "let me tell you"}},
	{IntentExpressingFeelings, []string{"feel", "think", "believe", "sense", "experience"}},
}

var highConfidenceWords = []string{"confident", "sure", "capable", "skilled", "good at", "excel", "strong"}
var lowConfidenceWords = []string{"doubt", "unsure", "scared", "anxious", "worried", "uncertain", "insecure"}

var readyWords = []string{"ready", "want to", "will", "commit", "action", "do", "change", "start", "begin"}
var resistantWords = []string{"but", "however", "difficult", "can't", "unable", "not sure", "maybe"}

// Analyze examines one user message and returns the understood context.
// The conversation history parameter is accepted for future refinement and is
// currently unused, matching per-message analysis semantics.
func Analyze(input string, history []models.Message) UserContext {
	_ = history

	corrected := CorrectSpelling(input)
	lower := strings.ToLower(corrected)

	emotions := extractEmotions(lower)
	challenges := matchGroups(lower, challengePatterns)
	strengths := extractStrengths(lower)
	intent := determineIntent(lower)

	return UserContext{
		CorrectedText:       corrected,
		PrimaryEmotions:     emotions,
		ChallengesMentioned: challenges,
		StrengthsMentioned:  strengths,
		Intent:              intent,
		ConfidenceLevel:     assessConfidence(lower, emotions),
		ReadinessForAction:  assessReadiness(lower, intent),
		KeyThemes:           extractThemes(challenges, strengths, emotions),
		SentimentScore:      sentimentScore(corrected),
	}
}

// CorrectSpelling fixes common coaching-term misspellings. Whole words only,
// case-insensitive, and idempotent: correcting corrected text is a no-op.
func CorrectSpelling(text string) string {
	corrected := text
	for _, c := range spellingCorrections {
		corrected = c.re.ReplaceAllString(corrected, c.replace)
	}
	return corrected
}

// sentimentScore computes a word-list sentiment in [-1, 1]. Empty text scores 0.
func sentimentScore(text string) float64 {
	lower := strings.ToLower(text)
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	positive := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positive++
		}
	}
	negative := 0
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negative++
		}
	}

	score := float64(positive-negative) / float64(len(words)) * 2
	return clamp(score, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func matchGroups(lower string, groups []keywordGroup) []string {
	var matched []string
	for _, g := range groups {
		if containsAny(lower, g.keywords) {
			matched = append(matched, g.label)
		}
	}
	return matched
}

func extractEmotions(lower string) []string {
	emotions := matchGroups(lower, emotionPatterns)

	if containsAny(lower, difficultyWords) && !contains(emotions, "difficulty") {
		emotions = append(emotions, "difficulty")
	}
	if containsAny(lower, motivationPhrases) && !contains(emotions, "motivation") {
		emotions = append(emotions, "motivation")
	}

	if len(emotions) > maxEmotions {
		emotions = emotions[:maxEmotions]
	}
	return emotions
}

func extractStrengths(lower string) []string {
	strengths := matchGroups(lower, strengthPatterns)
	if containsAny(lower, selfAwarenessPhrases) && !contains(strengths, "self_awareness") {
		strengths = append(strengths, "self_awareness")
	}
	return strengths
}

func determineIntent(lower string) string {
	for _, g := range intentGroups {
		if containsAny(lower, g.keywords) {
			return g.label
		}
	}
	return IntentExploring
}

func assessConfidence(lower string, emotions []string) string {
	high := 0
	for _, w := range highConfidenceWords {
		if strings.Contains(lower, w) {
			high++
		}
	}
	low := 0
	for _, w := range lowConfidenceWords {
		if strings.Contains(lower, w) {
			low++
		}
	}

	anxious := contains(emotions, "anxiety") || contains(emotions, "doubt") || contains(emotions, "difficulty")
	switch {
	case anxious || low > high:
		return ConfidenceLow
	case contains(emotions, "confidence") || high > low:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}

func assessReadiness(lower string, intent string) string {
	ready := 0
	for _, w := range readyWords {
		if strings.Contains(lower, w) {
			ready++
		}
	}
	resistant := 0
	for _, w := range resistantWords {
		if strings.Contains(lower, w) {
			resistant++
		}
	}

	switch {
	case intent == IntentReadyForAction || ready > resistant:
		return ReadinessReady
	case resistant > ready:
		return ReadinessResistant
	default:
		return ReadinessExploring
	}
}

// extractThemes derives overarching themes from challenge/strength/emotion
// combinations, bounded to the top three in rule order.
func extractThemes(challenges, strengths, emotions []string) []string {
	var themes []string

	anxietyOrDoubt := contains(emotions, "anxiety") || contains(emotions, "doubt")
	if contains(challenges, "procrastination") && anxietyOrDoubt {
		themes = append(themes, "fear_based_avoidance")
	}
	if contains(challenges, "new_tasks") && contains(emotions, "doubt") {
		themes = append(themes, "comfort_zone_resistance")
	}
	if contains(challenges, "confidence_issues") || anxietyOrDoubt {
		themes = append(themes, "self_worth_concerns")
	}
	if (contains(strengths, "execution") || contains(strengths, "analytical")) && len(challenges) > 0 {
		themes = append(themes, "capability_awareness_gap")
	}
	if contains(emotions, "anxiety") || contains(emotions, "doubt") || contains(emotions, "frustration") || contains(emotions, "difficulty") {
		themes = append(themes, "emotional_barriers")
	}
	if len(challenges) > 0 {
		themes = append(themes, "growth_opportunities")
	}

	if len(themes) > maxThemes {
		themes = themes[:maxThemes]
	}
	return themes
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

// PrimaryEmotion returns the leading detected emotion for envelope reporting,
// defaulting to "engaged" when nothing was detected.
func (c UserContext) PrimaryEmotion() string {
	if len(c.PrimaryEmotions) > 0 {
		return c.PrimaryEmotions[0]
	}
	return "engaged"
}

// Intensity maps the sentiment magnitude onto a reportable [0, 1] intensity
// with a floor that keeps the envelope field meaningful for neutral turns.
func (c UserContext) Intensity() float64 {
	v := c.SentimentScore
	if v < 0 {
		v = -v
	}
	if v < 0.7 {
		return 0.7
	}
	return v
}
