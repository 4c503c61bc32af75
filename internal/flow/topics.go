package flow

// Topic is one of the coaching topics offered during intake.
type Topic struct {
	Key              string   `json:"key"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	InitialQuestions []string `json:"initial_questions"`
	ExplorationAreas []string `json:"exploration_areas"`

	// intro and introQuestions form the scripted reply to selecting this topic.
	intro          string
	introQuestions []string
}

// topicOrder fixes the presentation order of available topics.
var topicOrder = []string{
	"performance_improvement",
	"career_development",
	"work_life_balance",
	"leadership_growth",
}

var topics = map[string]Topic{
	"performance_improvement": {
		Key:         "performance_improvement",
		Name:        "Performance Improvement",
		Description: "Enhancing work performance and productivity",
		InitialQuestions: []string{
			"What specific aspect of your performance would you like to improve?",
			"What's currently working well in your performance?",
			"What challenges are you facing that impact your performance?",
		},
		ExplorationAreas: []string{"skills", "motivation", "resources", "feedback", "goals"},
		intro:            "Great! Let's explore Performance Improvement together. I understand you want to enhance your work performance and productivity. What specific aspects of your performance feel most important to address right now?",
		introQuestions: []string{
			"What specific aspect of your performance would you like to improve?",
			"What's currently working well in your performance?",
		},
	},
	"career_development": {
		Key:         "career_development",
		Name:        "Career Development",
		Description: "Planning and advancing career growth",
		InitialQuestions: []string{
			"Where do you see yourself in your career journey?",
			"What career aspirations are most important to you?",
			"What's holding you back from your next career step?",
		},
		ExplorationAreas: []string{"aspirations", "skills_gap", "networking", "opportunities", "barriers"},
		intro:            "Excellent! Career Development is such an important area. I'm excited to explore your career aspirations and help you identify the next steps.",
		introQuestions: []string{
			"Where do you see yourself in your career journey?",
			"What career aspirations are most important to you?",
		},
	},
	"work_life_balance": {
		Key:         "work_life_balance",
		Name:        "Work-Life Balance",
		Description: "Achieving harmony between professional and personal life",
		InitialQuestions: []string{
			"How would you describe your current work-life balance?",
			"What areas of your life feel out of balance?",
			"What would ideal balance look like for you?",
		},
		ExplorationAreas: []string{"boundaries", "priorities", "time_management", "energy", "values"},
		intro:            "Thank you for choosing Work-Life Balance. Finding harmony between different aspects of life is crucial for well-being.",
		introQuestions: []string{
			"How would you describe your current work-life balance?",
			"What areas of your life feel out of balance?",
		},
	},
	"leadership_growth": {
		Key:         "leadership_growth",
		Name:        "Leadership Growth",
		Description: "Developing leadership skills and effectiveness",
		InitialQuestions: []string{
			"What kind of leader do you want to be?",
			"What leadership challenges are you currently facing?",
			"How do you currently influence and inspire others?",
		},
		ExplorationAreas: []string{"leadership_style", "influence", "team_dynamics", "decision_making", "vision"},
		intro:            "Wonderful! Leadership Growth is a powerful area for development. I'm here to support you in discovering your authentic leadership style.",
		introQuestions: []string{
			"What kind of leader do you want to be?",
			"What leadership challenges are you currently facing?",
		},
	},
}

// TopicKeys returns the topic keys in presentation order.
func TopicKeys() []string {
	return append([]string(nil), topicOrder...)
}

// Topics returns the full topic catalog in presentation order.
func Topics() []Topic {
	out := make([]Topic, 0, len(topicOrder))
	for _, key := range topicOrder {
		out = append(out, topics[key])
	}
	return out
}

// LookupTopic returns the topic for a key, if it exists.
func LookupTopic(key string) (Topic, bool) {
	t, ok := topics[key]
	return t, ok
}
