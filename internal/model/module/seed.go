package module

import (
	"github.com/lifecraft/profiler/backend/internal/analysis/evidence"
	"github.com/lifecraft/profiler/backend/internal/analysis/stage"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
)

// Module identifiers.
const (
	Strengths  = "strengths"
	LifeThemes = "life-themes"
	Vision     = "vision"
)

// Seed provides the built-in guided dialogues.
func Seed() []Definition {
	return []Definition{strengthsModule(), lifeThemesModule(), visionModule()}
}

func strengthsModule() Definition {
	return Definition{
		ID:          Strengths,
		Name:        "Strength Discovery",
		Description: "Uncover transferable skills, attitudes and values through stories of work you enjoyed.",
		OpeningLine: "Hi! Let's discover your strengths together. Think of a time you worked on something that truly engaged you. What was it, and what did you do?",
		SystemPrompt: `You are a warm career coach helping the user discover their strengths through their own stories.
Ask one question at a time. Keep replies to 2-4 sentences. Never list strengths before the summary stage.`,
		StageGuides: map[chat.Stage]string{
			"initial":     "Invite the user to share one concrete experience where they felt engaged.",
			"exploration": "Ask what the user actually did in that experience: actions, decisions, tools.",
			"deepening":   "Explore how the experience felt and why it mattered to the user personally.",
			"analysis":    "Point out patterns across the stories and ask the user to confirm or correct them.",
			"summary":     "Summarise the strengths you heard, grouped as skills, attitudes and values, and invite the user to confirm.",
			"done":        "Thank the user and close the conversation.",
		},
		FallbackQuestions: []string{
			"Thanks for sharing. What exactly did you do in that situation, step by step?",
			"What part of that experience gave you the most energy, and why?",
			"How did the people around you react to what you did?",
			"Looking across your stories, what do you notice you keep doing well?",
		},
		ExtractionLine: "Thank you for sharing so openly. Here is a summary of the strengths I heard in your stories. Let me know whether they resonate.",
		ClosingLine:    "Thanks for exploring your strengths with me.",
		Policy: stage.Policy{
			Stages:                    []chat.Stage{"initial", "exploration", "deepening", "analysis", "summary", "done"},
			ExtractionStage:           "summary",
			MinExchangesForExtraction: 4,
			Steps: []stage.Step{
				{From: "initial", To: "exploration", MinSubstantive: 1},
				{From: "exploration", To: "deepening", MinSubstantive: 2, MinExchanges: 3},
				{From: "deepening", To: "analysis", MinSubstantive: 3, MinExchanges: 5},
				{From: "analysis", To: "summary", MinSubstantive: 4, MinExchanges: 7},
			},
			ConfirmFrom:             "summary",
			ConfirmTo:               "done",
			ConfirmRequiresArtifact: true,
		},
		Extraction: Extraction{
			Kind: "strengths",
			Instructions: `Extract career strengths from the conversation. Each strength needs clear evidence from the user's specific examples.
Be specific, not generic. At most 6 items per category.
Return JSON: {"summary": "...", "findings": [{"name": "...", "category": "skills|attitudes|values", "description": "...", "evidence": ["..."], "confidence": 0-100}]}`,
			Categories:        []string{"skills", "attitudes", "values"},
			MinFindings:       3,
			MaxFindings:       18,
			RequireEvidence:   true,
			DefaultConfidence: 70,
			Buckets: []evidence.Bucket{
				{Name: "Problem-solving", Category: "skills", Description: "Breaking down hard problems and finding a way through", Keywords: []string{"solve", "solved", "fix", "figure", "debug", "problem"}},
				{Name: "Leadership", Category: "skills", Description: "Guiding people toward a shared outcome", Keywords: []string{"led", "lead", "organis", "organiz", "manage", "coordinat"}},
				{Name: "Communication", Category: "skills", Description: "Explaining ideas clearly to different audiences", Keywords: []string{"present", "explain", "wrote", "write", "talk", "pitch"}},
				{Name: "Mentorship", Category: "skills", Description: "Helping others learn and grow", Keywords: []string{"mentor", "coach", "teach", "taught", "train"}},
				{Name: "Persistence", Category: "attitudes", Description: "Sticking with difficult work until it is done", Keywords: []string{"kept", "persist", "late", "again", "didn't give up", "hard"}},
				{Name: "Curiosity", Category: "attitudes", Description: "Eagerness to learn and explore", Keywords: []string{"learn", "curious", "explore", "research", "wonder"}},
				{Name: "Collaboration", Category: "attitudes", Description: "Working well with others", Keywords: []string{"team", "together", "we ", "colleague", "collaborat"}},
				{Name: "Impact", Category: "values", Description: "Wanting work to make a visible difference", Keywords: []string{"impact", "difference", "matter", "changed", "result"}},
				{Name: "Helping others", Category: "values", Description: "Finding meaning in supporting people", Keywords: []string{"help", "support", "care", "volunteer", "community"}},
				{Name: "Growth", Category: "values", Description: "Valuing continuous improvement", Keywords: []string{"grow", "improve", "better", "progress"}},
			},
			Defaults: []chat.Finding{
				{Name: "Problem-solving", Category: "skills", Description: "Breaking down hard problems and finding a way through", Evidence: []string{"Drawn from the stories you shared"}, Confidence: 50},
				{Name: "Communication", Category: "skills", Description: "Explaining ideas clearly to different audiences", Evidence: []string{"Drawn from the stories you shared"}, Confidence: 50},
				{Name: "Persistence", Category: "attitudes", Description: "Sticking with difficult work until it is done", Evidence: []string{"Drawn from the stories you shared"}, Confidence: 50},
				{Name: "Curiosity", Category: "attitudes", Description: "Eagerness to learn and explore", Evidence: []string{"Drawn from the stories you shared"}, Confidence: 50},
				{Name: "Growth", Category: "values", Description: "Valuing continuous improvement", Evidence: []string{"Drawn from the stories you shared"}, Confidence: 50},
				{Name: "Impact", Category: "values", Description: "Wanting work to make a visible difference", Evidence: []string{"Drawn from the stories you shared"}, Confidence: 50},
			},
		},
		Suggestion: Suggestion{
			Instructions: `Suggest strengths the user may have based on the context. Return JSON: {"skills": ["..."], "attitudes": ["..."], "values": ["..."]}`,
			Fallback: map[string]any{
				"skills":    []string{"Problem-solving", "Communication", "Leadership"},
				"attitudes": []string{"Persistence", "Curiosity", "Collaboration"},
				"values":    []string{"Growth", "Impact", "Trust"},
			},
		},
	}
}

func lifeThemesModule() Definition {
	return Definition{
		ID:          LifeThemes,
		Name:        "Life Themes",
		Description: "A short career-construction interview that surfaces the themes running through your life story.",
		OpeningLine: "I've read through your answers so far. Before we name any themes, I'd love to hear a little more. Which of your earlier answers feels most like you?",
		SystemPrompt: `You are a career counselor conducting a Career Construction Interview.
Acknowledge what the user shared, then ask ONE clarifying question that connects their answers. Keep replies to 2-4 sentences.`,
		StageGuides: map[chat.Stage]string{
			"conversation": "Dig deeper into a pattern you notice and link different answers together.",
			"findings":     "The themes are confirmed. Thank the user.",
		},
		FallbackQuestions: []string{
			"That's really interesting. I notice some connections between what you've shared. Can you tell me more about what drives your passion for these things?",
			"I'm seeing some patterns emerge. When you think about your role models and your hobbies, what common thread do you see connecting them?",
			"Thank you for sharing. Looking at your early memories and your favorite subjects, what feelings or values seem to be consistently important to you?",
		},
		ExtractionLine: "Thank you for sharing so openly. Based on our conversation, I've identified some recurring themes that seem central to who you are. Let me share them with you, and we can discuss whether they resonate.",
		ClosingLine:    "Your themes are saved. Let's look at what they mean for your next steps.",
		Policy: stage.Policy{
			Stages:                    []chat.Stage{"conversation", "findings"},
			ExtractionStage:           "conversation",
			MinExchangesForExtraction: 3,
			MaxExchanges:              5,
			ConfirmFrom:               "conversation",
			ConfirmTo:                 "findings",
			ConfirmRequiresArtifact:   true,
		},
		Extraction: Extraction{
			Kind: "themes",
			Instructions: `Suggest 3-5 life themes identified from the user's responses and conversation. Each theme needs a clear name, a brief description, specific evidence from the user's words and a confidence score (0-100).
Return JSON: {"summary": "...", "findings": [{"name": "...", "description": "...", "evidence": ["..."], "confidence": 85}]}`,
			MinFindings:       3,
			MaxFindings:       5,
			RequireEvidence:   true,
			DefaultConfidence: 75,
			Buckets: []evidence.Bucket{
				{Name: "Personal Growth", Description: "A drive toward continuous self-improvement and learning", Keywords: []string{"learn", "grow", "improve", "challenge", "study"}},
				{Name: "Connection & Relationships", Description: "Valuing meaningful relationships and human connection", Keywords: []string{"friend", "family", "people", "together", "help", "community"}},
				{Name: "Creative Expression", Description: "Finding meaning through creative and expressive activities", Keywords: []string{"draw", "paint", "music", "write", "create", "design", "build"}},
				{Name: "Independence", Description: "Wanting freedom to choose your own path", Keywords: []string{"freedom", "own way", "independ", "alone", "myself"}},
				{Name: "Justice & Fairness", Description: "Standing up for what is right", Keywords: []string{"fair", "justice", "right", "stand up", "protect"}},
			},
			Defaults: []chat.Finding{
				{Name: "Personal Growth", Description: "A drive toward continuous self-improvement and learning", Evidence: []string{"From your role models", "From your favorite subjects", "From your hobbies"}, Confidence: 75},
				{Name: "Connection & Relationships", Description: "Valuing meaningful relationships and human connection", Evidence: []string{"From your early memories", "From media you enjoy"}, Confidence: 70},
				{Name: "Creative Expression", Description: "Finding meaning through creative and expressive activities", Evidence: []string{"From your hobbies", "From your mottos"}, Confidence: 65},
			},
		},
		Suggestion: Suggestion{
			Instructions: `Suggest possible life themes from the context. Return JSON: {"themes": [{"name": "...", "description": "..."}]}`,
			Fallback: map[string]any{
				"themes": []map[string]string{
					{"name": "Personal Growth", "description": "A drive toward continuous self-improvement and learning"},
					{"name": "Connection & Relationships", "description": "Valuing meaningful relationships and human connection"},
				},
			},
		},
	}
}

func visionModule() Definition {
	return Definition{
		ID:          Vision,
		Name:        "Vision",
		Description: "Imagine the life you want ten years from now and turn it into a vision statement.",
		OpeningLine: "Let's imagine your future. Picture a normal day ten years from now when things have gone well. Where are you, and what are you doing?",
		SystemPrompt: `You are a reflective coach helping the user articulate a personal vision.
Use their values and strengths from earlier modules when provided. Ask one question at a time.`,
		StageGuides: map[chat.Stage]string{
			"explore": "Help the user describe their ideal future in vivid, concrete terms.",
			"draft":   "Reflect the key aspirations back and propose a one-sentence vision statement.",
			"done":    "Congratulate the user on their vision.",
		},
		FallbackQuestions: []string{
			"That sounds meaningful. Who is with you in that picture, and what role do you play for them?",
			"What would you be proud of having built or contributed by then?",
			"Which of your values shows up most strongly in that future?",
			"If you had to describe that future in one sentence, what would it be?",
		},
		ExtractionLine: "Here are the core aspirations I heard in your picture of the future. Let's shape them into your vision statement.",
		ClosingLine:    "Your vision is saved.",
		Policy: stage.Policy{
			Stages:                    []chat.Stage{"explore", "draft", "done"},
			ExtractionStage:           "draft",
			MinExchangesForExtraction: 4,
			Steps: []stage.Step{
				{From: "explore", To: "draft", MinExchanges: 3},
			},
			ConfirmFrom:             "draft",
			ConfirmTo:               "done",
			ConfirmRequiresArtifact: true,
		},
		Extraction: Extraction{
			Kind: "aspirations",
			Instructions: `Identify the user's core aspirations and propose a vision statement as the summary.
Return JSON: {"summary": "vision statement", "findings": [{"name": "aspiration keyword", "description": "...", "evidence": ["..."], "confidence": 0-100}]}`,
			MinFindings:       2,
			MaxFindings:       6,
			DefaultConfidence: 70,
			Buckets: []evidence.Bucket{
				{Name: "Family", Description: "A future built around the people closest to you", Keywords: []string{"family", "kids", "children", "partner", "home"}},
				{Name: "Mastery", Description: "Becoming excellent at your craft", Keywords: []string{"expert", "master", "skill", "best at"}},
				{Name: "Contribution", Description: "Making a difference for others", Keywords: []string{"help", "impact", "community", "give back", "contribut"}},
				{Name: "Freedom", Description: "Owning your time and choices", Keywords: []string{"travel", "freedom", "own business", "flexib"}},
			},
			Defaults: []chat.Finding{
				{Name: "Growth", Description: "Continuing to learn and grow", Confidence: 50},
				{Name: "Contribution", Description: "Making a difference for others", Confidence: 50},
			},
		},
		Suggestion: Suggestion{
			Instructions: `Suggest vision statement drafts from the context. Return JSON: {"statements": ["..."]}`,
			Fallback: map[string]any{
				"statements": []string{"I grow every day and use my strengths to make a difference for the people around me."},
			},
		},
	}
}
