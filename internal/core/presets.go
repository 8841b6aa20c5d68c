package core

// Preset is one entry of a personalization lookup table. Profiles store the
// id; the prompt fragment is resolved at prompt-assembly time.
type Preset struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// ModelOption is a selectable generative model.
type ModelOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var TutorModes = []Preset{
	{
		ID:     "socratic",
		Label:  "Socratic",
		Prompt: "Teach using the Socratic method: guide the user toward answers with probing questions instead of stating solutions outright.",
	},
	{
		ID:     "direct",
		Label:  "Direct",
		Prompt: "Teach directly: explain concepts and give answers plainly, then offer a short summary the user can review.",
	},
	{
		ID:     "motivational",
		Label:  "Motivational",
		Prompt: "Be an encouraging coach: celebrate progress, frame mistakes as learning opportunities, and keep the user motivated.",
	},
	{
		ID:     "strict",
		Label:  "Strict",
		Prompt: "Act as a strict tutor: hold the user to a high standard, point out errors precisely, and insist on correct reasoning.",
	},
}

var ResponseLengths = []Preset{
	{
		ID:     "concise",
		Label:  "Concise",
		Prompt: "Keep responses short and to the point.",
	},
	{
		ID:     "balanced",
		Label:  "Balanced",
		Prompt: "Balance brevity with enough detail to fully answer the question.",
	},
	{
		ID:     "detailed",
		Label:  "Detailed",
		Prompt: "Give thorough, in-depth responses with examples where helpful.",
	},
}

var AcademicLevels = []Preset{
	{
		ID:     "high_school",
		Label:  "High School",
		Prompt: "Pitch explanations at a high-school level, avoiding unexplained jargon.",
	},
	{
		ID:     "undergraduate",
		Label:  "Undergraduate",
		Prompt: "Pitch explanations at an undergraduate level, assuming introductory coursework.",
	},
	{
		ID:     "graduate",
		Label:  "Graduate",
		Prompt: "Pitch explanations at a graduate level; technical depth is welcome.",
	},
}

var Models = []ModelOption{
	{ID: "gemini-1.5-flash", Label: "Gemini 1.5 Flash", Description: "Fast, general-purpose model. Default."},
	{ID: "gemini-1.5-pro", Label: "Gemini 1.5 Pro", Description: "Stronger reasoning for harder questions."},
	{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash", Description: "Latest fast model."},
}

func findPreset(list []Preset, id string) (Preset, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
