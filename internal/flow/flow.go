// Package flow holds the fixed interview script walked by every session.
package flow

// Completed is the step id of a session that has answered every question.
const Completed = "completed"

type Step struct {
	ID              string `json:"step_id"`
	Field           string `json:"field"`
	PromptNative    string `json:"prompt_native"`
	PromptReference string `json:"prompt_reference"`
	// Required is informational; answers are never rejected for being empty
	// once transcription produced text.
	Required bool `json:"required"`
}

type Script struct {
	steps []Step
	index map[string]int
}

func New(steps []Step) Script {
	copied := make([]Step, len(steps))
	copy(copied, steps)

	index := make(map[string]int, len(copied))
	for i, s := range copied {
		index[s.ID] = i
	}
	return Script{steps: copied, index: index}
}

func Default() Script {
	return New([]Step{
		{
			ID:              "greeting",
			Field:           "craft_type",
			PromptNative:    "ਸਤ ਸ੍ਰੀ ਅਕਾਲ! ਮੈਂ ਤੁਹਾਡੀ ਮਦਦ ਕਰਨ ਲਈ ਇੱਥੇ ਹਾਂ। ਤੁਸੀਂ ਕਿਹੜੀ ਕਲਾ ਜਾਂ ਸ਼ਿਲਪਕਾਰੀ ਬਣਾਉਂਦੇ ਹੋ?",
			PromptReference: "Hello! I'm here to help you. What craft or handiwork do you make?",
			Required:        true,
		},
		{
			ID:              "product_name",
			Field:           "product_name",
			PromptNative:    "ਤੁਹਾਡੇ ਉਤਪਾਦ ਦਾ ਨਾਮ ਕੀ ਹੈ?",
			PromptReference: "What is the name of your product?",
			Required:        true,
		},
		{
			ID:              "materials",
			Field:           "materials",
			PromptNative:    "ਤੁਸੀਂ ਇਸ ਨੂੰ ਬਣਾਉਣ ਲਈ ਕਿਹੜੀ ਸਮੱਗਰੀ ਵਰਤਦੇ ਹੋ?",
			PromptReference: "What materials do you use to make it?",
			Required:        true,
		},
		{
			ID:              "process",
			Field:           "process",
			PromptNative:    "ਇਸ ਨੂੰ ਬਣਾਉਣ ਦੀ ਪ੍ਰਕਿਰਿਆ ਬਾਰੇ ਦੱਸੋ।",
			PromptReference: "Tell us about the process of making it.",
			Required:        true,
		},
		{
			ID:              "special_features",
			Field:           "special_features",
			PromptNative:    "ਤੁਹਾਡੇ ਉਤਪਾਦ ਦੀ ਕੀ ਖਾਸੀਅਤ ਹੈ?",
			PromptReference: "What makes your product special?",
			Required:        true,
		},
	})
}

func (s Script) Len() int { return len(s.steps) }

func (s Script) First() Step { return s.steps[0] }

func (s Script) At(i int) (Step, bool) {
	if i < 0 || i >= len(s.steps) {
		return Step{}, false
	}
	return s.steps[i], true
}

// Index returns the position of id, or -1 when id is unknown or terminal.
func (s Script) Index(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

func (s Script) Step(id string) (Step, bool) {
	i := s.Index(id)
	if i < 0 {
		return Step{}, false
	}
	return s.steps[i], true
}

func (s Script) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s Script) Fields() []string {
	out := make([]string, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.Field
	}
	return out
}

// Progress is the integer percentage reached once next steps are done.
func (s Script) Progress(next int) int {
	if len(s.steps) == 0 || next >= len(s.steps) {
		return 100
	}
	return next * 100 / len(s.steps)
}
