package corpus

import "strings"

// Provider supplies the candidate strings the text generator draws from.
// Implementations must return stable, non-empty slices; callers treat the
// corpus as read-only.
type Provider interface {
	Words() []string
	Sentences() []string
}

// Static is a Provider over fixed in-memory banks.
type Static struct {
	words     []string
	sentences []string
}

func NewStatic(words, sentences []string) *Static {
	return &Static{words: words, sentences: sentences}
}

func (s *Static) Words() []string     { return s.words }
func (s *Static) Sentences() []string { return s.sentences }

// Default returns the built-in corpus, used when no external source is
// configured.
func Default() *Static {
	return NewStatic(defaultWords, defaultSentences)
}

// Common words for word-mode race texts.
var defaultWords = strings.Fields(`the be to of and a in that have I it for not on with he as you do at
this but his by from they we say her she or an will my one all would there their
what so up out if about who get which go me when make can like time no just him
know take people into year your good some could them see other than then now look
only come its over think also back after use two how our work first well way even
new want because any these give day most us are were been has more some many
example sample typing test practice random words lorem ipsum quick brown fox jumps
over lazy dog keyboard fast accuracy speed precision challenge focus rhythm steady
garden ocean mountain river sky cloud moon sun star light dark pixel color sound
space time motion code script game play pause resume start end finish level high
score rank medal badge trophy friend rival teammate join leave host guest room
alpha beta gamma delta epsilon omega zeta eta theta iota kappa lambda mu nu xi
omicron pi rho sigma tau upsilon phi chi psi omega`)

// Curated short, neutral sentences for sentence-mode race texts.
var defaultSentences = []string{
	"The quick brown fox jumps over the lazy dog.",
	"Practice makes progress and speed follows accuracy.",
	"Typing tests help you focus on rhythm and precision.",
	"Keep your hands relaxed and eyes on the screen.",
	"Short sprints build speed; long runs build endurance.",
	"Simplicity is the soul of efficiency.",
	"Clear thinking requires clear language.",
	"Good code is its own documentation.",
	"The best way to get started is to begin.",
	"Small consistent improvements compound over time.",
	"Focus on accuracy first, speed will follow.",
	"Breathe steadily and let your rhythm guide you.",
	"Measure progress, then adjust your practice.",
	"Errors are information; learn from each one.",
	"Short breaks can improve long-term concentration.",
	"Practice without pressure builds true speed.",
	"Typing is a conversation between hands and brain.",
	"Consistency beats intensity in the long run.",
	"A steady pace often outlasts a frantic burst.",
	"Confidence grows when you focus on fundamentals.",
	"Readability is as important as performance.",
	"A calm mind produces cleaner output.",
	"The only way out is through practiced repetition.",
	"Keep challenging yourself with slightly harder tests.",
	"Curiosity leads to new skills and better habits.",
	"Precision now saves frustration later.",
	"Learn the patterns, not just the letters.",
	"Every practice session moves you forward.",
	"Track your progress, celebrate small wins.",
	"The keyboard rewards patience and persistence.",
}
