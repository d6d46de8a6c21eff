package textgen

import (
	"math/rand/v2"
	"strings"

	"typerace/internal/corpus"
)

// Mode selects how race text is assembled.
type Mode string

const (
	ModeWords     Mode = "words"
	ModeSentences Mode = "sentences"
)

// Size limits applied by callers before invoking Generate. The generator
// itself does not clamp.
const (
	DefaultSize = 50
	MinSize     = 5
	MaxSize     = 200
)

// ParseMode maps a client-supplied mode string, defaulting to words.
func ParseMode(s string) Mode {
	if s == string(ModeSentences) {
		return ModeSentences
	}
	return ModeWords
}

// ClampSize bounds a requested size to [MinSize, MaxSize].
func ClampSize(n int) int {
	if n < MinSize {
		return MinSize
	}
	if n > MaxSize {
		return MaxSize
	}
	return n
}

// Odds for sentence-mode variety: roughly a third of sentences get a short
// random clause appended, usually after a comma, occasionally a semicolon.
const (
	extendChance    = 0.35
	semicolonChance = 0.12
	clauseMinWords  = 2
	clauseMaxExtra  = 5 // clause length is clauseMinWords + [0, clauseMaxExtra)
)

// Generator produces race text from a corpus. It is stateless apart from
// its random source, so one instance serves all rooms.
type Generator struct {
	corpus corpus.Provider
	rng    *rand.Rand
}

// New creates a generator over the given corpus. A nil rng gets a freshly
// seeded source; tests pass a fixed-seed rand.Rand for reproducibility.
func New(p corpus.Provider, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{corpus: p, rng: rng}
}

// Generate returns race text: size words (with one trailing space) in words
// mode, or size sentences joined by single spaces in sentences mode.
func (g *Generator) Generate(mode Mode, size int) string {
	if mode == ModeSentences {
		return g.sentences(size)
	}
	return g.words(size)
}

func (g *Generator) words(count int) string {
	bank := g.corpus.Words()
	var b strings.Builder
	for i := 0; i < count; i++ {
		b.WriteString(bank[g.rng.IntN(len(bank))])
		b.WriteByte(' ')
	}
	return b.String()
}

func (g *Generator) sentences(count int) string {
	bank := g.corpus.Sentences()
	out := make([]string, 0, count)
	for len(out) < count {
		s := bank[g.rng.IntN(len(bank))]
		if g.rng.Float64() < extendChance {
			s = g.extend(s)
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

// extend strips the terminal period, appends a separator and a short run of
// random words, and closes with a period again.
func (g *Generator) extend(sentence string) string {
	words := g.corpus.Words()
	clauseLen := clauseMinWords + g.rng.IntN(clauseMaxExtra)
	clause := make([]string, clauseLen)
	for i := range clause {
		clause[i] = words[g.rng.IntN(len(words))]
	}

	sep := ","
	if g.rng.Float64() < semicolonChance {
		sep = ";"
	}

	s := strings.TrimSuffix(sentence, ".")
	return s + sep + " " + strings.Join(clause, " ") + "."
}
