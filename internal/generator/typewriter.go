package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/edgard/botfriend/internal/bot"
	"github.com/edgard/botfriend/internal/config"
)

const dullSentence = "All work and no play makes Jack a dull boy."

// Dull types the same sentence over and over, badly.
type Dull struct {
	sentence string
}

func newDull(_ context.Context, cfg *config.BotConfig, _ Deps) (bot.ContentGenerator, error) {
	sentence := strings.TrimSpace(cfg.Options.String("sentence", dullSentence))
	if sentence == "" {
		return nil, errors.New("sentence cannot be empty")
	}
	return &Dull{sentence: sentence}, nil
}

func (g *Dull) NewPost(_ context.Context, b *bot.Bot) (any, error) {
	return NewTypewriter(b.Rand()).Type(g.sentence), nil
}

// StressTest types rounds of sentences without touching the store.
func (g *Dull) StressTest(ctx context.Context, b *bot.Bot, rounds int) ([]string, error) {
	tw := NewTypewriter(b.Rand())
	out := make([]string, 0, rounds)
	for range rounds {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, tw.Type(g.sentence))
	}
	return out, nil
}

// Padding characters appended to every typed sentence so no two posts are
// byte-identical.
const typewriterSpaces = "\u0020\u00a0\u2000\u2002\u2003\u2004\u2005\u2006\u200b\u2009\u200a"

var typewriterNeighbors = map[rune]string{
	'A': "SQZW",
	'l': "kop:,.",
	'w': "q23esa",
	'o': "90ipkl:",
	'r': "45etdfg",
	'k': "iojlm,",
	'a': "sqzw",
	'n': "bjkm ",
	'd': "ersfxc",
	'p': "0-=o½l:",
	'y': "67tughj",
	'm': "jkln, ",
	'e': "34wrsdf",
	's': "weadzx",
	'J': "YUIHKNM",
	'c': "dfxv ",
	'u': "78yihj",
	'b': "ghvn ",
	' ': "    zxcvbnm,./",
	'.': "l;,/",
}

type mistake func(tw *Typewriter, s []rune) []rune

// Typewriter makes human-looking typing mistakes. Mistakes come from four
// tiers drawn with probabilities 65/20/11/4 percent.
type Typewriter struct {
	rng   *rand.Rand
	tiers [4][]mistake
}

// NewTypewriter returns a typewriter drawing from rng.
func NewTypewriter(rng *rand.Rand) *Typewriter {
	return &Typewriter{
		rng: rng,
		tiers: [4][]mistake{
			{(*Typewriter).typo, (*Typewriter).typo, (*Typewriter).duplicate, (*Typewriter).transpose},
			{(*Typewriter).omitPeriod, (*Typewriter).deleteSpace, (*Typewriter).typoAdd, (*Typewriter).delete},
			{(*Typewriter).delete, (*Typewriter).lowercaseUpper, (*Typewriter).leadingSpace, (*Typewriter).uppercaseLetter},
			{(*Typewriter).uppercaseWord, (*Typewriter).uppercaseAll, (*Typewriter).removeWord, (*Typewriter).delete},
		},
	}
}

// Type returns correct with a Gaussian number of mistakes (mean 1.6) and
// trailing padding. One time in ten a short sentence is typed twice.
func (tw *Typewriter) Type(correct string) string {
	return tw.typeOnto(correct, "")
}

func (tw *Typewriter) typeOnto(correct, soFar string) string {
	s := []rune(correct)
	n := int(1.6 + 0.5*tw.rng.NormFloat64())
	for range n {
		if len(s) == 0 {
			break
		}
		s = tw.pick()(tw, s)
	}
	out := soFar + string(s)
	if tw.rng.Float64() < 0.1 && len([]rune(out)) < 100 {
		out = tw.typeOnto(correct, out+" ")
	}

	spaces := []rune(typewriterSpaces)
	for range 3 {
		out += string(spaces[tw.rng.IntN(len(spaces))])
	}
	return out
}

func (tw *Typewriter) pick() mistake {
	roll := tw.rng.IntN(100)
	tier := 3
	switch {
	case roll < 65:
		tier = 0
	case roll < 85:
		tier = 1
	case roll < 96:
		tier = 2
	}
	options := tw.tiers[tier]
	return options[tw.rng.IntN(len(options))]
}

func (tw *Typewriter) neighbor(r rune) rune {
	options, ok := typewriterNeighbors[r]
	if !ok {
		return r
	}
	runes := []rune(options)
	return runes[tw.rng.IntN(len(runes))]
}

func (tw *Typewriter) typo(s []rune) []rune {
	i := tw.rng.IntN(len(s))
	out := append([]rune(nil), s...)
	out[i] = tw.neighbor(s[i])
	return out
}

func (tw *Typewriter) typoAdd(s []rune) []rune {
	i := tw.rng.IntN(len(s))
	wrong := tw.neighbor(s[i])
	pair := []rune{wrong, s[i]}
	if tw.rng.IntN(2) == 0 {
		pair = []rune{s[i], wrong}
	}
	return splice(s, i, i+1, pair...)
}

func (tw *Typewriter) transpose(s []rune) []rune {
	if len(s) < 2 {
		return s
	}
	i := tw.rng.IntN(len(s) - 1)
	out := append([]rune(nil), s...)
	out[i], out[i+1] = out[i+1], out[i]
	return out
}

func (tw *Typewriter) duplicate(s []rune) []rune {
	i := tw.rng.IntN(len(s))
	return splice(s, i, i, s[i])
}

func (tw *Typewriter) delete(s []rune) []rune {
	i := tw.rng.IntN(len(s))
	return splice(s, i, i+1)
}

func (tw *Typewriter) deleteSpace(s []rune) []rune {
	var spaces []int
	for i, r := range s {
		if r == ' ' {
			spaces = append(spaces, i)
		}
	}
	if len(spaces) == 0 {
		return s
	}
	i := spaces[tw.rng.IntN(len(spaces))]
	return splice(s, i, i+1)
}

func (tw *Typewriter) lowercaseUpper(s []rune) []rune {
	var upper []int
	for i, r := range s {
		if unicode.IsUpper(r) {
			upper = append(upper, i)
		}
	}
	if len(upper) == 0 {
		return s
	}
	i := upper[tw.rng.IntN(len(upper))]
	out := append([]rune(nil), s...)
	out[i] = unicode.ToLower(out[i])
	return out
}

func (tw *Typewriter) uppercaseLetter(s []rune) []rune {
	i := tw.rng.IntN(len(s))
	out := append([]rune(nil), s...)
	out[i] = unicode.ToUpper(out[i])
	return out
}

func (tw *Typewriter) uppercaseWord(s []rune) []rune {
	words := strings.Split(string(s), " ")
	i := tw.rng.IntN(len(words))
	words[i] = strings.ToUpper(words[i])
	return []rune(strings.Join(words, " "))
}

func (tw *Typewriter) uppercaseAll(s []rune) []rune {
	return []rune(strings.ToUpper(string(s)))
}

func (tw *Typewriter) removeWord(s []rune) []rune {
	words := strings.Split(string(s), " ")
	if len(words) < 2 {
		return s
	}
	i := tw.rng.IntN(len(words))
	words = append(words[:i], words[i+1:]...)
	return []rune(strings.Join(words, " "))
}

func (tw *Typewriter) omitPeriod(s []rune) []rune {
	if s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

func (tw *Typewriter) leadingSpace(s []rune) []rune {
	return append([]rune{'\u2002'}, s...)
}

// splice returns s with s[i:j] replaced by insert.
func splice(s []rune, i, j int, insert ...rune) []rune {
	out := make([]rune, 0, len(s)-(j-i)+len(insert))
	out = append(out, s[:i]...)
	out = append(out, insert...)
	return append(out, s[j:]...)
}
