// Package intent decides what the user wants from a transcript using
// Spanish keyword patterns.
package intent

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind of intent.
type Kind int

const (
	Question Kind = iota
	RegisterUser
	IdentityQuery
	Stop
	Greeting
	Local
)

func (k Kind) String() string {
	switch k {
	case RegisterUser:
		return "register_user"
	case IdentityQuery:
		return "identity_query"
	case Stop:
		return "stop"
	case Greeting:
		return "greeting"
	case Local:
		return "local"
	default:
		return "question"
	}
}

// StopReply is the reply for Stop intents.
const StopReply = "Entendido, señor"

// Intent is the classification of one transcript. Name is set for
// RegisterUser, Reply for Stop and Local, Command for Local.
type Intent struct {
	Kind    Kind
	Name    string
	Reply   string
	Command Command
}

var (
	registerPrefixes = phrases("soy", "me llamo", "mi nombre es")

	identityPatterns = phrases(
		"cómo me llamo", "cuál es mi nombre", "quién soy yo", "quién soy",
		"cómo me dices", "mi nombre",
	)

	// single words only stop short utterances; "para" also starts
	// questions such as "para qué sirve"
	stopWords   = phrases("para", "detente", "cállate", "basta", "silencio", "stop", "calla", "nada", "olvida", "déjalo", "vale", "ok", "suficiente")
	stopPhrases = phrases(
		"está bien", "no hace falta", "no necesito", "no importa", "no pasa nada",
		"ya está", "no más", "no sigas", "no continues",
	)

	greetingPatterns = phrases("hola", "buenos días", "buenas tardes", "buenas noches", "qué tal", "cómo estás", "hey", "buenas")

	simpleResponses = phrases("sí", "no", "claro", "por supuesto", "evidentemente", "tal vez", "quizás", "puede ser")

	questionWords = phrases(
		"qué", "quién", "cuál", "cuáles", "cómo", "cuándo", "cuánto", "cuánta", "cuántos", "cuántas",
		"dónde", "por qué", "para qué",
	)
	searchVerbs = phrases(
		"busca", "buscar", "dime", "cuéntame", "explícame", "háblame",
		"necesito saber", "quiero saber", "investiga", "averigua", "quiero que",
	)
)

const (
	maxRegisterWords = 8
	maxIdentityWords = 6
	maxStopWordWords = 3
	maxSimpleWords   = 2
	maxShortWords    = 4
)

// Classifier classifies transcripts. The zero value is not usable; use New.
type Classifier struct {
	now   func() time.Time
	title cases.Caser
}

// New returns a Classifier using the wall clock for local commands.
func New() *Classifier {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Classifier that reads the time from now.
func NewWithClock(now func() time.Time) *Classifier {
	return &Classifier{now: now, title: cases.Title(language.Spanish)}
}

// Classify returns the intent of text. The first matching rule wins:
// registration, identity query, stop, greeting, local command, short
// yes/no, question words, very short utterances (stop), and finally
// Question.
func (c *Classifier) Classify(text string) Intent {
	orig, folded := tokenize(text)
	n := len(folded)

	if n <= maxRegisterWords {
		for _, p := range registerPrefixes {
			if n == len(p)+1 && hasPrefix(folded, p) && isName(orig[n-1]) {
				return Intent{Kind: RegisterUser, Name: c.title.String(orig[n-1])}
			}
		}
	}

	if n <= maxIdentityWords {
		for _, p := range identityPatterns {
			if hasPrefix(folded, p) {
				return Intent{Kind: IdentityQuery}
			}
		}
	}

	if containsAny(folded, stopPhrases) || (n <= maxStopWordWords && containsAny(folded, stopWords)) {
		return Intent{Kind: Stop, Reply: StopReply}
	}

	if containsAny(folded, greetingPatterns) {
		return Intent{Kind: Greeting}
	}

	if cmd, reply := c.localCommand(folded); cmd != NoCommand {
		return Intent{Kind: Local, Reply: reply, Command: cmd}
	}

	if n <= maxSimpleWords && containsAny(folded, simpleResponses) {
		return Intent{Kind: Stop, Reply: StopReply}
	}

	if containsAny(folded, questionWords) || containsAny(folded, searchVerbs) {
		return Intent{Kind: Question}
	}

	if n <= maxShortWords {
		return Intent{Kind: Stop, Reply: StopReply}
	}
	return Intent{Kind: Question}
}

// fold lowercases s and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// tokenize splits text into words, dropping punctuation. It returns the
// lowercased words and their folded forms.
func tokenize(text string) (orig, folded []string) {
	orig = strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	folded = make([]string, len(orig))
	for i, w := range orig {
		folded[i] = fold(w)
	}
	return orig, folded
}

func phrases(ps ...string) [][]string {
	out := make([][]string, len(ps))
	for i, p := range ps {
		_, out[i] = tokenize(p)
	}
	return out
}

func hasPrefix(words, p []string) bool {
	if len(p) > len(words) {
		return false
	}
	for i := range p {
		if words[i] != p[i] {
			return false
		}
	}
	return true
}

func containsPhrase(words, p []string) bool {
	for i := 0; i+len(p) <= len(words); i++ {
		if hasPrefix(words[i:], p) {
			return true
		}
	}
	return false
}

func containsAny(words []string, ps [][]string) bool {
	for _, p := range ps {
		if containsPhrase(words, p) {
			return true
		}
	}
	return false
}

func isName(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return w != ""
}
