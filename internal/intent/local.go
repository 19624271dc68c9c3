package intent

import (
	"fmt"
	"time"
)

// Command is a request answered without the answer service.
type Command int

const (
	NoCommand Command = iota
	CommandTime
	CommandDate
	CommandGoodbye
	CommandThanks
	CommandStatus
)

// Spoken replies for local commands.
const (
	GoodbyeReply = "Hasta luego, señor. Que tenga un buen día"
	ThanksReply  = "De nada, señor. Para eso estoy"
	StatusReply  = "Todos los sistemas funcionando correctamente, señor"
)

var (
	timePatterns  = phrases("qué hora es", "dime la hora", "hora actual", "cuál es la hora")
	timeExcluded  = phrases("mediodía solar", "salida", "puesta", "amanecer", "atardecer")
	datePatterns  = phrases("fecha", "día es", "qué día", "hoy es")
	goodbyeWords  = phrases("adiós", "hasta luego", "chao", "bye")
	thanksWords   = phrases("gracias", "thank you")
	statusPhrases = phrases("cómo estás", "qué tal")
)

var (
	weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	months   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// LocalCommand reports whether text is a local command and its reply.
func (c *Classifier) LocalCommand(text string) (Command, string) {
	_, folded := tokenize(text)
	return c.localCommand(folded)
}

func (c *Classifier) localCommand(words []string) (Command, string) {
	switch {
	case containsAny(words, timePatterns) && !containsAny(words, timeExcluded):
		return CommandTime, SpokenTime(c.now())
	case containsAny(words, datePatterns):
		return CommandDate, SpokenDate(c.now())
	case containsAny(words, goodbyeWords):
		return CommandGoodbye, GoodbyeReply
	case containsAny(words, thanksWords):
		return CommandThanks, ThanksReply
	case containsAny(words, statusPhrases):
		return CommandStatus, StatusReply
	}
	return NoCommand, ""
}

// SpokenTime formats t on a 12-hour clock: "Es la una y 5",
// "Son las 10 en punto".
func SpokenTime(t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}

	var minutes string
	if m := t.Minute(); m == 0 {
		minutes = "en punto"
	} else {
		minutes = fmt.Sprintf("y %d", m)
	}

	if hour == 1 {
		return "Es la una " + minutes
	}
	return fmt.Sprintf("Son las %d %s", hour, minutes)
}

// SpokenDate formats t as "Hoy es lunes, 3 de marzo de 2025".
func SpokenDate(t time.Time) string {
	return fmt.Sprintf("Hoy es %s, %d de %s de %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}
