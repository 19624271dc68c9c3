package conversation

import (
	"time"

	"jarvis/internal/identity"
)

// Session is what the loop remembers between exchanges.
type Session struct {
	Greeted bool
	// LastGreeting is set by the first greeting of the session and never
	// moved after that.
	LastGreeting time.Time
	CurrentUser  string
}

// Greeting returns the address to open a reply with. The first call of a
// session greets by time of day ("Buenas tardes, señor Tony"); later calls
// just say "Señor Tony".
func (s *Session) Greeting(now time.Time) string {
	if !s.Greeted {
		s.Greeted = true
		s.LastGreeting = now
		return timeOfDay(now.Hour()) + ", " + identity.Address(s.CurrentUser)
	}
	// 5 分钟内外的称呼相同
	if s.CurrentUser == "" {
		return "Señor"
	}
	return "Señor " + s.CurrentUser
}

func timeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "Buenos días"
	case hour >= 12 && hour < 20:
		return "Buenas tardes"
	default:
		return "Buenas noches"
	}
}
