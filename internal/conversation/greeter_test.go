package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGreetingFirstThenShort(t *testing.T) {
	var s Session
	t0 := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "Buenos días, señor", s.Greeting(t0))
	assert.Equal(t, "Señor", s.Greeting(t0.Add(100*time.Second)))
	assert.Equal(t, "Señor", s.Greeting(t0.Add(400*time.Second)))

	assert.True(t, s.Greeted)
	assert.Equal(t, t0, s.LastGreeting, "only the first greeting stamps the time")
}

func TestGreetingWithUser(t *testing.T) {
	s := Session{CurrentUser: "Tony"}
	t0 := time.Date(2025, time.March, 3, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, "Buenas noches, señor Tony", s.Greeting(t0))
	assert.Equal(t, "Señor Tony", s.Greeting(t0.Add(time.Minute)))
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "Buenas noches"},
		{5, "Buenas noches"},
		{6, "Buenos días"},
		{11, "Buenos días"},
		{12, "Buenas tardes"},
		{19, "Buenas tardes"},
		{20, "Buenas noches"},
		{23, "Buenas noches"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeOfDay(tt.hour), "hour %d", tt.hour)
	}
}
