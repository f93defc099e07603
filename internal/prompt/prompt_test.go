package prompt

import (
	"strings"
	"testing"

	"github.com/pcannon/weather-assistant/internal/models"
)

func TestParseCityReply(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   string
		wantOK bool
	}{
		{"plain city", "Tokyo", "Tokyo", true},
		{"trims whitespace", "  Paris \n", "Paris", true},
		{"double quoted", `"Berlin"`, "Berlin", true},
		{"single quoted", "'Oslo'", "Oslo", true},
		{"quoted with inner space", `"New York"`, "New York", true},
		{"sentinel", "NONE", "", false},
		{"sentinel lowercase", "none", "", false},
		{"quoted sentinel", `"NONE"`, "", false},
		{"empty", "", "", false},
		{"whitespace only", "   \n\t", "", false},
		{"lone quote char", `"`, `"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCityReply(tt.reply)
			if ok != tt.wantOK {
				t.Fatalf("ParseCityReply(%q) ok = %v, want %v", tt.reply, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseCityReply(%q) = %q, want %q", tt.reply, got, tt.want)
			}
		})
	}
}

func TestCityExtraction_MentionsSentinel(t *testing.T) {
	p := CityExtraction("what's the weather like in Madrid?")
	if !strings.Contains(p, NoneSentinel) {
		t.Error("extraction prompt must name the NONE sentinel")
	}
	if !strings.Contains(p, "Madrid") {
		t.Error("extraction prompt must carry the input text")
	}
}

func TestChatSystem(t *testing.T) {
	snapshot := &models.WeatherSnapshot{
		Location:    "Tokyo",
		Temperature: 16,
		Condition:   "scattered clouds",
		Humidity:    65,
		WindKmh:     12,
		IsDay:       true,
		Forecast: []models.ForecastDay{
			{Day: "Monday", Temperature: 16, Condition: "scattered clouds"},
			{Day: "Tuesday", Temperature: 12, Condition: "light rain"},
		},
	}
	history := []models.ChatTurn{
		{Role: "user", Text: "hi"},
		{Role: "assistant", Text: "hello!"},
	}

	p := ChatSystem(snapshot, history, "en")

	for _, want := range []string{"Tokyo", "16°C", "scattered clouds", "Monday", "Tuesday", "user: hi", "assistant: hello!", `"en"`} {
		if !strings.Contains(p, want) {
			t.Errorf("ChatSystem() missing %q in:\n%s", want, p)
		}
	}
}

func TestChatSystem_NoWeatherNoHistory(t *testing.T) {
	p := ChatSystem(nil, nil, "")
	if strings.Contains(p, "Current weather") {
		t.Error("ChatSystem() must not mention weather when no snapshot is given")
	}
	if strings.Contains(p, "Conversation so far") {
		t.Error("ChatSystem() must not include an empty transcript section")
	}
}

func TestChatSystem_UnknownRoleFallsBackToUser(t *testing.T) {
	p := ChatSystem(nil, []models.ChatTurn{{Role: "system", Text: "sneaky"}}, "")
	if !strings.Contains(p, "user: sneaky") {
		t.Errorf("unknown roles should be folded in as user, got:\n%s", p)
	}
}

func TestTranslation(t *testing.T) {
	msgs := []models.TranslateMessage{
		{ID: "m1", Text: "hello"},
		{ID: "m2", Text: "goodbye"},
	}
	p := Translation(msgs, "French")

	for _, want := range []string{"French", "m1: hello", "m2: goodbye", "JSON object"} {
		if !strings.Contains(p, want) {
			t.Errorf("Translation() missing %q in:\n%s", want, p)
		}
	}
}
