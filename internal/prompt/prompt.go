// Package prompt assembles the prompts sent to the generative-language
// upstream and parses its constrained replies. Pure functions, no I/O.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pcannon/weather-assistant/internal/models"
)

// NoneSentinel is what the city-extraction prompt instructs the model to
// return when the input names no city.
const NoneSentinel = "NONE"

// CityExtraction builds the constrained prompt for pulling a city name out
// of free-form text.
func CityExtraction(query string) string {
	var b strings.Builder
	b.WriteString("Extract the city name from the following text. ")
	b.WriteString("Reply with the bare city name only, no punctuation and no explanation. ")
	b.WriteString("If the text does not mention any city, reply with exactly " + NoneSentinel + ".\n\n")
	b.WriteString("Text: ")
	b.WriteString(query)
	return b.String()
}

// ParseCityReply normalizes a city-extraction reply: trims whitespace,
// strips one layer of surrounding single or double quotes, and maps the
// NONE sentinel or an empty result to absence (ok=false).
func ParseCityReply(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	if s == "" || strings.EqualFold(s, NoneSentinel) {
		return "", false
	}
	return s, true
}

// ChatSystem builds the system instruction for a chat turn: assistant
// persona, language directive, the current weather snapshot when known, and
// the client-held transcript.
func ChatSystem(weather *models.WeatherSnapshot, history []models.ChatTurn, language string) string {
	var b strings.Builder
	b.WriteString("You are a helpful weather and travel assistant for a chat application.\n")
	if language != "" {
		fmt.Fprintf(&b, "Always answer in the language with code %q.\n", language)
	}

	if weather != nil {
		dayPart := "night"
		if weather.IsDay {
			dayPart = "day"
		}
		fmt.Fprintf(&b, "\nCurrent weather in %s: %d°C, %s, humidity %d%%, wind %d km/h, %s time.\n",
			weather.Location, weather.Temperature, weather.Condition,
			weather.Humidity, weather.WindKmh, dayPart)
		if len(weather.Forecast) > 0 {
			b.WriteString("Forecast:\n")
			for _, d := range weather.Forecast {
				fmt.Fprintf(&b, "- %s: %d°C, %s\n", d.Day, d.Temperature, d.Condition)
			}
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range history {
			role := turn.Role
			if role != "user" && role != "assistant" {
				role = "user"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, turn.Text)
		}
	}

	b.WriteString("\nBe concise and friendly. Ground weather statements in the data above when it is present.")
	return b.String()
}

// Translation builds the structured-output prompt for translating a batch
// of messages. The model is asked for a JSON object keyed by message id.
func Translation(messages []models.TranslateMessage, targetLangName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following messages into %s. ", targetLangName)
	b.WriteString("Reply with a single JSON object mapping each message id to its translated text, and nothing else.\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.ID, m.Text)
	}
	return b.String()
}
