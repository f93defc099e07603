package models

import "time"

// WeatherSnapshot is the compact forecast summary returned to the front-end.
// Derived per request from upstream data; never persisted.
type WeatherSnapshot struct {
	Location    string        `json:"location"`
	Temperature int           `json:"temperature"` // °C, rounded
	Condition   string        `json:"condition"`
	Humidity    int           `json:"humidity"`
	WindKmh     int           `json:"windKmh"`
	IsDay       bool          `json:"isDay"`
	Forecast    []ForecastDay `json:"forecast,omitempty"`
}

// ForecastDay is one entry of the daily summary, at most five per snapshot.
type ForecastDay struct {
	Day         string `json:"day"`
	Temperature int    `json:"temperature"`
	Condition   string `json:"condition"`
}

// ChatTurn is a single turn of the client-held transcript. The server keeps no
// conversation state; turns only exist to be folded into a prompt.
type ChatTurn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// GenerationRequest is one ephemeral call to the generative-language upstream.
type GenerationRequest struct {
	Prompt            string
	SystemInstruction string
	// JSONOutput asks the upstream to constrain its reply to parseable JSON.
	// The shape of that JSON is the caller's business.
	JSONOutput bool
}

// TranslateMessage is one entry of a translation batch, addressed by id.
type TranslateMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
