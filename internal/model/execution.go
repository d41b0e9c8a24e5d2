package model

import "time"

// Execution is one recorded run of code. Records are append-only.
//
// Output and Error are pointers because "no output" and "empty output" are
// different things to the stats page.
type Execution struct {
	ID            string    `json:"id"`
	OwnerIdentity string    `json:"ownerIdentity"`
	Language      string    `json:"language"`
	Code          string    `json:"code"`
	Output        *string   `json:"output,omitempty"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UserStats is derived from a user's executions and starred snippets on
// every request. Nothing here is stored.
type UserStats struct {
	TotalExecutions     int            `json:"totalExecutions"`
	LanguagesCount      int            `json:"languagesCount"`
	Languages           []string       `json:"languages"`
	LanguageStats       map[string]int `json:"languageStats"`
	FavoriteLanguage    string         `json:"favoriteLanguage"`
	Last24Hours         int            `json:"last24Hours"`
	TotalStarred        int            `json:"totalStarred"`
	MostStarredLanguage string         `json:"mostStarredLanguage"`
}
