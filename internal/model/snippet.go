// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Snippet represents a saved code snippet.
// The `json:"..."` tags tell Go's encoding/json package how to serialize/deserialize
// this struct to/from JSON. This is called a "struct tag": metadata attached to fields.
//
// OwnerName is DENORMALIZED: it is the owner's display name at creation time.
// Renaming the user does not rewrite old snippets.
type Snippet struct {
	ID            string    `json:"id"`
	OwnerIdentity string    `json:"ownerIdentity"`
	OwnerName     string    `json:"ownerName"`
	Title         string    `json:"title"`
	Language      string    `json:"language"`
	Code          string    `json:"code"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Comment is a note left on a snippet. AuthorName is denormalized the same
// way Snippet.OwnerName is.
type Comment struct {
	ID             string    `json:"id"`
	SnippetID      string    `json:"snippetId"`
	AuthorIdentity string    `json:"authorIdentity"`
	AuthorName     string    `json:"authorName"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Star joins a user to a snippet they starred. (UserIdentity, SnippetID) is
// unique in the store.
type Star struct {
	ID           string    `json:"id"`
	UserIdentity string    `json:"userIdentity"`
	SnippetID    string    `json:"snippetId"`
	CreatedAt    time.Time `json:"createdAt"`
}
