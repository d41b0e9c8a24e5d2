// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the local record of an identity issued by the external identity
// provider.
//
// Identity is the provider's opaque user ID (e.g. "user_2abc..."). It is the
// unique key every other collection refers to. Name is copied onto snippets
// and comments at write time; later changes never propagate back to them.
//
// The pro fields are written only by the payment webhook path.
type User struct {
	ID                     string     `json:"id"`
	Identity               string     `json:"identity"`
	Email                  string     `json:"email"`
	Name                   string     `json:"name"`
	IsPro                  bool       `json:"isPro"`
	ProSince               *time.Time `json:"proSince,omitempty"`
	LemonSqueezyCustomerID string     `json:"lemonSqueezyCustomerId,omitempty"`
	LemonSqueezyOrderID    string     `json:"lemonSqueezyOrderId,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// ProUpgrade is the set of fields the payment webhook writes onto a user.
type ProUpgrade struct {
	Email      string
	CustomerID string
	OrderID    string
	At         time.Time
}
