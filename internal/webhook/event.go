package webhook

import (
	"encoding/json"
	"strings"

	"github.com/sakif/codecraft/internal/apperror"
)

// Event is the decoded form of a delivery: exactly one of UserCreated,
// OrderCreated or Ignored.
type Event interface {
	eventType() string
}

// UserCreated is the identity provider's "user.created".
type UserCreated struct {
	Identity string
	Email    string
	Name     string
}

// OrderCreated is the payment provider's "order_created".
type OrderCreated struct {
	CustomerEmail string
	CustomerID    string
	OrderID       string
	TotalAmount   int64 // minor units, as sent
}

// Ignored is any event type nobody here acts on.
type Ignored struct {
	Type string
}

func (UserCreated) eventType() string  { return "user.created" }
func (OrderCreated) eventType() string { return "order_created" }
func (i Ignored) eventType() string    { return i.Type }

type clerkPayload struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		PrimaryEmailID string `json:"primary_email_address_id"`
		EmailAddresses []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// DecodeClerk turns a verified identity delivery into an Event.
func DecodeClerk(body []byte) (Event, error) {
	var p clerkPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperror.ValidationFailed("body", "malformed identity event")
	}
	if p.Type != "user.created" {
		return Ignored{Type: p.Type}, nil
	}
	if p.Data.ID == "" {
		return nil, apperror.ValidationFailed("data.id", "user.created without a user id")
	}

	var email string
	for _, addr := range p.Data.EmailAddresses {
		if addr.ID == p.Data.PrimaryEmailID {
			email = addr.EmailAddress
			break
		}
	}
	if email == "" && len(p.Data.EmailAddresses) > 0 {
		email = p.Data.EmailAddresses[0].EmailAddress
	}

	return UserCreated{
		Identity: p.Data.ID,
		Email:    email,
		Name:     strings.TrimSpace(p.Data.FirstName + " " + p.Data.LastName),
	}, nil
}

type lemonPayload struct {
	Meta struct {
		EventName string `json:"event_name"`
	} `json:"meta"`
	Data struct {
		ID         json.RawMessage `json:"id"`
		Attributes struct {
			UserEmail  string          `json:"user_email"`
			CustomerID json.RawMessage `json:"customer_id"`
			Total      int64           `json:"total"`
		} `json:"attributes"`
	} `json:"data"`
}

// DecodeLemonSqueezy turns a verified payment delivery into an Event.
func DecodeLemonSqueezy(body []byte) (Event, error) {
	var p lemonPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperror.ValidationFailed("body", "malformed payment event")
	}
	if p.Meta.EventName != "order_created" {
		return Ignored{Type: p.Meta.EventName}, nil
	}

	order := OrderCreated{
		CustomerEmail: strings.TrimSpace(p.Data.Attributes.UserEmail),
		CustomerID:    idString(p.Data.Attributes.CustomerID),
		OrderID:       idString(p.Data.ID),
		TotalAmount:   p.Data.Attributes.Total,
	}
	if order.CustomerEmail == "" {
		return nil, apperror.ValidationFailed("user_email", "order_created without a customer email")
	}
	return order, nil
}

// idString accepts an id sent either as a JSON string or a JSON number.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
