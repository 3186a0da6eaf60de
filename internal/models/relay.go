package models

import (
	"errors"
	"time"
)

type RelayStatus string

const (
	RelayPending RelayStatus = "pending"
	RelaySending RelayStatus = "sending"
	RelaySent    RelayStatus = "sent"
	RelayError   RelayStatus = "error"
)

var ErrRelayIncomplete = errors.New("missing token or message")

// RelayRequest is a queued outbound message for the relay worker.
type RelayRequest struct {
	ID            string      `json:"id"`
	DeliveryToken string      `json:"-"`
	Message       string      `json:"message"`
	Category      string      `json:"category"`
	Urgent        bool        `json:"urgent"`
	Status        RelayStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	SentAt        *time.Time  `json:"sent_at,omitempty"`
}

// Validate checks the fields the relay worker needs to deliver the request.
func (r *RelayRequest) Validate() error {
	if r.DeliveryToken == "" || r.Message == "" {
		return ErrRelayIncomplete
	}
	return nil
}
