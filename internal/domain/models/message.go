package models

import "time"

// DeliveryState tags the delivery variant of a chat message.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// Delivery is the delivery variant of a chat message. RetryCount, MaxRetries and
// Reason are only meaningful in the failed state. Retrying is the caller's job.
type Delivery struct {
	State      DeliveryState `json:"state"`
	RetryCount int           `json:"retry_count,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// Pending returns the initial delivery state.
func Pending() Delivery { return Delivery{State: DeliveryPending} }

// Delivered returns the success state.
func Delivered() Delivery { return Delivery{State: DeliveryDelivered} }

// Failed returns a failure state carrying the retry bookkeeping.
func Failed(retryCount, maxRetries int, reason string) Delivery {
	return Delivery{State: DeliveryFailed, RetryCount: retryCount, MaxRetries: maxRetries, Reason: reason}
}

// CanRetry reports whether a failed message still has retries left.
func (d Delivery) CanRetry() bool {
	return d.State == DeliveryFailed && d.RetryCount < d.MaxRetries
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a text-analysis conversation.
type ChatMessage struct {
	ID        string      `json:"id"`
	Role      ChatRole    `json:"role"`
	Content   string      `json:"content"`
	Foods     []FoodEntry `json:"foods,omitempty"`
	Delivery  Delivery    `json:"delivery"`
	CreatedAt time.Time   `json:"created_at"`
}
