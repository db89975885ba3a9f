package model

import "time"

type ActivityEntry struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ActivityQuery struct {
	ActorID string
	Action  string
	Limit   int
}
