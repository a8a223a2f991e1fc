package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CapacityTrimEvent holds the schema definition for the CapacityTrimEvent
// entity: one audit row each time a user's message or conversation queue
// overflowed its capacity cap and the oldest entries were trimmed, so
// operators can see when a user is producing faster than they are being
// absorbed.
type CapacityTrimEvent struct {
	ent.Schema
}

// Fields of the CapacityTrimEvent.
func (CapacityTrimEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.Enum("queue").
			Values("messages", "conversations").
			Immutable(),
		field.Int("trimmed_count").
			Immutable().
			Comment("Number of oldest entries discarded in this event"),
		field.Time("occurred_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the CapacityTrimEvent.
func (CapacityTrimEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "occurred_at"),
	}
}
