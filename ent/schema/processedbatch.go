package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProcessedBatch holds the schema definition for the ProcessedBatch entity:
// one audit row per successfully absorbed batch, recording how many
// messages it contained, which dispatch mode handled it, and whether any
// agent in it failed.
type ProcessedBatch struct {
	ent.Schema
}

// Fields of the ProcessedBatch.
func (ProcessedBatch) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("user_id").
			Immutable().
			Comment("Owning user; not a foreign key, this core has no user table of its own"),
		field.Int("message_count").
			Immutable(),
		field.Enum("mode").
			Values("coordinator", "direct").
			Immutable(),
		field.Bool("any_agent_failed").
			Default(false),
		field.Time("absorbed_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the ProcessedBatch.
func (ProcessedBatch) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "absorbed_at"),
		index.Fields("absorbed_at"),
	}
}
