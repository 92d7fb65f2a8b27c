package models

// All lists every model managed by auto-migration.
func All() []any {
	return []any{
		&Transaction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
