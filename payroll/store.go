/*
store.go - Persistence interface for rates, missions and settings

PURPOSE:
  Defines the interface between the record store service (Registry) and
  the database. Different implementations can use SQLite or memory.

CONTRACT:
  - List methods return copies in insertion order.
  - Get methods return (nil, nil) when the id is unknown.
  - Save methods insert or update in place; an update keeps the record's
    position in insertion order.
  - Delete methods succeed when the id is unknown.
  - ReplaceAll swaps the whole state atomically: on error, the previous
    state is untouched.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: In-memory for testing

SEE ALSO:
  - registry.go: Higher-level service using Store
*/
package payroll

import "context"

// Store persists the record collections.
type Store interface {
	ListRates(ctx context.Context) ([]Rate, error)
	GetRate(ctx context.Context, id string) (*Rate, error)
	SaveRate(ctx context.Context, rate Rate) error
	DeleteRate(ctx context.Context, id string) error

	ListMissions(ctx context.Context) ([]Mission, error)
	GetMission(ctx context.Context, id string) (*Mission, error)
	SaveMission(ctx context.Context, mission Mission) error
	DeleteMission(ctx context.Context, id string) error

	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error

	ReplaceAll(ctx context.Context, state State) error
}
