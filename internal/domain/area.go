package domain

import "time"

// Area codes seeded by the initial migration.
const (
	AreaCodeIT         = "IT"
	AreaCodeBuilding   = "BUILDING"
	AreaCodeElectrical = "ELECTRICAL"
)

// Area is the organizational department a ticket is routed to.
type Area struct {
	ID        string
	Code      string
	Name      string
	CreatedAt time.Time
}
