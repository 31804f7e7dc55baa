package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Movie struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	Genre             string         `json:"genre" db:"genre"`
	Year              int            `json:"year" db:"year"`
	Price             float64        `json:"price" db:"price"`
	IsDeleted         bool           `json:"-" db:"is_deleted"`
	RestrictedRegions pq.StringArray `json:"-" db:"restricted_regions"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// Reasons an item can be rejected by the purchasability check.
const (
	ReasonNotFound         = "not_found"
	ReasonUnavailable      = "unavailable"
	ReasonRegionRestricted = "region_restricted"
	ReasonAlreadyOwned     = "already_owned"
)

type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

func (m *Movie) RestrictedIn(region string) bool {
	if region == "" {
		return false
	}
	for _, r := range m.RestrictedRegions {
		if r == region {
			return true
		}
	}
	return false
}
