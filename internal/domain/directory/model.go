package directory

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a bookable clinician. Inactive doctors keep their history but
// accept no new bookings.
type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Specialty string    `db:"specialty" json:"specialty,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
