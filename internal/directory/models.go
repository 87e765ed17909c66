package directory

import "time"

// Identity is an enrolled participant as known to the user directory.
// The directory owns these records; this service only reads them, apart from operator provisioning.
type Identity struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"fullname"`
	Phone string `json:"phone" db:"phone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
