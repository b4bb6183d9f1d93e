package domain

import "time"

// Account is the server-side account record. BSON field names match the
// existing collection written by the legacy backend, including the stringly
// typed admin flag.
type Account struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Email        string     `bson:"email" json:"email"`
	Username     string     `bson:"username" json:"username"`
	PasswordHash string     `bson:"password" json:"-"`
	LicenseKey   string     `bson:"key" json:"key"`
	HardwareID   string     `bson:"hwid" json:"hwid"`
	Location     string     `bson:"location" json:"location"`
	Latitude     string     `bson:"latitude" json:"latitude"`
	Longitude    string     `bson:"longitude" json:"longitude"`
	AccountAdmin string     `bson:"account_admin" json:"account_admin"`
	KeyExpiry    *time.Time `bson:"key_expiry,omitempty" json:"key_expiry,omitempty"`
	Role         string     `bson:"cargo" json:"cargo"`
	Status       string     `bson:"status" json:"status"`
}

// Account status values pushed through the realtime channel.
const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)

// IsAdmin interprets the legacy string flag.
func (a Account) IsAdmin() bool {
	return a.AccountAdmin == "true"
}

// Session is the client-side view of an authenticated identity.
type Session struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	Token    string `json:"token"`
}
