package domain

import "time"

// Vehicle is a driver's registered vehicle as exposed by the vehicle registry.
type Vehicle struct {
	ID        string
	DriverID  string
	Plate     string
	Active    bool
	CreatedAt time.Time
}
