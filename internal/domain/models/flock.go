package models

import "time"

// FlockStatus is the lifecycle state of a flock.
type FlockStatus string

const (
	FlockActive   FlockStatus = "ACTIVE"
	FlockSold     FlockStatus = "SOLD"
	FlockArchived FlockStatus = "ARCHIVED"
)

// Flock is a cohort of birds tracked as a unit. Invariant at every settled
// state: HensCount + RoostersCount == CurrentCount, and
// CurrentCount == InitialCount + adds - removals - mortality.
type Flock struct {
	ID            string      `bson:"_id"`
	Name          string      `bson:"name"`
	Breed         string      `bson:"breed"`
	HatchDate     time.Time   `bson:"hatchDate"`
	InitialCount  int         `bson:"initialCount"`
	CurrentCount  int         `bson:"currentCount"`
	HensCount     int         `bson:"hensCount"`
	RoostersCount int         `bson:"roostersCount"`
	Status        FlockStatus `bson:"status"`
	CreatedAt     time.Time   `bson:"createdAt"`
	UpdatedAt     time.Time   `bson:"updatedAt"`
}

// AgeDays returns the flock age in days at the given date.
func (f Flock) AgeDays(at time.Time) int {
	return int(at.Sub(f.HatchDate).Hours() / 24)
}

// VaccinationRecord captures one vaccination event for a flock.
type VaccinationRecord struct {
	ID              string     `bson:"_id"`
	FlockID         string     `bson:"flockId"`
	VaccineName     string     `bson:"vaccineName"`
	DosesUsed       float64    `bson:"dosesUsed"`
	BirdsVaccinated int        `bson:"birdsVaccinated"`
	Date            string     `bson:"date"`
	NextDueDate     *time.Time `bson:"nextDueDate,omitempty"`
	Vaccinator      string     `bson:"vaccinator"`
	Notes           string     `bson:"notes,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt"`
}
