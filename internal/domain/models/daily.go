package models

import "time"

// DateLayout is the canonical calendar-date format used as the DailyAggregate
// key. Lexicographic order on these strings matches chronological order.
const DateLayout = "2006-01-02"

// DateKey formats a time as a canonical calendar-date key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DailyAggregate is the one-row-per-calendar-date summary of farm activity.
// Rows are created lazily; FlockTotal is seeded from the most recent prior
// date and every other numeric field starts at zero.
type DailyAggregate struct {
	ID   string `bson:"_id"`
	Date string `bson:"date"`

	EggsCollected int `bson:"eggsCollected"`
	EggsBroken    int `bson:"eggsBroken"`
	EggsGood      int `bson:"eggsGood"`

	EggsSold   int     `bson:"eggsSold"`
	CratesSold int     `bson:"cratesSold"`
	Income     float64 `bson:"income"`

	FeedUsedKg float64 `bson:"feedUsedKg"`
	FeedCost   float64 `bson:"feedCost"`

	MortalityCount   int    `bson:"mortalityCount"`
	MortalityReasons string `bson:"mortalityReasons"`

	FlockAdded   int `bson:"flockAdded"`
	FlockRemoved int `bson:"flockRemoved"`
	FlockTotal   int `bson:"flockTotal"`

	Notes     string    `bson:"notes"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// NewDailyAggregate builds a fully zero-initialized row for the given date,
// seeded with the prior farm-wide flock total.
func NewDailyAggregate(date string, priorFlockTotal int, now time.Time) *DailyAggregate {
	return &DailyAggregate{
		Date:       date,
		FlockTotal: priorFlockTotal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
