package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppendHistoryTrims(t *testing.T) {
	r := &Record{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r.AppendHistory(Location{Lat: float64(i)}, "dev", base.Add(time.Duration(i)*time.Hour), 3)
	}

	assert.Len(t, r.PrevLocations, 3)
	assert.Len(t, r.PrevDevices, 3)
	assert.Len(t, r.PrevLogins, 3)

	// Oldest entries go first.
	assert.Equal(t, 2.0, r.PrevLocations[0].Lat)
	assert.Equal(t, 4.0, r.PrevLocations[2].Lat)
}

func TestAppendHistoryUnbounded(t *testing.T) {
	r := &Record{}
	for i := 0; i < 100; i++ {
		r.AppendHistory(Location{}, "dev", time.Now(), 0)
	}
	assert.Len(t, r.PrevLocations, 100)
}

func TestCloneIsDeep(t *testing.T) {
	r := &Record{
		PrevLocations: []Location{{Lat: 1}},
		PrevDevices:   []string{"a"},
		PrevLogins:    []time.Time{time.Now()},
		Custom:        map[string]string{"username": "alice"},
	}

	cp := r.Clone()
	cp.PrevLocations[0].Lat = 99
	cp.PrevDevices[0] = "b"
	cp.Custom["username"] = "mallory"

	assert.Equal(t, 1.0, r.PrevLocations[0].Lat)
	assert.Equal(t, "a", r.PrevDevices[0])
	assert.Equal(t, "alice", r.Custom["username"])
}
