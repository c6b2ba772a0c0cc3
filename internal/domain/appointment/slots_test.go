package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlots_StandardDay(t *testing.T) {
	p := Provider{StartTime: "09:00", EndTime: "17:00"}

	slots, err := Slots(p)
	require.NoError(t, err)

	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "16:30", slots[len(slots)-1])
	for _, s := range slots {
		assert.Less(t, s, "17:00", "no slot at or after the end time")
	}
}

func TestSlots_HalfOpenInterval(t *testing.T) {
	p := Provider{StartTime: "10:00", EndTime: "10:30"}
	slots, err := Slots(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)
}

func TestSlots_EmptyWindow(t *testing.T) {
	p := Provider{StartTime: "10:00", EndTime: "10:00"}
	slots, err := Slots(p)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlots_UnalignedStartRoundsUp(t *testing.T) {
	p := Provider{StartTime: "09:15", EndTime: "11:00"}
	slots, err := Slots(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:30", "10:00", "10:30"}, slots)
}

func TestSlots_BadClock(t *testing.T) {
	_, err := Slots(Provider{StartTime: "25:00", EndTime: "17:00"})
	require.Error(t, err)

	_, err = Slots(Provider{StartTime: "nine", EndTime: "17:00"})
	require.Error(t, err)
}

func TestDateAvailable(t *testing.T) {
	monday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC) // a Monday
	sunday := monday.AddDate(0, 0, -1)

	tests := []struct {
		name string
		days []string
		date time.Time
		want bool
	}{
		{name: "listed weekday", days: []string{"Monday", "Wednesday"}, date: monday, want: true},
		{name: "unlisted weekday", days: []string{"Monday", "Wednesday"}, date: sunday, want: false},
		{name: "empty set means every day", days: nil, date: sunday, want: true},
		{name: "match is case-sensitive", days: []string{"monday"}, date: monday, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DateAvailable(Provider{Days: tt.days}, tt.date)
			assert.Equal(t, tt.want, got)
		})
	}
}
