package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeShiftDeterministicAndPeriodic(t *testing.T) {
	for _, role := range Roles {
		for _, group := range Groups {
			turns := groupTables[role][group]
			if len(turns) == 0 {
				continue
			}
			for week := 0; week < 10; week++ {
				first, ok := ComputeShift(role, group, week)
				require.True(t, ok)
				second, ok := ComputeShift(role, group, week)
				require.True(t, ok)
				assert.Equal(t, first, second)

				wrapped, ok := ComputeShift(role, group, week+len(turns))
				require.True(t, ok)
				assert.Equal(t, first, wrapped, "rotation must be periodic in the table length")
			}
		}
	}
}

func TestComputeShiftDoctorRotation(t *testing.T) {
	w0, ok := ComputeShift(RoleDoctor, Group1, 0)
	require.True(t, ok)
	assert.Equal(t, Window{Start: "08:00", End: "16:00"}, w0)

	w1, ok := ComputeShift(RoleDoctor, Group1, 1)
	require.True(t, ok)
	assert.Equal(t, Window{Start: "16:00", End: "00:00"}, w1)

	w2, ok := ComputeShift(RoleDoctor, Group1, 2)
	require.True(t, ok)
	assert.Equal(t, Window{Start: "00:00", End: "08:00"}, w2)

	// Group 2 starts one position ahead of group 1 in the same cycle.
	g2, ok := ComputeShift(RoleDoctor, Group2, 0)
	require.True(t, ok)
	assert.Equal(t, w1, g2)
}

func TestComputeShiftUnknownRoleOrGroup(t *testing.T) {
	_, ok := ComputeShift("Janitor", Group1, 0)
	assert.False(t, ok)

	_, ok = ComputeShift(RoleDoctor, "Group 9", 0)
	assert.False(t, ok)
}

func TestComputeShiftNegativeWeek(t *testing.T) {
	w, ok := ComputeShift(RoleDoctor, Group1, -1)
	require.True(t, ok)
	assert.Equal(t, Window{Start: "00:00", End: "08:00"}, w)
}

func TestRestDayDeterministicInRange(t *testing.T) {
	for badge := 0; badge < 30; badge++ {
		for week := -5; week < 15; week++ {
			day := RestDay(badge, week)
			assert.GreaterOrEqual(t, day, 0)
			assert.LessOrEqual(t, day, 6)
			assert.Equal(t, day, RestDay(badge, week), "rest day must be stable for fixed inputs")
		}
	}
	assert.Equal(t, 3, RestDay(1, 2))
	assert.Equal(t, 0, RestDay(5, 2))
}

func TestRestDayShiftsWeekly(t *testing.T) {
	badge := 4
	day := RestDay(badge, 10)
	next := RestDay(badge, 11)
	assert.Equal(t, (day+1)%7, next)
}

func TestWeeksSince(t *testing.T) {
	epoch := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, WeeksSince(epoch, epoch))
	assert.Equal(t, 0, WeeksSince(epoch, epoch.AddDate(0, 0, 6)))
	assert.Equal(t, 1, WeeksSince(epoch, epoch.AddDate(0, 0, 7)))
	assert.Equal(t, 4, WeeksSince(epoch, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, WeeksSince(epoch, epoch.AddDate(0, 0, -3)))
}

func TestTicketPrefix(t *testing.T) {
	assert.Equal(t, "EMER", TicketPrefix("Emergency"))
	assert.Equal(t, "CARD", TicketPrefix("Cardiology"))
	assert.Equal(t, "ICU", TicketPrefix("ICU"))
}

func TestRoomPrefix(t *testing.T) {
	assert.Equal(t, "EME", RoomPrefix("Emergency"))
	assert.Equal(t, "ICU", RoomPrefix("ICU"))
}

func TestDefaultWindow(t *testing.T) {
	w, ok := DefaultWindow(RolePharmacist)
	require.True(t, ok)
	assert.Equal(t, Window{Start: "10:00", End: "18:00"}, w)

	_, ok = DefaultWindow("Janitor")
	assert.False(t, ok)
}

func TestValidRoomType(t *testing.T) {
	assert.True(t, ValidRoomType("Emergency", "Trauma room"))
	assert.False(t, ValidRoomType("Laboratory", "Single"))
	assert.False(t, ValidRoomType("Nowhere", "Single"))
}
