// Package rotation holds the hospital's static scheduling configuration and
// the pure functions that derive shift windows and rest days from it. The
// role, group and department sets are closed; nothing here touches storage.
package rotation

import (
	"strings"
	"time"
)

// Staff roles. Every employee carries exactly one.
const (
	RoleDoctor        = "Doctor"
	RoleNurse         = "Nurse"
	RoleTechnician    = "Technician"
	RoleAdministrator = "Administrator"
	RoleReceptionist  = "Receptionist"
	RolePharmacist    = "Pharmacist"
	RoleAuxiliary     = "Auxiliary"
)

// Rotation groups. The group selects which row of a role's cyclic shift
// table applies on a given week.
const (
	Group1 = "Group 1"
	Group2 = "Group 2"
	Group3 = "Group 3"
)

// Roles lists every known role.
var Roles = []string{
	RoleDoctor,
	RoleNurse,
	RoleTechnician,
	RoleAdministrator,
	RoleReceptionist,
	RolePharmacist,
	RoleAuxiliary,
}

// Groups lists every rotation group.
var Groups = []string{Group1, Group2, Group3}

// Departments lists every hospital department.
var Departments = []string{
	"Emergency",
	"Hospitalization",
	"Outpatient",
	"Pediatrics",
	"Gynecology",
	"Laboratory",
	"Pharmacy",
	"Administration",
	"Surgery",
	"Radiology",
	"Cardiology",
	"ICU",
}

// RoomTypes enumerates the permitted room types per department. Departments
// without inpatient rooms map to an empty list.
var RoomTypes = map[string][]string{
	"Emergency":       {"Observation", "Single cubicle", "Shared cubicle", "Trauma room", "Shock area"},
	"Hospitalization": {"Single", "Double", "Multiple", "Isolation"},
	"Outpatient":      {"Consultation cubicle", "Minor procedures room"},
	"Pediatrics":      {"Single", "Shared", "Companion bed", "Pediatric isolation"},
	"Gynecology":      {"Prepartum", "Postpartum", "Single", "Double", "VIP suite"},
	"Laboratory":      {},
	"Pharmacy":        {},
	"Administration":  {},
	"Surgery":         {"Operating room", "Recovery area"},
	"Radiology":       {"Exam room", "Waiting area"},
	"Cardiology":      {"Single", "Double", "Cardiac ICU"},
	"ICU":             {"Single with life support", "Isolation"},
}

// Window is a shift time window. Times are "HH:MM"; "00:00" as an end means
// midnight of the following day.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// defaultWindows is the fallback window per role, used when an employee has
// no rotation group assigned.
var defaultWindows = map[string]Window{
	RoleDoctor:        {Start: "08:00", End: "16:00"},
	RoleNurse:         {Start: "07:00", End: "15:00"},
	RoleTechnician:    {Start: "09:00", End: "17:00"},
	RoleAdministrator: {Start: "08:00", End: "12:00"},
	RoleReceptionist:  {Start: "08:00", End: "16:00"},
	RolePharmacist:    {Start: "10:00", End: "18:00"},
	RoleAuxiliary:     {Start: "07:00", End: "13:00"},
}

// groupTables holds the cyclic shift tables. Doctors and nurses rotate
// through three windows over three weeks, offset per group so the hospital
// is covered around the clock; support roles keep a fixed per-group window.
var groupTables = map[string]map[string][]Window{
	RoleDoctor: {
		Group1: {{"08:00", "16:00"}, {"16:00", "00:00"}, {"00:00", "08:00"}},
		Group2: {{"16:00", "00:00"}, {"00:00", "08:00"}, {"08:00", "16:00"}},
		Group3: {{"00:00", "08:00"}, {"08:00", "16:00"}, {"16:00", "00:00"}},
	},
	RoleNurse: {
		Group1: {{"07:00", "15:00"}, {"15:00", "23:00"}, {"23:00", "07:00"}},
		Group2: {{"15:00", "23:00"}, {"23:00", "07:00"}, {"07:00", "15:00"}},
		Group3: {{"23:00", "07:00"}, {"07:00", "15:00"}, {"15:00", "23:00"}},
	},
	RoleAdministrator: {
		Group1: {{"08:00", "16:00"}},
		Group2: {{"08:00", "16:00"}},
		Group3: {{"08:00", "16:00"}},
	},
	RoleTechnician: {
		Group1: {{"09:00", "17:00"}},
		Group2: {{"10:00", "18:00"}},
		Group3: {{"11:00", "19:00"}},
	},
	RoleReceptionist: {
		Group1: {{"08:00", "16:00"}},
		Group2: {{"09:00", "17:00"}},
		Group3: {{"10:00", "18:00"}},
	},
	RolePharmacist: {
		Group1: {{"10:00", "18:00"}},
		Group2: {{"11:00", "19:00"}},
		Group3: {{"12:00", "20:00"}},
	},
	RoleAuxiliary: {
		Group1: {{"07:00", "13:00"}},
		Group2: {{"08:00", "14:00"}},
		Group3: {{"09:00", "15:00"}},
	},
}

// ComputeShift returns the shift window for a role/group on a given rotation
// week, cycling through the group's table. ok is false when the role/group
// combination has no configured table; callers render a placeholder, never
// an error.
func ComputeShift(role, group string, weekIndex int) (Window, bool) {
	turns, ok := groupTables[role][group]
	if !ok || len(turns) == 0 {
		return Window{}, false
	}
	return turns[mod(weekIndex, len(turns))], true
}

// DefaultWindow returns the role-level fallback window.
func DefaultWindow(role string) (Window, bool) {
	w, ok := defaultWindows[role]
	return w, ok
}

// RestDay returns the weekly rest-day offset (0-6) for an employee on a
// rotation week. Pure round robin on the badge number so rest days spread
// across the staff and shift one position each week.
func RestDay(badgeNumber, rotationWeek int) int {
	return mod(badgeNumber+rotationWeek, 7)
}

// WeeksSince counts whole weeks elapsed from the epoch to the given date.
// Dates before the epoch yield negative indexes, which ComputeShift and
// RestDay still map into their cycles.
func WeeksSince(epoch, date time.Time) int {
	days := int(date.Sub(epoch).Hours() / 24)
	if days < 0 {
		return -((-days + 6) / 7)
	}
	return days / 7
}

// ValidRole reports whether the role is part of the closed set.
func ValidRole(role string) bool {
	_, ok := defaultWindows[role]
	return ok
}

// ValidGroup reports whether the group label is one of the three cohorts.
func ValidGroup(group string) bool {
	return group == Group1 || group == Group2 || group == Group3
}

// ValidDepartment reports whether the department is part of the closed set.
func ValidDepartment(dep string) bool {
	_, ok := RoomTypes[dep]
	return ok
}

// ValidRoomType reports whether a room type is allowed in a department.
func ValidRoomType(dep, roomType string) bool {
	for _, t := range RoomTypes[dep] {
		if t == roomType {
			return true
		}
	}
	return false
}

// TicketPrefix derives the check-in ticket prefix from a department name:
// the first four characters, uppercased.
func TicketPrefix(department string) string {
	prefix := department
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return strings.ToUpper(prefix)
}

// RoomPrefix derives the room-number prefix from a department name: the
// first three characters, uppercased.
func RoomPrefix(department string) string {
	prefix := department
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return strings.ToUpper(prefix)
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
