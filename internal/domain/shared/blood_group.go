package shared

import (
	"fmt"
	"sort"
	"strings"
)

// BloodGroup is one of the eight ABO/Rh types used to partition stock, bags and requests.
type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

var bloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg,
	BloodGroupBPos, BloodGroupBNeg,
	BloodGroupABPos, BloodGroupABNeg,
	BloodGroupOPos, BloodGroupONeg,
}

// AllBloodGroups returns every blood group in lock order.
func AllBloodGroups() []BloodGroup {
	groups := make([]BloodGroup, len(bloodGroups))
	copy(groups, bloodGroups)
	SortBloodGroups(groups)
	return groups
}

// ParseBloodGroup normalizes user input ("o+", " AB− ") into a BloodGroup.
func ParseBloodGroup(s string) (BloodGroup, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "−", "-")
	normalized = strings.ReplaceAll(normalized, " ", "")

	group := BloodGroup(normalized)
	if !group.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBloodGroup, s)
	}
	return group, nil
}

// Valid reports whether g is one of the eight known groups.
func (g BloodGroup) Valid() bool {
	for _, known := range bloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

func (g BloodGroup) String() string {
	return string(g)
}

// SortBloodGroups sorts groups in place into the global lock order (lexical).
// Every code path that locks more than one group must lock in this order.
func SortBloodGroups(groups []BloodGroup) {
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
}
