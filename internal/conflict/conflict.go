// Package conflict implements the final cross-device checks of a generation
// run: no physical resource is claimed twice, device ids are valid and
// unique, and no two contributions define the same vocabulary key.
//
// The checks only make sense on complete data, so the engine calls them once
// after every device group, the interrupt hub and the firmware subsystems
// have been allocated.
package conflict

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Claim is the list of values one owner holds: the leaf resource names of a
// device, or the vocabulary keys it contributes.
type Claim struct {
	Owner  string
	Values []string
}

// DevID is the raw dev_id of one device.
type DevID struct {
	Owner string
	Value any
}

// CollectLeafValues flattens a requirement mapping into its leaf resource
// names. Keys are ignored.
func CollectLeafValues(req catalog.Requires) []string {
	return req.Leaves()
}

// FindDuplicates returns every value occurring more than once, sorted.
func FindDuplicates(values []string) []string {
	seen := make(map[string]int, len(values))
	for _, v := range values {
		seen[v]++
	}
	out := []string{}
	for v, n := range seen {
		if n > 1 {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// CheckNoResourceConflicts fails when any resource name is claimed more than
// once, within one owner or across owners.
func CheckNoResourceConflicts(claims []Claim) error {
	if dups := describe(claims); dups != "" {
		return errcode.New(errcode.ResourceConflict, "", "Duplicate resources are detected: %s", dups)
	}
	return nil
}

// CheckContributionKeys fails when two contributions define the same key.
func CheckContributionKeys(contributions []Claim) error {
	if dups := describe(contributions); dups != "" {
		return errcode.New(errcode.DuplicateVocabularyKey, "", "Duplicate vocabulary keys are detected: %s", dups)
	}
	return nil
}

// describe renders every duplicated value with the owners holding it, or ""
// when there is none.
func describe(claims []Claim) string {
	var all []string
	owners := make(map[string][]string)
	for _, c := range claims {
		for _, v := range c.Values {
			all = append(all, v)
			if !slices.Contains(owners[v], c.Owner) {
				owners[v] = append(owners[v], c.Owner)
			}
		}
	}
	dups := FindDuplicates(all)
	if len(dups) == 0 {
		return ""
	}
	parts := make([]string, len(dups))
	for i, d := range dups {
		parts[i] = fmt.Sprintf("%s (%s)", d, strings.Join(owners[d], ", "))
	}
	return strings.Join(parts, ", ")
}

// CheckDevIDDomain fails when any id is not an integer in [0, maxAddress].
// Every id is checked and all offenders are reported.
func CheckDevIDDomain(ids []DevID, maxAddress int) error {
	var bad []string
	for _, id := range ids {
		n, ok := config.AsInt(id.Value)
		if !ok || n < 0 || n > int64(maxAddress) {
			bad = append(bad, fmt.Sprintf("%v (%s)", render(id.Value), id.Owner))
		}
	}
	if len(bad) > 0 {
		return errcode.New(errcode.InvalidDeviceID, "", "Malformed dev_id is detected: %s, integers 0..%d are expected", strings.Join(bad, ", "), maxAddress)
	}
	return nil
}

// CheckDevIDUniqueness fails when two devices share an id.
func CheckDevIDUniqueness(ids []DevID) error {
	claims := make([]Claim, 0, len(ids))
	for _, id := range ids {
		claims = append(claims, Claim{Owner: id.Owner, Values: []string{render(id.Value)}})
	}
	if dups := describe(claims); dups != "" {
		return errcode.New(errcode.DuplicateDeviceID, "", "Duplicate dev_id(s) are detected: %s", dups)
	}
	return nil
}

// render formats a raw id so that the string "3", the float 3.0 and the
// integer 3 stay distinguishable in messages and in duplicate detection.
func render(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".NI") {
			s += ".0"
		}
		return s
	}
	return fmt.Sprint(v)
}
