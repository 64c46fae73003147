package core

import "strings"

// excludedPathMarkers identify introductory piscine tracks whose exercise
// rewards do not count toward totals.
var excludedPathMarkers = []string{"piscine-go", "piscine-js", "piscine-ux"}

const excludedObjectType = "exercise"

// CountsTowardTotal is the record filtering policy shared by every cumulative
// computation. A record is excluded only when its path contains one of the
// piscine markers and its object type is "exercise"; piscine, module, raid and
// project rewards under the same paths still count.
func CountsTowardTotal(r TransactionRecord) bool {
	path := strings.ToLower(r.Path)
	for _, marker := range excludedPathMarkers {
		if strings.Contains(path, marker) {
			return strings.ToLower(r.ObjectType()) != excludedObjectType
		}
	}
	return true
}
