package visit

import "strings"

// Designation is a government position used as the unit of work assignment.
type Designation string

const (
	DesignationRDO       Designation = "Revenue Divisional Officer (RDO)"
	DesignationTahsildar Designation = "Tahsildar"
	DesignationBDO       Designation = "Block Development Officer (BDO)"
	DesignationEducation Designation = "Chief/District Educational Officer (CEO/DEO)"
	DesignationDDHS      Designation = "Deputy Director of Health Services (DDHS)"
	DesignationDSWO      Designation = "District Social Welfare Officer (DSWO)"
	DesignationEngineer  Designation = "Executive Engineer (PWD/Highways/Rural Dev)"
	DesignationDSO       Designation = "District Supply Officer (DSO)"
	DesignationCollector Designation = "District Collector"
)

type designationInfo struct {
	abbreviation string
	prefix       string
}

var designations = map[Designation]designationInfo{
	DesignationRDO:       {"RDO", "RDO"},
	DesignationTahsildar: {"TAH", "TAH"},
	DesignationBDO:       {"BDO", "BDO"},
	DesignationEducation: {"EDU", "EDU"},
	DesignationDDHS:      {"DDHS", "DDHS"},
	DesignationDSWO:      {"DSWO", "DSWO"},
	DesignationEngineer:  {"ENG", "ENG"},
	DesignationDSO:       {"DSO", "DSO"},
	DesignationCollector: {"IAS", "DC"},
}

// FieldDesignations are the positions a visit can be posted to.
var FieldDesignations = []Designation{
	DesignationRDO,
	DesignationTahsildar,
	DesignationBDO,
	DesignationEducation,
	DesignationDDHS,
	DesignationDSWO,
	DesignationEngineer,
	DesignationDSO,
}

func (d Designation) String() string { return string(d) }

// IsValid returns true for any member of the enumeration, including District Collector.
func (d Designation) IsValid() bool {
	_, ok := designations[d]
	return ok
}

// IsAssignable reports whether visits can be posted to d.
func (d Designation) IsAssignable() bool {
	return d.IsValid() && d != DesignationCollector
}

// Abbreviation returns the short label shown on dashboards.
func (d Designation) Abbreviation() string {
	if info, ok := designations[d]; ok {
		return info.abbreviation
	}
	return string(d)
}

// EmployeePrefix returns the prefix employee ids carry for this position.
func (d Designation) EmployeePrefix() string {
	return designations[d].prefix
}

// ParseDesignation accepts the full label, the abbreviation or the employee id
// prefix, case-insensitively.
func ParseDesignation(raw string) (Designation, bool) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", false
	}
	for d, info := range designations {
		if strings.EqualFold(key, string(d)) ||
			strings.EqualFold(key, info.abbreviation) ||
			strings.EqualFold(key, info.prefix) {
			return d, true
		}
	}
	return "", false
}

// DesignationForEmployeeID infers the designation from an employee id prefix.
func DesignationForEmployeeID(employeeID string) (Designation, bool) {
	id := strings.ToUpper(strings.TrimSpace(employeeID))
	var best Designation
	bestLen := 0
	for d, info := range designations {
		if strings.HasPrefix(id, info.prefix) && len(info.prefix) > bestLen {
			best, bestLen = d, len(info.prefix)
		}
	}
	return best, bestLen > 0
}
