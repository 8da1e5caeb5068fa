package employee

import (
	"context"

	"github.com/sharath018/field-visit-backend/internal/visit"
)

// DefaultRegistry is loaded on first start so a fresh install can register
// accounts. Production registries are imported into the employees table.
var DefaultRegistry = []Employee{
	{EmployeeID: "DC001", FullName: "District Collector", Position: visit.DesignationCollector, Department: "Collectorate", Active: true},
	{EmployeeID: "RDO101", FullName: "Revenue Divisional Officer", Position: visit.DesignationRDO, Department: "Revenue", Active: true},
	{EmployeeID: "TAH201", FullName: "Tahsildar", Position: visit.DesignationTahsildar, Department: "Revenue", Active: true},
	{EmployeeID: "BDO301", FullName: "Block Development Officer", Position: visit.DesignationBDO, Department: "Rural Development", Active: true},
	{EmployeeID: "EDU401", FullName: "District Educational Officer", Position: visit.DesignationEducation, Department: "School Education", Active: true},
	{EmployeeID: "DDHS501", FullName: "Deputy Director of Health Services", Position: visit.DesignationDDHS, Department: "Health", Active: true},
	{EmployeeID: "DSWO601", FullName: "District Social Welfare Officer", Position: visit.DesignationDSWO, Department: "Social Welfare", Active: true},
	{EmployeeID: "ENG701", FullName: "Executive Engineer", Position: visit.DesignationEngineer, Department: "Public Works", Active: true},
	{EmployeeID: "DSO801", FullName: "District Supply Officer", Position: visit.DesignationDSO, Department: "Civil Supplies", Active: true},
}

// Seed inserts the default registry, skipping ids that already exist.
func Seed(ctx context.Context, repo Repository) error {
	rows := make([]Employee, len(DefaultRegistry))
	copy(rows, DefaultRegistry)
	return repo.Upsert(ctx, rows)
}
