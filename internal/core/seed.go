package core

import (
	"time"

	"plancore/pkg/domain"
)

func strPtr(s string) *string { return &s }

func seedDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedState builds the deterministic initial dataset used when no snapshot is
// available. The master's aggregates are seeded already consistent with its
// subs so a recompute right after seeding changes nothing.
func seedState(now time.Time) memoryState {
	st := newMemoryState()
	base := func(id string) domain.Base {
		return domain.Base{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	assignment := domain.Assignment{Role: "member", AssignedAt: now, AssignedBy: "user-admin"}

	st.users["user-admin"] = User{Base: base("user-admin"), Name: "Admin", Email: "admin@plancore.local", Role: "admin"}
	st.users["user-manager"] = User{Base: base("user-manager"), Name: "Morgan Vale", Email: "morgan@plancore.local", Role: "manager"}
	st.users["user-operator"] = User{Base: base("user-operator"), Name: "Sam Rios", Email: "sam@plancore.local", Role: "operator"}

	st.customers["customer-acme"] = Customer{Base: base("customer-acme"), Name: "Acme Cosmetics", Code: "ACME", ContactEmail: "orders@acme.example"}
	st.customers["customer-blue"] = Customer{Base: base("customer-blue"), Name: "Blue Harbor", Code: "BLUE", ContactEmail: "supply@blueharbor.example"}

	st.factories["factory-mfg-1"] = Factory{Base: base("factory-mfg-1"), Name: "Northside Manufacturing", Kind: domain.FactoryKindManufacturer, Region: "north"}
	st.factories["factory-ctn-1"] = Factory{Base: base("factory-ctn-1"), Name: "Harbor Containers", Kind: domain.FactoryKindContainer, Region: "west"}
	st.factories["factory-pkg-1"] = Factory{Base: base("factory-pkg-1"), Name: "Summit Packaging", Kind: domain.FactoryKindPackaging, Region: "east"}

	st.projects["project-master-1"] = Project{
		Base:         base("project-master-1"),
		Type:         ProjectTypeMaster,
		Name:         "Acme Spring Line",
		Status:       domain.ProjectStatusInProgress,
		CustomerID:   "customer-acme",
		CustomerName: "Acme Cosmetics",
		ManagerID:    "user-manager",
		CreatedBy:    "user-admin",
		Sales:        3500.5,
		Purchase:     2300,
		StartDate:    seedDate(2026, time.January, 10),
		EndDate:      seedDate(2026, time.May, 15),
	}
	st.projects["project-sub-1"] = Project{
		Base:           base("project-sub-1"),
		Type:           ProjectTypeSub,
		ParentID:       strPtr("project-master-1"),
		Name:           "Spring Line Serum",
		Status:         domain.ProjectStatusInProgress,
		CustomerID:     "customer-acme",
		CustomerName:   "Acme Cosmetics",
		ManagerID:      "user-manager",
		CreatedBy:      "user-admin",
		Sales:          1200.5,
		Purchase:       800,
		StartDate:      seedDate(2026, time.January, 10),
		EndDate:        seedDate(2026, time.March, 31),
		ManufacturerID: strPtr("factory-mfg-1"),
		ContainerID:    strPtr("factory-ctn-1"),
		PackagingID:    strPtr("factory-pkg-1"),
		ScheduleID:     strPtr("schedule-sub-1"),
	}
	st.projects["project-sub-2"] = Project{
		Base:           base("project-sub-2"),
		Type:           ProjectTypeSub,
		ParentID:       strPtr("project-master-1"),
		Name:           "Spring Line Cream",
		Status:         domain.ProjectStatusPlanned,
		CustomerID:     "customer-acme",
		CustomerName:   "Acme Cosmetics",
		ManagerID:      "user-manager",
		CreatedBy:      "user-admin",
		Sales:          2300,
		Purchase:       1500,
		StartDate:      seedDate(2026, time.February, 1),
		EndDate:        seedDate(2026, time.May, 15),
		ManufacturerID: strPtr("factory-mfg-1"),
	}
	st.projects["project-solo-1"] = Project{
		Base:         base("project-solo-1"),
		Type:         ProjectTypeSub,
		Name:         "Blue Harbor Sampler",
		Status:       domain.ProjectStatusPlanned,
		CustomerID:   "customer-blue",
		CustomerName: "Blue Harbor",
		ManagerID:    "user-manager",
		CreatedBy:    "user-admin",
		Sales:        450,
		Purchase:     300,
		StartDate:    seedDate(2026, time.March, 1),
		EndDate:      seedDate(2026, time.April, 1),
	}

	st.schedules["schedule-sub-1"] = Schedule{
		Base:      base("schedule-sub-1"),
		ProjectID: "project-sub-1",
		Name:      "Serum Production",
		StartDate: seedDate(2026, time.January, 10),
		EndDate:   seedDate(2026, time.March, 31),
	}
	st.tasks["task-1"] = Task{
		Base:       base("task-1"),
		ScheduleID: "schedule-sub-1",
		Name:       "Formulation",
		Status:     domain.TaskStatusCompleted,
		StartDate:  seedDate(2026, time.January, 10),
		EndDate:    seedDate(2026, time.January, 31),
	}
	st.tasks["task-2"] = Task{
		Base:       base("task-2"),
		ScheduleID: "schedule-sub-1",
		Name:       "Filling",
		Status:     domain.TaskStatusInProgress,
		StartDate:  seedDate(2026, time.February, 1),
		EndDate:    seedDate(2026, time.March, 15),
		AssigneeID: strPtr("user-operator"),
	}

	st.comments["comment-1"] = Comment{
		Base:      base("comment-1"),
		ProjectID: "project-master-1",
		AuthorID:  "user-manager",
		Body:      "Kickoff complete, serum line running ahead of schedule.",
	}

	st.userFactories["uf-1"] = UserFactory{Base: base("uf-1"), Assignment: assignment, UserID: "user-operator", FactoryID: "factory-mfg-1"}
	st.projectAssignments["pa-1"] = ProjectAssignment{Base: base("pa-1"), Assignment: assignment, UserID: "user-manager", ProjectID: "project-master-1"}
	st.factoryProjects["fp-1"] = FactoryProject{Base: base("fp-1"), Assignment: assignment, FactoryID: "factory-mfg-1", ProjectID: "project-sub-1"}
	st.userCustomers["uc-1"] = UserCustomer{Base: base("uc-1"), Assignment: assignment, UserID: "user-manager", CustomerID: "customer-acme"}

	return st
}
