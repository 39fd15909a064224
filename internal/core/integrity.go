package core

import "sort"

// reference locates the rows in one collection that point at a record in
// another. matches returns the referencing row ids sorted for deterministic
// error messages and cascade order.
type reference struct {
	collection Collection
	matches    func(st *memoryState, id string) []string
}

// deletePolicy declares what happens to inbound references when a record is
// deleted. Vetoing references block the delete; cascading references are
// removed with it. Vetoes are checked before any cascade runs, so a vetoed
// delete leaves the state untouched.
type deletePolicy struct {
	vetoes   []reference
	cascades []reference
}

func sortedIDs(ids []string) []string {
	sort.Strings(ids)
	return ids
}

func userFactoriesByUser(st *memoryState, userID string) []string {
	var ids []string
	for id, row := range st.userFactories {
		if row.UserID == userID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func userFactoriesByFactory(st *memoryState, factoryID string) []string {
	var ids []string
	for id, row := range st.userFactories {
		if row.FactoryID == factoryID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func projectAssignmentsByUser(st *memoryState, userID string) []string {
	var ids []string
	for id, row := range st.projectAssignments {
		if row.UserID == userID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func projectAssignmentsByProject(st *memoryState, projectID string) []string {
	var ids []string
	for id, row := range st.projectAssignments {
		if row.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func userCustomersByUser(st *memoryState, userID string) []string {
	var ids []string
	for id, row := range st.userCustomers {
		if row.UserID == userID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func userCustomersByCustomer(st *memoryState, customerID string) []string {
	var ids []string
	for id, row := range st.userCustomers {
		if row.CustomerID == customerID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func factoryProjectsByFactory(st *memoryState, factoryID string) []string {
	var ids []string
	for id, row := range st.factoryProjects {
		if row.FactoryID == factoryID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func factoryProjectsByProject(st *memoryState, projectID string) []string {
	var ids []string
	for id, row := range st.factoryProjects {
		if row.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func projectsByCustomer(st *memoryState, customerID string) []string {
	var ids []string
	for id, p := range st.projects {
		if p.CustomerID == customerID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func subProjectIDs(st *memoryState, masterID string) []string {
	var ids []string
	for id, p := range st.projects {
		if p.IsSub() && p.ParentID != nil && *p.ParentID == masterID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func schedulesByProject(st *memoryState, projectID string) []string {
	var ids []string
	for id, sc := range st.schedules {
		if sc.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func commentsByProject(st *memoryState, projectID string) []string {
	var ids []string
	for id, c := range st.comments {
		if c.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

func tasksBySchedule(st *memoryState, scheduleID string) []string {
	var ids []string
	for id, t := range st.tasks {
		if t.ScheduleID == scheduleID {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids)
}

// deletePolicyFor returns the referential rules for col. Collections without
// an entry (comments, tasks, the join rows) delete freely.
func deletePolicyFor(col Collection) deletePolicy {
	switch col {
	case CollectionUsers:
		return deletePolicy{
			vetoes: []reference{
				{collection: CollectionUserFactories, matches: userFactoriesByUser},
				{collection: CollectionProjectAssignments, matches: projectAssignmentsByUser},
			},
			cascades: []reference{
				{collection: CollectionUserCustomers, matches: userCustomersByUser},
			},
		}
	case CollectionCustomers:
		return deletePolicy{
			vetoes: []reference{
				{collection: CollectionProjects, matches: projectsByCustomer},
			},
			cascades: []reference{
				{collection: CollectionUserCustomers, matches: userCustomersByCustomer},
			},
		}
	case CollectionFactories:
		return deletePolicy{
			vetoes: []reference{
				{collection: CollectionFactoryProjects, matches: factoryProjectsByFactory},
			},
			cascades: []reference{
				{collection: CollectionUserFactories, matches: userFactoriesByFactory},
			},
		}
	case CollectionProjects:
		return deletePolicy{
			vetoes: []reference{
				{collection: CollectionSchedules, matches: schedulesByProject},
				{collection: CollectionProjects, matches: subProjectIDs},
			},
			cascades: []reference{
				{collection: CollectionComments, matches: commentsByProject},
				{collection: CollectionProjectAssignments, matches: projectAssignmentsByProject},
				{collection: CollectionFactoryProjects, matches: factoryProjectsByProject},
			},
		}
	case CollectionSchedules:
		return deletePolicy{
			cascades: []reference{
				{collection: CollectionTasks, matches: tasksBySchedule},
			},
		}
	default:
		return deletePolicy{}
	}
}
