// Package domain defines the persistent entities, collection identifiers, and
// value types shared by the plancore storage engine.
package domain

import "time"

// Collection identifies a record bucket in the store.
type Collection string

// Known collection identifiers used in events, snapshots, and CRUD dispatch.
const (
	// CollectionUsers holds user records.
	CollectionUsers Collection = "users"
	// CollectionCustomers holds customer records.
	CollectionCustomers Collection = "customers"
	// CollectionFactories holds factory records.
	CollectionFactories Collection = "factories"
	// CollectionProjects holds master and sub project records.
	CollectionProjects Collection = "projects"
	// CollectionSchedules holds schedule records.
	CollectionSchedules Collection = "schedules"
	// CollectionTasks holds task records.
	CollectionTasks Collection = "tasks"
	// CollectionComments holds comment records.
	CollectionComments Collection = "comments"
	// CollectionUserFactories holds user-factory assignment rows.
	CollectionUserFactories Collection = "userFactories"
	// CollectionProjectAssignments holds user-project assignment rows.
	CollectionProjectAssignments Collection = "projectAssignments"
	// CollectionFactoryProjects holds factory-project relation rows.
	CollectionFactoryProjects Collection = "factoryProjects"
	// CollectionUserCustomers holds user-customer relation rows.
	CollectionUserCustomers Collection = "userCustomers"
)

// Collections lists every known collection in stable snapshot order.
func Collections() []Collection {
	return []Collection{
		CollectionUsers,
		CollectionCustomers,
		CollectionFactories,
		CollectionProjects,
		CollectionSchedules,
		CollectionTasks,
		CollectionComments,
		CollectionUserFactories,
		CollectionProjectAssignments,
		CollectionFactoryProjects,
		CollectionUserCustomers,
	}
}

// RelationCollections lists the many-to-many join collections.
func RelationCollections() []Collection {
	return []Collection{
		CollectionUserFactories,
		CollectionProjectAssignments,
		CollectionFactoryProjects,
		CollectionUserCustomers,
	}
}

// Base contains the common fields carried by every stored record.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID returns the record's unique identifier.
func (b Base) RecordID() string { return b.ID }

// SetRecordID assigns the record's unique identifier.
func (b *Base) SetRecordID(id string) { b.ID = id }

// Touch stamps UpdatedAt, and CreatedAt for freshly created records.
func (b *Base) Touch(now time.Time, created bool) {
	if created {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// RecordCreatedAt returns the record's creation time.
func (b Base) RecordCreatedAt() time.Time { return b.CreatedAt }

// AdoptIdentity carries the stored id and creation time over to a replacement
// record so updates cannot rewrite either.
func (b *Base) AdoptIdentity(id string, createdAt time.Time) {
	b.ID = id
	b.CreatedAt = createdAt
}

// ProjectType distinguishes master projects from their sub projects.
type ProjectType string

// Project hierarchy types.
const (
	// ProjectTypeMaster is a parent project aggregating its subs.
	ProjectTypeMaster ProjectType = "master"
	// ProjectTypeSub is a child project optionally attached to a master.
	ProjectTypeSub ProjectType = "sub"
)

// ProjectStatus enumerates coarse project workflow states.
type ProjectStatus string

// Canonical project statuses.
const (
	ProjectStatusPlanned    ProjectStatus = "planned"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// TaskStatus enumerates task workflow states.
type TaskStatus string

// Canonical task statuses.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// FactoryKind identifies which production role a factory fills.
type FactoryKind string

// Factory roles referenced by sub projects.
const (
	FactoryKindManufacturer FactoryKind = "manufacturer"
	FactoryKindContainer    FactoryKind = "container"
	FactoryKindPackaging    FactoryKind = "packaging"
)

// User represents an operator of the admin tool.
type User struct {
	Base
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Customer represents a client commissioning projects.
type Customer struct {
	Base
	Name            string     `json:"name"`
	Code            string     `json:"code"`
	ContactEmail    string     `json:"contactEmail"`
	EstablishedDate *time.Time `json:"establishedDate,omitempty"`
}

// Factory represents a production site referenced by sub projects.
type Factory struct {
	Base
	Name            string     `json:"name"`
	Kind            FactoryKind `json:"kind"`
	Region          string     `json:"region"`
	EstablishedDate *time.Time `json:"establishedDate,omitempty"`
}

// Project is the one entity with hierarchy semantics. A master owns the sync
// fields mirrored onto its subs and the aggregate fields computed from them;
// factory references live only on subs.
type Project struct {
	Base
	Type     ProjectType   `json:"type"`
	ParentID *string       `json:"parentId,omitempty"`
	Name     string        `json:"name"`
	Status   ProjectStatus `json:"status"`

	// Sync fields, owned by the master and mirrored to subs.
	CustomerID   string `json:"customerId"`
	CustomerName string `json:"customerName"`
	ManagerID    string `json:"managerId"`
	CreatedBy    string `json:"createdBy"`

	// Aggregate fields, computed from subs when any exist.
	Sales     Amount    `json:"sales"`
	Purchase  Amount    `json:"purchase"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	// Factory references, stored only on subs.
	ManufacturerID *string `json:"manufacturerId,omitempty"`
	ContainerID    *string `json:"containerId,omitempty"`
	PackagingID    *string `json:"packagingId,omitempty"`

	ScheduleID *string `json:"scheduleId,omitempty"`
}

// IsMaster reports whether the project is a master.
func (p Project) IsMaster() bool { return p.Type == ProjectTypeMaster }

// IsSub reports whether the project is a sub.
func (p Project) IsSub() bool { return p.Type == ProjectTypeSub }

// SyncFieldNames lists the master-owned fields mirrored onto subs, using the
// wire names surfaced in validation errors.
func SyncFieldNames() []string {
	return []string{"customerId", "customerName", "managerId", "createdBy"}
}

// SyncFieldValues returns the project's sync-field values keyed by wire name.
func (p Project) SyncFieldValues() map[string]string {
	return map[string]string{
		"customerId":   p.CustomerID,
		"customerName": p.CustomerName,
		"managerId":    p.ManagerID,
		"createdBy":    p.CreatedBy,
	}
}

// ApplySyncFields overwrites the project's sync fields with the master's.
func (p *Project) ApplySyncFields(master Project) {
	p.CustomerID = master.CustomerID
	p.CustomerName = master.CustomerName
	p.ManagerID = master.ManagerID
	p.CreatedBy = master.CreatedBy
}

// SyncFieldMismatches returns the wire names of sync fields on which sub
// disagrees with master, in declaration order.
func SyncFieldMismatches(master, sub Project) []string {
	masterValues := master.SyncFieldValues()
	subValues := sub.SyncFieldValues()
	var mismatched []string
	for _, name := range SyncFieldNames() {
		if masterValues[name] != subValues[name] {
			mismatched = append(mismatched, name)
		}
	}
	return mismatched
}

// Schedule groups the tasks belonging to one project.
type Schedule struct {
	Base
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Task is a unit of scheduled work.
type Task struct {
	Base
	ScheduleID string     `json:"scheduleId"`
	Name       string     `json:"name"`
	Status     TaskStatus `json:"status"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    time.Time  `json:"endDate"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	AssigneeID *string    `json:"assigneeId,omitempty"`
}

// Comment is a free-form note attached to a project.
type Comment struct {
	Base
	ProjectID string `json:"projectId"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
}

// Assignment carries the fields shared by every many-to-many join row.
type Assignment struct {
	Role       string    `json:"role"`
	AssignedAt time.Time `json:"assignedAt"`
	AssignedBy string    `json:"assignedBy"`
}

// UserFactory links a user to a factory.
type UserFactory struct {
	Base
	Assignment
	UserID    string `json:"userId"`
	FactoryID string `json:"factoryId"`
}

// ProjectAssignment links a user to a project.
type ProjectAssignment struct {
	Base
	Assignment
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
}

// FactoryProject links a factory to a project.
type FactoryProject struct {
	Base
	Assignment
	FactoryID string `json:"factoryId"`
	ProjectID string `json:"projectId"`
}

// UserCustomer links a user to a customer account.
type UserCustomer struct {
	Base
	Assignment
	UserID     string `json:"userId"`
	CustomerID string `json:"customerId"`
}
