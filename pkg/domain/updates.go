package domain

import "time"

// Opt is an optional update value. The zero Opt leaves the stored field
// untouched; Set marks the field as provided, including an explicit nil for
// pointer-typed fields.
type Opt[T any] struct {
	val T
	set bool
}

// Set returns a provided Opt carrying v.
func Set[T any](v T) Opt[T] { return Opt[T]{val: v, set: true} }

// Get returns the value and whether it was provided.
func (o Opt[T]) Get() (T, bool) { return o.val, o.set }

// Provided reports whether the field carries a value.
func (o Opt[T]) Provided() bool { return o.set }

func (o Opt[T]) apply(dst *T) {
	if o.set {
		*dst = o.val
	}
}

// The per-entity update types below carry one Opt per mutable field. Update
// merges them over the stored record, so an omitted field keeps its stored
// value. Identity fields (id, createdAt) are not part of any update type.

// UserUpdate is the partial update for a User.
type UserUpdate struct {
	Name        Opt[string]
	Email       Opt[string]
	Role        Opt[string]
	LastLoginAt Opt[*time.Time]
}

func (u UserUpdate) Apply(r *User) {
	u.Name.apply(&r.Name)
	u.Email.apply(&r.Email)
	u.Role.apply(&r.Role)
	u.LastLoginAt.apply(&r.LastLoginAt)
}

// CustomerUpdate is the partial update for a Customer.
type CustomerUpdate struct {
	Name            Opt[string]
	Code            Opt[string]
	ContactEmail    Opt[string]
	EstablishedDate Opt[*time.Time]
}

func (u CustomerUpdate) Apply(r *Customer) {
	u.Name.apply(&r.Name)
	u.Code.apply(&r.Code)
	u.ContactEmail.apply(&r.ContactEmail)
	u.EstablishedDate.apply(&r.EstablishedDate)
}

// FactoryUpdate is the partial update for a Factory.
type FactoryUpdate struct {
	Name            Opt[string]
	Kind            Opt[FactoryKind]
	Region          Opt[string]
	EstablishedDate Opt[*time.Time]
}

func (u FactoryUpdate) Apply(r *Factory) {
	u.Name.apply(&r.Name)
	u.Kind.apply(&r.Kind)
	u.Region.apply(&r.Region)
	u.EstablishedDate.apply(&r.EstablishedDate)
}

// ProjectUpdate is the partial update for a Project. Type and ParentID are
// included so the hierarchy guards can reject attempted changes by name; the
// guarded update path only lets unchanged values through.
type ProjectUpdate struct {
	Type     Opt[ProjectType]
	ParentID Opt[*string]
	Name     Opt[string]
	Status   Opt[ProjectStatus]

	CustomerID   Opt[string]
	CustomerName Opt[string]
	ManagerID    Opt[string]
	CreatedBy    Opt[string]

	Sales     Opt[Amount]
	Purchase  Opt[Amount]
	StartDate Opt[time.Time]
	EndDate   Opt[time.Time]

	ManufacturerID Opt[*string]
	ContainerID    Opt[*string]
	PackagingID    Opt[*string]
	ScheduleID     Opt[*string]
}

func (u ProjectUpdate) Apply(r *Project) {
	u.Type.apply(&r.Type)
	u.ParentID.apply(&r.ParentID)
	u.Name.apply(&r.Name)
	u.Status.apply(&r.Status)
	u.CustomerID.apply(&r.CustomerID)
	u.CustomerName.apply(&r.CustomerName)
	u.ManagerID.apply(&r.ManagerID)
	u.CreatedBy.apply(&r.CreatedBy)
	u.Sales.apply(&r.Sales)
	u.Purchase.apply(&r.Purchase)
	u.StartDate.apply(&r.StartDate)
	u.EndDate.apply(&r.EndDate)
	u.ManufacturerID.apply(&r.ManufacturerID)
	u.ContainerID.apply(&r.ContainerID)
	u.PackagingID.apply(&r.PackagingID)
	u.ScheduleID.apply(&r.ScheduleID)
}

// ScheduleUpdate is the partial update for a Schedule.
type ScheduleUpdate struct {
	ProjectID Opt[string]
	Name      Opt[string]
	StartDate Opt[time.Time]
	EndDate   Opt[time.Time]
}

func (u ScheduleUpdate) Apply(r *Schedule) {
	u.ProjectID.apply(&r.ProjectID)
	u.Name.apply(&r.Name)
	u.StartDate.apply(&r.StartDate)
	u.EndDate.apply(&r.EndDate)
}

// TaskUpdate is the partial update for a Task.
type TaskUpdate struct {
	ScheduleID Opt[string]
	Name       Opt[string]
	Status     Opt[TaskStatus]
	StartDate  Opt[time.Time]
	EndDate    Opt[time.Time]
	DueDate    Opt[*time.Time]
	AssigneeID Opt[*string]
}

func (u TaskUpdate) Apply(r *Task) {
	u.ScheduleID.apply(&r.ScheduleID)
	u.Name.apply(&r.Name)
	u.Status.apply(&r.Status)
	u.StartDate.apply(&r.StartDate)
	u.EndDate.apply(&r.EndDate)
	u.DueDate.apply(&r.DueDate)
	u.AssigneeID.apply(&r.AssigneeID)
}

// CommentUpdate is the partial update for a Comment.
type CommentUpdate struct {
	ProjectID Opt[string]
	AuthorID  Opt[string]
	Body      Opt[string]
}

func (u CommentUpdate) Apply(r *Comment) {
	u.ProjectID.apply(&r.ProjectID)
	u.AuthorID.apply(&r.AuthorID)
	u.Body.apply(&r.Body)
}

// AssignmentUpdate carries the join-row fields shared by every relation
// update type.
type AssignmentUpdate struct {
	Role       Opt[string]
	AssignedAt Opt[time.Time]
	AssignedBy Opt[string]
}

func (u AssignmentUpdate) applyTo(a *Assignment) {
	u.Role.apply(&a.Role)
	u.AssignedAt.apply(&a.AssignedAt)
	u.AssignedBy.apply(&a.AssignedBy)
}

// UserFactoryUpdate is the partial update for a UserFactory row.
type UserFactoryUpdate struct {
	AssignmentUpdate
	UserID    Opt[string]
	FactoryID Opt[string]
}

func (u UserFactoryUpdate) Apply(r *UserFactory) {
	u.applyTo(&r.Assignment)
	u.UserID.apply(&r.UserID)
	u.FactoryID.apply(&r.FactoryID)
}

// ProjectAssignmentUpdate is the partial update for a ProjectAssignment row.
type ProjectAssignmentUpdate struct {
	AssignmentUpdate
	UserID    Opt[string]
	ProjectID Opt[string]
}

func (u ProjectAssignmentUpdate) Apply(r *ProjectAssignment) {
	u.applyTo(&r.Assignment)
	u.UserID.apply(&r.UserID)
	u.ProjectID.apply(&r.ProjectID)
}

// FactoryProjectUpdate is the partial update for a FactoryProject row.
type FactoryProjectUpdate struct {
	AssignmentUpdate
	FactoryID Opt[string]
	ProjectID Opt[string]
}

func (u FactoryProjectUpdate) Apply(r *FactoryProject) {
	u.applyTo(&r.Assignment)
	u.FactoryID.apply(&r.FactoryID)
	u.ProjectID.apply(&r.ProjectID)
}

// UserCustomerUpdate is the partial update for a UserCustomer row.
type UserCustomerUpdate struct {
	AssignmentUpdate
	UserID     Opt[string]
	CustomerID Opt[string]
}

func (u UserCustomerUpdate) Apply(r *UserCustomer) {
	u.applyTo(&r.Assignment)
	u.UserID.apply(&r.UserID)
	u.CustomerID.apply(&r.CustomerID)
}
