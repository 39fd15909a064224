package core

import "plancore/pkg/domain"

type (
	Collection        = domain.Collection
	Event             = domain.Event
	EventType         = domain.EventType
	User              = domain.User
	Customer          = domain.Customer
	Factory           = domain.Factory
	Project           = domain.Project
	Schedule          = domain.Schedule
	Task              = domain.Task
	Comment           = domain.Comment
	UserFactory       = domain.UserFactory
	ProjectAssignment = domain.ProjectAssignment
	FactoryProject    = domain.FactoryProject
	UserCustomer      = domain.UserCustomer
	Amount            = domain.Amount
	Report            = domain.Report
	BulkResult        = domain.BulkResult

	UserUpdate              = domain.UserUpdate
	CustomerUpdate          = domain.CustomerUpdate
	FactoryUpdate           = domain.FactoryUpdate
	ProjectUpdate           = domain.ProjectUpdate
	ScheduleUpdate          = domain.ScheduleUpdate
	TaskUpdate              = domain.TaskUpdate
	CommentUpdate           = domain.CommentUpdate
	UserFactoryUpdate       = domain.UserFactoryUpdate
	ProjectAssignmentUpdate = domain.ProjectAssignmentUpdate
	FactoryProjectUpdate    = domain.FactoryProjectUpdate
	UserCustomerUpdate      = domain.UserCustomerUpdate
)

const (
	CollectionUsers              = domain.CollectionUsers
	CollectionCustomers          = domain.CollectionCustomers
	CollectionFactories          = domain.CollectionFactories
	CollectionProjects           = domain.CollectionProjects
	CollectionSchedules          = domain.CollectionSchedules
	CollectionTasks              = domain.CollectionTasks
	CollectionComments           = domain.CollectionComments
	CollectionUserFactories      = domain.CollectionUserFactories
	CollectionProjectAssignments = domain.CollectionProjectAssignments
	CollectionFactoryProjects    = domain.CollectionFactoryProjects
	CollectionUserCustomers      = domain.CollectionUserCustomers
)

const (
	EventCreated = domain.EventCreated
	EventUpdated = domain.EventUpdated
	EventDeleted = domain.EventDeleted
	EventReset   = domain.EventReset
)

const (
	ProjectTypeMaster = domain.ProjectTypeMaster
	ProjectTypeSub    = domain.ProjectTypeSub
)
