package realtime

// Mutation event types relayed through board rooms. REST handlers
// broadcast these after a successful write so every open client
// converges without polling.
const (
	EventTaskCreated    = "task-created"
	EventTaskUpdated    = "task-updated"
	EventTaskMoved      = "task-moved"
	EventTaskDeleted    = "task-deleted"
	EventListCreated    = "list-created"
	EventListUpdated    = "list-updated"
	EventListDeleted    = "list-deleted"
	EventUserAssigned   = "user-assigned"
	EventCommentAdded   = "comment-added"
	EventActivityLogged = "activity-logged"
)
