package queue

// ProcessingNotification is the ephemeral work hint carried on the
// topic. It identifies the task to re-derive state for; it carries no
// status and is never a source of truth.
type ProcessingNotification struct {
	TaskID  string `json:"task_id"`
	UserPK  string `json:"user_pk"`
	FileKey string `json:"file_key"`
}
