package dto

// CreateTaskRequest represents the request body for POST /tasks.
// Username is used only when the X-Actor header is absent.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Username    string `json:"username,omitempty"`
}

// UpdateTaskRequest represents the request body for PUT /tasks/{id}.
// Omitted fields keep their current value.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	Username    string  `json:"username,omitempty"`
}

// ActorRequest is the optional body of DELETE /tasks/{id}, POST /history/undo
// and POST /history/redo.
type ActorRequest struct {
	Username string `json:"username,omitempty"`
}
