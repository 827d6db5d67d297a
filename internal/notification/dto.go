package notification

type CreateInput struct {
	TenantID int64                  `json:"tenant_id" validate:"required"`
	UserID   int64                  `json:"user_id" validate:"required"`
	Type     string                 `json:"type" validate:"required,max=100"`
	Title    string                 `json:"title" validate:"required,max=255"`
	Message  string                 `json:"message" validate:"required"`
	Link     string                 `json:"link"`
	Metadata map[string]interface{} `json:"metadata"`
}

type ListQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Count         int             `json:"count"`
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
