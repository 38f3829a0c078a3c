package domain

import "time"

// ContentType classifies what kind of content a generation request targets.
type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentPage    ContentType = "page"
	ContentProduct ContentType = "product"
	ContentEmail   ContentType = "email"
	ContentSocial  ContentType = "social"
)

// ValidContentType reports whether t is one of the supported content types.
func ValidContentType(t ContentType) bool {
	switch t {
	case ContentPost, ContentPage, ContentProduct, ContentEmail, ContentSocial:
		return true
	}
	return false
}

// GenerationRequest describes one content generation task.
// Immutable once submitted to the bulk queue.
type GenerationRequest struct {
	Prompt      string      `json:"prompt"`
	ContentType ContentType `json:"contentType"`
	SEOEnabled  bool        `json:"seoEnabled"`
	Model       string      `json:"model,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"maxTokens,omitempty"`
	Priority    int         `json:"priority,omitempty"`
}

// GenerationResult is the structured output of a successful generation.
type GenerationResult struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Excerpt         string   `json:"excerpt,omitempty"`
}

// ItemStatus is a queue item lifecycle state.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemCancelled  ItemStatus = "cancelled"
)

// QueueItem is one persisted generation request inside a batch.
type QueueItem struct {
	ID          int64
	BatchID     string
	UserID      string
	Request     GenerationRequest
	Status      ItemStatus
	Attempts    int
	MaxAttempts int
	Result      *GenerationResult
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Derived batch states reported by status queries.
const (
	BatchInProgress          = "in_progress"
	BatchCompleted           = "completed"
	BatchCompletedWithErrors = "completed_with_errors"
	BatchCancelled           = "cancelled"
)

// BatchStatus aggregates item counts for one submitted batch.
type BatchStatus struct {
	BatchID     string     `json:"batchId"`
	Status      string     `json:"status"`
	Progress    float64    `json:"progress"`
	Total       int        `json:"total"`
	Pending     int        `json:"pending"`
	Processing  int        `json:"processing"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Cancelled   int        `json:"cancelled"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Template stores a reusable prompt with [PLACEHOLDER] tokens.
type Template struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Prompt      string      `json:"prompt"`
	ContentType ContentType `json:"contentType"`
	SEOEnabled  bool        `json:"seoEnabled"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// TemplateVersion is a point-in-time snapshot of a template.
// Exactly one version per template is active.
type TemplateVersion struct {
	ID            int64             `json:"id"`
	TemplateID    int64             `json:"templateId"`
	VersionNumber int               `json:"versionNumber"`
	Name          string            `json:"name"`
	Prompt        string            `json:"prompt"`
	ContentType   ContentType       `json:"contentType"`
	SEOEnabled    bool              `json:"seoEnabled"`
	Variables     map[string]string `json:"variables,omitempty"`
	ChangeLog     string            `json:"changeLog,omitempty"`
	IsActive      bool              `json:"isActive"`
	CreatedBy     string            `json:"createdBy"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// UserRole gates what API operations a caller may perform.
type UserRole string

const (
	RoleEditor UserRole = "editor"
	RoleAdmin  UserRole = "admin"
)

// UsageRecord is one append-only accounting entry for a provider call.
type UsageRecord struct {
	UserID     string
	TokensUsed int
	Cost       float64
	Model      string
	CreatedAt  time.Time
}

// UsageStats aggregates usage records over a reporting window.
type UsageStats struct {
	TotalRequests       int     `json:"totalRequests"`
	TotalTokens         int     `json:"totalTokens"`
	TotalCost           float64 `json:"totalCost"`
	AvgTokensPerRequest float64 `json:"avgTokensPerRequest"`
}
