package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. A non-nil DeletedAt marks a soft-deleted
// product: it is inactive but its data is retained.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	ImageURL    *string         `json:"imageUrl"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   *time.Time      `json:"deletedAt"`
}

// IsActive reports whether the product has not been soft-deleted.
func (p Product) IsActive() bool {
	return p.DeletedAt == nil
}

// Clone returns a copy of p that shares no memory with it.
func (p Product) Clone() Product {
	if p.ImageURL != nil {
		u := *p.ImageURL
		p.ImageURL = &u
	}
	if p.DeletedAt != nil {
		d := *p.DeletedAt
		p.DeletedAt = &d
	}
	if p.Metadata != nil {
		p.Metadata = append(json.RawMessage(nil), p.Metadata...)
	}
	return p
}

// HasMetadata reports whether metadata is present and not null.
func (p Product) HasMetadata() bool {
	return !isJSONNull(p.Metadata)
}

// DecodeMetadata unmarshals the opaque metadata object into v.
// It is a no-op when metadata is absent.
func (p Product) DecodeMetadata(v any) error {
	if !p.HasMetadata() {
		return nil
	}
	return json.Unmarshal(p.Metadata, v)
}

// Validate checks the shape constraints of a decoded product.
func (p Product) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("product id is missing")
	}
	if p.HasMetadata() && bytes.TrimSpace(p.Metadata)[0] != '{' {
		return fmt.Errorf("product %s: metadata must be a JSON object", p.ID)
	}
	return nil
}

// Pagination describes the position of a Page within a result set.
type Pagination struct {
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// Validate checks the pagination invariants against the number of items
// actually returned: pages == ceil(total/limit), hasMore == page < pages,
// items <= limit.
func (p Pagination) Validate(items int) error {
	if p.Total < 0 || p.Pages < 0 || p.Page < 1 || p.Limit < 1 {
		return fmt.Errorf("pagination out of range: %+v", p)
	}
	if want := (p.Total + p.Limit - 1) / p.Limit; p.Pages != want {
		return fmt.Errorf("pagination pages=%d, want ceil(%d/%d)=%d", p.Pages, p.Total, p.Limit, want)
	}
	if want := p.Page < p.Pages; p.HasMore != want {
		return fmt.Errorf("pagination hasMore=%t, want %t for page %d of %d", p.HasMore, want, p.Page, p.Pages)
	}
	if items > p.Limit {
		return fmt.Errorf("page holds %d items, limit is %d", items, p.Limit)
	}
	return nil
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation. Histories are ordered oldest
// first.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// UserMessage returns a user turn stamped with ts.
func UserMessage(content string, ts time.Time) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content, Timestamp: ts}
}

// AssistantMessage returns an assistant turn stamped with ts.
func AssistantMessage(content string, ts time.Time) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, Timestamp: ts}
}

// ValidateHistory checks roles and chronological order of a chat history.
func ValidateHistory(field string, history []ChatMessage) error {
	for i, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return Invalid(fmt.Sprintf("%s[%d].role", field, i), "must be %q or %q, got %q", RoleUser, RoleAssistant, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return Invalid(fmt.Sprintf("%s[%d].content", field, i), "must not be empty")
		}
		if i > 0 && !m.Timestamp.IsZero() && m.Timestamp.Before(history[i-1].Timestamp) {
			return Invalid(fmt.Sprintf("%s[%d].timestamp", field, i), "history must be ordered oldest first")
		}
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
