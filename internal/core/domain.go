package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxTitleLen = 200
	maxLabelLen = 100
	maxNameLen  = 100
)

type (
	// LineItem is a single entry of a hisaab. Value is free text entered by the
	// user and is only interpreted as an amount when aggregating.
	LineItem struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	// Hisaab is an itemized expense record.
	Hisaab struct {
		ID         string     `json:"_id"`
		Title      string     `json:"title"`
		Label      string     `json:"label"`
		Content    []LineItem `json:"content"`
		Encrypted  bool       `json:"encrypted"`
		SecretHash string     `json:"-"`
		OwnerID    string     `json:"createdBy"`
		RoomID     string     `json:"roomId,omitempty"`
		CreatedAt  time.Time  `json:"createdAt"`
		UpdatedAt  time.Time  `json:"updatedAt"`
	}

	// Room groups users behind a shared secret.
	Room struct {
		ID          string    `json:"_id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		SecretHash  string    `json:"-"`
		Members     []string  `json:"members"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

var (
	ErrValidation   = errors.New("validation error")
	ErrAccessDenied = errors.New("access denied")
	ErrStorage      = errors.New("storage error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")

	ErrInvalidAmount = errors.New("invalid amount")

	ErrEmptyTitle    = fmt.Errorf("%w: title is required", ErrValidation)
	ErrEmptyLabel    = fmt.Errorf("%w: label is required", ErrValidation)
	ErrMissingSecret = fmt.Errorf("%w: password is required", ErrValidation)
)

// Validate checks the user supplied fields. Line item values are not
// validated here: malformed amounts count as zero on the dashboard.
func (h Hisaab) Validate() error {
	if strings.TrimSpace(h.Title) == "" {
		return ErrEmptyTitle
	}
	if len(h.Title) > maxTitleLen {
		return fmt.Errorf("%w: title too long (max %d characters)", ErrValidation, maxTitleLen)
	}
	if strings.TrimSpace(h.Label) == "" {
		return ErrEmptyLabel
	}
	if len(h.Label) > maxLabelLen {
		return fmt.Errorf("%w: label too long (max %d characters)", ErrValidation, maxLabelLen)
	}
	if h.Encrypted && h.SecretHash == "" {
		return ErrMissingSecret
	}
	return nil
}

// Redacted returns a copy safe to show without a secret.
func (h Hisaab) Redacted() Hisaab {
	if h.Encrypted {
		h.Content = nil
	}
	return h
}

// MarshalJSON always writes content for an open hisaab, as [] when it has
// no items. A redacted hisaab has no content key at all.
func (h Hisaab) MarshalJSON() ([]byte, error) {
	type plain Hisaab
	out := struct {
		plain
		Content *[]LineItem `json:"content,omitempty"`
	}{plain: plain(h)}
	if !h.Encrypted || h.Content != nil {
		content := h.Content
		if content == nil {
			content = []LineItem{}
		}
		out.Content = &content
	}
	return json.Marshal(out)
}

// IsMember reports whether userID belongs to the room.
func (r Room) IsMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (r Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if len(r.Name) > maxNameLen {
		return fmt.Errorf("%w: room name too long (max %d characters)", ErrValidation, maxNameLen)
	}
	if r.SecretHash == "" {
		return fmt.Errorf("%w: room password is required", ErrValidation)
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	email := strings.TrimSpace(u.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	return nil
}
