package domain

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clip is the aggregate root representing a shared piece of text.
type Clip struct {
	id        string
	shortCode ShortCode
	content   string
	title     string
	posted    time.Time
	expires   *time.Time
	password  string
	hits      uint64
}

// NewClip creates a new clip with a fresh ID and a random short code.
func NewClip(content, title, password string, expires *time.Time) (*Clip, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	code, err := GenerateShortCode()
	if err != nil {
		return nil, err
	}
	return &Clip{
		shortCode: code,
		content:   content,
		title:     title,
		posted:    time.Now().UTC(),
		expires:   utcPtr(expires),
		password:  password,
	}, nil
}

// ReconstructClip reconstructs a clip from persistence.
func ReconstructClip(
	id string,
	shortCode ShortCode,
	content string,
	title string,
	posted time.Time,
	expires *time.Time,
	password string,
	hits uint64,
) *Clip {
	return &Clip{
		id:        id,
		shortCode: shortCode,
		content:   content,
		title:     title,
		posted:    posted.UTC(),
		expires:   utcPtr(expires),
		password:  password,
		hits:      hits,
	}
}

func (c *Clip) ID() string           { return c.id }
func (c *Clip) ShortCode() ShortCode { return c.shortCode }
func (c *Clip) Content() string      { return c.content }
func (c *Clip) Title() string        { return c.title }
func (c *Clip) Posted() time.Time    { return c.posted }
func (c *Clip) Expires() *time.Time  { return c.expires }
func (c *Clip) Password() string     { return c.password }

// Hits returns the persisted hit count. Hits still buffered in the
// hit counter are not included.
func (c *Clip) Hits() uint64 { return c.hits }

// AssignID gives a new clip its identity. It is called by the repository on insert.
func (c *Clip) AssignID() {
	if c.id == "" {
		c.id = uuid.NewString()
	}
}

// HasPassword reports whether the clip is password protected.
func (c *Clip) HasPassword() bool {
	return c.password != ""
}

// IsExpired reports whether the clip expired at or before now.
func (c *Clip) IsExpired(now time.Time) bool {
	if c.expires == nil {
		return false
	}
	return !c.expires.After(now)
}

// Unlock checks the supplied password against the clip's password.
func (c *Clip) Unlock(password string) error {
	if !c.HasPassword() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(c.password), []byte(password)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// Update replaces the mutable fields of the clip.
func (c *Clip) Update(content, title, password string, expires *time.Time) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	c.content = content
	c.title = title
	c.password = password
	c.expires = utcPtr(expires)
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
