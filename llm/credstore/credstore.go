// Package credstore is the single-row Qwen credential facade (spec §4.1,
// C1). It never caches aggressively: every Get/Headers call re-reads the
// durable row, so a credential rotation is visible on the very next request
// without any invalidation signal required.
package credstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// desktopUserAgent is the fixed User-Agent the upstream expects; wire-significant.
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Credential is the sole row backing the gateway's Qwen session (table
// "qwen_credentials"). expires_at is seconds-since-epoch — deliberately not
// unified with the milliseconds used elsewhere in this gateway (open
// question #1).
type Credential struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	Token     string    `gorm:"column:token;type:text;not null"`
	Cookies   string    `gorm:"column:cookies;type:text;not null"`
	ExpiresAt *int64    `gorm:"column:expires_at"` // seconds since epoch, nullable = never expires
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Credential) TableName() string { return "qwen_credentials" }

// IsValid reports whether the credential is usable right now:
// token≠∅ ∧ cookies≠∅ ∧ (expires_at=null ∨ expires_at > now_seconds).
func (c *Credential) IsValid(nowSeconds int64) bool {
	if c == nil || c.Token == "" || c.Cookies == "" {
		return false
	}
	if c.ExpiresAt != nil && *c.ExpiresAt <= nowSeconds {
		return false
	}
	return true
}

// Store is the process-wide facade over the single credential row.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an existing *gorm.DB connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates/updates the qwen_credentials table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Credential{})
}

// Get returns the stored credential, or (nil, nil) if none has ever been set
// or the stored one has expired — absence is never an error (spec §4.1
// "absent credentials never throw", "get() yields none when expires_at <=
// now_seconds").
func (s *Store) Get(ctx context.Context) (*Credential, error) {
	var c Credential
	err := s.db.WithContext(ctx).Order("id DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.ExpiresAt != nil && *c.ExpiresAt <= time.Now().Unix() {
		return nil, nil
	}
	return &c, nil
}

// Set replaces the stored credential with delete-then-insert semantics: the
// old row (if any) is removed first, so there is never more than one row.
func (s *Store) Set(ctx context.Context, token, cookies string, expiresAt *int64) (*Credential, error) {
	c := &Credential{Token: token, Cookies: cookies, ExpiresAt: expiresAt}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Credential{}).Error; err != nil {
			return err
		}
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the stored credential (if any) and reports how many rows
// were removed (0 or 1).
func (s *Store) Delete(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&Credential{})
	return res.RowsAffected, res.Error
}

// Headers builds the fixed header set the Qwen-native HTTP client attaches
// to every request (spec §4.1). Exact header names/casing are
// wire-significant. Returns an empty map, never an error, when no
// credential is configured.
func (s *Store) Headers(ctx context.Context) (map[string]string, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return map[string]string{}, nil
	}
	return map[string]string{
		"bx-umidtoken": c.Token,
		"Cookie":       c.Cookies,
		"Content-Type": "application/json",
		"User-Agent":   desktopUserAgent,
	}, nil
}
