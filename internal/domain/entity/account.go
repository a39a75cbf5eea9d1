package entity

import "time"

// ProviderKind identifies which external API an account credential belongs to
type ProviderKind string

const (
	ProviderGmail      ProviderKind = "gmail"      // mailbox-A
	ProviderOutlook    ProviderKind = "outlook"    // mailbox-B
	ProviderFoursquare ProviderKind = "foursquare" // check-in provider
)

// IsMailbox reports whether the kind is one of the mailbox providers
func (k ProviderKind) IsMailbox() bool {
	return k == ProviderGmail || k == ProviderOutlook
}

// Visibility of a trip to other users
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
	VisibilityPublic  Visibility = "public"
)

// Account is a linked provider account with its OAuth credential and scan checkpoint
type Account struct {
	ID                uint
	UserID            uint
	Kind              ProviderKind
	Address           string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
	LastScan          *time.Time
	Active            bool
	DeactivatedReason string
	Settings          UserSettings
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Checkpoint returns the account's scan checkpoint
func (a *Account) Checkpoint() Checkpoint {
	if a.LastScan == nil {
		return Checkpoint{}
	}
	return Checkpoint{At: *a.LastScan}
}

// TokenExpired reports whether the access token is known to expire before now+skew
func (a *Account) TokenExpired(now time.Time, skew time.Duration) bool {
	if a.ExpiresAt == nil {
		return false
	}
	return !a.ExpiresAt.After(now.Add(skew))
}

// UserSettings holds the owner's integration flags read by the ingestion jobs
type UserSettings struct {
	UserID                    uint
	EmailIntegrationEnabled   bool
	AutoScanEmails            bool
	CheckinIntegrationEnabled bool
	DefaultTripVisibility     Visibility
	GoogleClientID            string
	GoogleClientSecret        string
	MicrosoftClientID         string
	MicrosoftClientSecret     string
}

// MailboxScanEnabled reports whether the owner allows automatic mailbox scanning
func (s UserSettings) MailboxScanEnabled() bool {
	return s.EmailIntegrationEnabled && s.AutoScanEmails
}

// Visibility returns the configured default visibility, private when unset
func (s UserSettings) Visibility() Visibility {
	if s.DefaultTripVisibility == "" {
		return VisibilityPrivate
	}
	return s.DefaultTripVisibility
}

// Checkpoint marks how far an account has been scanned. The zero value means never.
type Checkpoint struct {
	At time.Time
}

// IsZero reports whether the account was never scanned
func (c Checkpoint) IsZero() bool {
	return c.At.IsZero()
}

// Max returns the later of two checkpoints
func (c Checkpoint) Max(other Checkpoint) Checkpoint {
	if other.At.After(c.At) {
		return other
	}
	return c
}
