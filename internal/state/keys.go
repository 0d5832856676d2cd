package state

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"rookie/internal/domain"
)

// Persisted keys.
const (
	KeyUser              = "user"
	KeyTheme             = "theme"
	KeyRefreshInterval   = "refresh_interval"
	KeyWatchlist         = "watchlist"
	KeyTutorialCompleted = "tutorial_completed"
	KeyWalletAddress     = "wallet_address"
	KeyAlerts            = "alerts"
)

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// DefaultRefreshInterval is the refresh interval in milliseconds used when
// none has been saved.
const DefaultRefreshInterval int64 = 60000

// RefreshIntervalOptions are the intervals offered in settings, in
// milliseconds.
var RefreshIntervalOptions = []int64{30000, 60000, 300000}

var (
	ErrInvalidLogin    = errors.New("email and password are required")
	ErrInvalidTheme    = errors.New("theme must be dark or light")
	ErrInvalidInterval = errors.New("refresh interval must not be negative")
)

// ---------------------------------------------------------------------------
// User
// ---------------------------------------------------------------------------

// User returns the logged-in user, or nil.
func (s *Store) User() *domain.User {
	var u domain.User
	if ok, err := s.Get(KeyUser, &u); !ok || err != nil || u.Email == "" {
		return nil
	}
	return &u
}

// Login records a mock session. Any non-empty email and password pair is
// accepted; the name defaults to the local part of the email.
func (s *Store) Login(email, password, name string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidLogin
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	u := domain.User{Email: email, Name: name}
	return u, s.Set(KeyUser, u)
}

// Logout clears the session.
func (s *Store) Logout() error { return s.Delete(KeyUser) }

// ---------------------------------------------------------------------------
// Preferences
// ---------------------------------------------------------------------------

// Theme returns the saved theme, dark by default.
func (s *Store) Theme() string {
	var t string
	if ok, _ := s.Get(KeyTheme, &t); ok && (t == ThemeDark || t == ThemeLight) {
		return t
	}
	return ThemeDark
}

func (s *Store) SetTheme(theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return ErrInvalidTheme
	}
	return s.Set(KeyTheme, theme)
}

// RefreshIntervalMillis returns the saved refresh interval in
// milliseconds. Zero means recurring refresh is off.
func (s *Store) RefreshIntervalMillis() int64 {
	var ms int64
	if ok, err := s.Get(KeyRefreshInterval, &ms); !ok || err != nil || ms < 0 {
		return DefaultRefreshInterval
	}
	return ms
}

// RefreshInterval returns the saved refresh interval as a duration.
func (s *Store) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalMillis()) * time.Millisecond
}

func (s *Store) SetRefreshInterval(ms int64) error {
	if ms < 0 {
		return ErrInvalidInterval
	}
	return s.Set(KeyRefreshInterval, ms)
}

// OnRefreshInterval calls apply with the new interval every time it is
// saved, until ctx is done.
func (s *Store) OnRefreshInterval(ctx context.Context, apply func(time.Duration)) {
	id, ch := s.Subscribe(8)
	defer s.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Key != KeyRefreshInterval {
				continue
			}
			apply(s.RefreshInterval())
		}
	}
}

func (s *Store) TutorialCompleted() bool {
	var done bool
	ok, _ := s.Get(KeyTutorialCompleted, &done)
	return ok && done
}

func (s *Store) CompleteTutorial() error { return s.Set(KeyTutorialCompleted, true) }

// ---------------------------------------------------------------------------
// Watchlist
// ---------------------------------------------------------------------------

// Watchlist returns the watched asset IDs in the order they were added.
func (s *Store) Watchlist() []string {
	var ids []string
	if ok, err := s.Get(KeyWatchlist, &ids); !ok || err != nil {
		return []string{}
	}
	return ids
}

// IsWatched reports whether id is on the watchlist.
func (s *Store) IsWatched(id string) bool {
	return slices.Contains(s.Watchlist(), id)
}

// ToggleWatchlist adds id when absent and removes it when present. It
// reports whether id is watched afterwards.
func (s *Store) ToggleWatchlist(id string) (bool, error) {
	if id == "" {
		return false, errors.New("empty asset id")
	}
	var watched bool
	var ids []string
	err := s.Update(KeyWatchlist, &ids, func(bool) (any, error) {
		if i := slices.Index(ids, id); i >= 0 {
			watched = false
			return slices.Delete(ids, i, i+1), nil
		}
		watched = true
		return append(ids, id), nil
	})
	return watched, err
}

// ---------------------------------------------------------------------------
// Wallet
// ---------------------------------------------------------------------------

func (s *Store) WalletAddress() string {
	var a string
	_, _ = s.Get(KeyWalletAddress, &a)
	return a
}

func (s *Store) SetWalletAddress(address string) error {
	return s.Set(KeyWalletAddress, address)
}

func (s *Store) ClearWalletAddress() error { return s.Delete(KeyWalletAddress) }

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

// Alerts returns every saved alert.
func (s *Store) Alerts() []domain.Alert {
	var list []domain.Alert
	if ok, err := s.Get(KeyAlerts, &list); !ok || err != nil {
		return []domain.Alert{}
	}
	return list
}

// UpdateAlerts applies fn to the saved alerts atomically.
func (s *Store) UpdateAlerts(fn func([]domain.Alert) ([]domain.Alert, error)) error {
	var list []domain.Alert
	return s.Update(KeyAlerts, &list, func(bool) (any, error) {
		next, err := fn(list)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []domain.Alert{}
		}
		return next, nil
	})
}

// Settings is the preferences view served to clients.
type Settings struct {
	Theme             string `json:"theme"`
	RefreshInterval   int64  `json:"refresh_interval"`
	TutorialCompleted bool   `json:"tutorial_completed"`
}

// Settings returns the current preferences.
func (s *Store) Settings() Settings {
	return Settings{
		Theme:             s.Theme(),
		RefreshInterval:   s.RefreshIntervalMillis(),
		TutorialCompleted: s.TutorialCompleted(),
	}
}
