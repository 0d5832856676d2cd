// Package alerts manages per-asset price targets.
package alerts

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rookie/internal/domain"
)

// ErrInvalidPrice is returned for a target that is not a positive number.
var ErrInvalidPrice = errors.New("target price must be a positive number")

// ErrNotFound is returned when removing an unknown alert.
var ErrNotFound = errors.New("alert not found")

// Backend persists the alert list.
type Backend interface {
	Alerts() []domain.Alert
	UpdateAlerts(fn func([]domain.Alert) ([]domain.Alert, error)) error
}

// Service adds, removes and evaluates alerts.
type Service struct {
	backend Backend
	now     func() time.Time
	newID   func() string
}

func NewService(b Backend) *Service {
	return &Service{backend: b, now: time.Now, newID: uuid.NewString}
}

// ParsePrice validates raw user input as a target price.
func ParsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidPrice
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, ErrInvalidPrice
	}
	return p, nil
}

// Add creates an alert on asset at rawPrice. The direction is above when
// the target exceeds the asset's current price, else below.
func (s *Service) Add(asset domain.Asset, rawPrice string) (domain.Alert, error) {
	target, err := ParsePrice(rawPrice)
	if err != nil {
		return domain.Alert{}, err
	}
	dir := domain.AlertBelow
	if target > asset.CurrentPrice {
		dir = domain.AlertAbove
	}
	a := domain.Alert{
		ID:          s.newID(),
		AssetID:     asset.ID,
		Symbol:      asset.Symbol,
		TargetPrice: target,
		Direction:   dir,
		CreatedAt:   s.now().UTC(),
	}
	err = s.backend.UpdateAlerts(func(list []domain.Alert) ([]domain.Alert, error) {
		return append(list, a), nil
	})
	if err != nil {
		return domain.Alert{}, err
	}
	return a, nil
}

// Remove deletes the alert with the given id.
func (s *Service) Remove(id string) error {
	return s.backend.UpdateAlerts(func(list []domain.Alert) ([]domain.Alert, error) {
		for i, a := range list {
			if a.ID == id {
				return append(list[:i:i], list[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

// List returns the alerts for assetID in creation order, or every alert
// when assetID is empty.
func (s *Service) List(assetID string) []domain.Alert {
	all := s.backend.Alerts()
	if assetID == "" {
		return all
	}
	out := make([]domain.Alert, 0)
	for _, a := range all {
		if a.AssetID == assetID {
			out = append(out, a)
		}
	}
	return out
}

// Reached returns the alerts whose asset has crossed the target in the
// recorded direction. Assets with no known price are skipped.
func (s *Service) Reached(assets []domain.Asset) []domain.Alert {
	prices := make(map[string]float64, len(assets))
	for _, a := range assets {
		if _, ok := prices[a.ID]; !ok {
			prices[a.ID] = a.CurrentPrice
		}
	}
	out := make([]domain.Alert, 0)
	for _, a := range s.backend.Alerts() {
		p, ok := prices[a.AssetID]
		if !ok || p <= 0 {
			continue
		}
		if (a.Direction == domain.AlertAbove && p >= a.TargetPrice) ||
			(a.Direction == domain.AlertBelow && p <= a.TargetPrice) {
			out = append(out, a)
		}
	}
	return out
}
