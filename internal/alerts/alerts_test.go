package alerts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"rookie/internal/domain"
)

type memBackend struct{ list []domain.Alert }

func (m *memBackend) Alerts() []domain.Alert { return append([]domain.Alert(nil), m.list...) }

func (m *memBackend) UpdateAlerts(fn func([]domain.Alert) ([]domain.Alert, error)) error {
	next, err := fn(append([]domain.Alert(nil), m.list...))
	if err != nil {
		return err
	}
	m.list = next
	return nil
}

func newTestService() (*Service, *memBackend) {
	b := &memBackend{}
	s := NewService(b)
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, b
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42.5", 42.5, true},
		{" 7 ", 7, true},
		{"", 0, false},
		{"abc", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParsePrice(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("ParsePrice(%q) error = %v, want ErrInvalidPrice", tt.in, err)
		}
	}
}

func TestAddDirectionAndList(t *testing.T) {
	s, b := newTestService()
	btc := domain.Asset{ID: "bitcoin", Symbol: "BTC", CurrentPrice: 50000}

	up, err := s.Add(btc, "60000")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if up.Direction != domain.AlertAbove || up.ID != "id-1" || up.Symbol != "BTC" {
		t.Errorf("alert = %+v", up)
	}
	down, _ := s.Add(btc, "40000")
	if down.Direction != domain.AlertBelow {
		t.Errorf("direction = %q, want below", down.Direction)
	}
	_, _ = s.Add(domain.Asset{ID: "AAPL", CurrentPrice: 100}, "120")

	if _, err := s.Add(btc, "soon"); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("Add(soon) = %v", err)
	}
	if len(b.list) != 3 {
		t.Errorf("stored %d alerts, want 3", len(b.list))
	}

	if got := s.List("bitcoin"); len(got) != 2 || got[0].ID != "id-1" {
		t.Errorf("List(bitcoin) = %v", got)
	}
	if got := s.List(""); len(got) != 3 {
		t.Errorf("List() = %d alerts, want 3", len(got))
	}
}

func TestRemove(t *testing.T) {
	s, b := newTestService()
	a, _ := s.Add(domain.Asset{ID: "x", CurrentPrice: 1}, "2")
	_, _ = s.Add(domain.Asset{ID: "y", CurrentPrice: 1}, "2")

	if err := s.Remove(a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(b.list) != 1 || b.list[0].AssetID != "y" {
		t.Errorf("remaining = %v", b.list)
	}
	if err := s.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(missing) = %v, want ErrNotFound", err)
	}
}

func TestReached(t *testing.T) {
	s, _ := newTestService()
	_, _ = s.Add(domain.Asset{ID: "bitcoin", CurrentPrice: 100}, "110") // above
	_, _ = s.Add(domain.Asset{ID: "bitcoin", CurrentPrice: 100}, "90")  // below
	_, _ = s.Add(domain.Asset{ID: "AAPL", CurrentPrice: 100}, "150")    // above

	got := s.Reached([]domain.Asset{{ID: "bitcoin", CurrentPrice: 111}, {ID: "AAPL", CurrentPrice: 0}})
	if len(got) != 1 || got[0].TargetPrice != 110 {
		t.Errorf("Reached = %v, want only the 110 target", got)
	}

	got = s.Reached([]domain.Asset{{ID: "bitcoin", CurrentPrice: 90}})
	if len(got) != 1 || got[0].TargetPrice != 90 {
		t.Errorf("Reached at 90 = %v, want the below target", got)
	}
}
