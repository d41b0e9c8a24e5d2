package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/events"
)

func TestEnsureUser_Idempotent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	first, err := s.users.EnsureUser(ctx, "user_a", "A@Example.com", "Ada")
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if first.IsPro {
		t.Error("a new user must start on the free tier")
	}

	second, err := s.users.EnsureUser(ctx, "user_a", "other@example.com", "Someone Else")
	if err != nil {
		t.Fatalf("second EnsureUser() error = %v", err)
	}

	if len(s.store.users) != 1 {
		t.Errorf("store has %d users, want exactly 1", len(s.store.users))
	}
	if second.ID != first.ID {
		t.Errorf("second call returned a different record: %s vs %s", second.ID, first.ID)
	}
	if second.Name != "Ada" {
		t.Errorf("existing record must be returned unchanged, got name %q", second.Name)
	}
}

func TestEnsureUser_Concurrent(t *testing.T) {
	s := newServices(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.users.EnsureUser(context.Background(), "user_race", "race@example.com", "Racer"); err != nil {
				t.Errorf("EnsureUser() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(s.store.users) != 1 {
		t.Errorf("store has %d users, want 1", len(s.store.users))
	}
}

func TestEnsureUser_EmptyIdentity(t *testing.T) {
	s := newServices(t)

	_, err := s.users.EnsureUser(context.Background(), "  ", "x@example.com", "X")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("EnsureUser() error = %v, want ErrValidation", err)
	}
}

func TestGetByIdentity(t *testing.T) {
	s := newServices(t)
	s.mustUser(t, "user_a")

	if _, err := s.users.GetByIdentity(context.Background(), "user_a"); err != nil {
		t.Errorf("GetByIdentity(user_a) error = %v", err)
	}
	if _, err := s.users.GetByIdentity(context.Background(), "user_missing"); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Errorf("GetByIdentity(missing) error = %v, want ErrUserNotFound", err)
	}
	if _, err := s.users.GetByIdentity(context.Background(), ""); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("GetByIdentity(\"\") error = %v, want ErrUnauthenticated", err)
	}
}

func TestUpgradeToPro(t *testing.T) {
	s := newServices(t)
	s.mustUser(t, "user_a")

	user, err := s.users.UpgradeToPro(context.Background(), "USER_A@example.com", "cus_1", "ord_1")
	if err != nil {
		t.Fatalf("UpgradeToPro() error = %v", err)
	}
	if user == nil || !user.IsPro {
		t.Fatalf("UpgradeToPro() = %+v, want a pro user", user)
	}

	stored := s.store.users["user_a"]
	if !stored.IsPro || stored.ProSince == nil {
		t.Error("stored user should be pro with a start timestamp")
	}
	if stored.LemonSqueezyCustomerID != "cus_1" || stored.LemonSqueezyOrderID != "ord_1" {
		t.Errorf("provider ids = %q/%q, want cus_1/ord_1", stored.LemonSqueezyCustomerID, stored.LemonSqueezyOrderID)
	}

	types := s.publisher.types()
	if types[len(types)-1] != events.UserUpgraded {
		t.Errorf("last event = %q, want %q", types[len(types)-1], events.UserUpgraded)
	}
}

func TestUpgradeToPro_UnknownEmailIsDropped(t *testing.T) {
	s := newServices(t)
	s.mustUser(t, "user_a")

	user, err := s.users.UpgradeToPro(context.Background(), "stranger@example.com", "cus_1", "ord_1")
	if err != nil {
		t.Fatalf("UpgradeToPro() error = %v, want nil (dropped)", err)
	}
	if user != nil {
		t.Errorf("UpgradeToPro() = %+v, want nil", user)
	}
	if s.store.users["user_a"].IsPro {
		t.Error("no user should have been upgraded")
	}
}
