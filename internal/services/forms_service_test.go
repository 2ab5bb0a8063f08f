package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/ethanokamura/catmat/internal/domain"
)

type stubContactRepository struct {
	stored []domain.ContactMessage
	err    error
}

func (s *stubContactRepository) Insert(_ context.Context, msg domain.ContactMessage) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, msg)
	return nil
}

type stubInterestRepository struct {
	stored []domain.InterestCheck
}

func (s *stubInterestRepository) Insert(_ context.Context, check domain.InterestCheck) error {
	s.stored = append(s.stored, check)
	return nil
}

func TestContactServiceSubmit(t *testing.T) {
	repo := &stubContactRepository{}
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewContactService(ContactServiceDeps{Messages: repo, Clock: fixedClock(now), IDGenerator: fixedID("msg_1")})
	if err != nil {
		t.Fatalf("NewContactService: %v", err)
	}

	msg, err := svc.Submit(context.Background(), SubmitContactCommand{
		Name:    " Ana ",
		Email:   "ana@example.com",
		Subject: "Wholesale <i>inquiry</i>",
		Message: "Do you ship to Canada?",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if msg.ID != "msg_1" || !msg.CreatedAt.Equal(now) {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Name != "Ana" || msg.Subject != "Wholesale inquiry" {
		t.Fatalf("expected sanitised fields, got %+v", msg)
	}
	if len(repo.stored) != 1 {
		t.Fatalf("expected stored message")
	}
}

func TestContactServiceValidation(t *testing.T) {
	valid := SubmitContactCommand{Name: "Ana", Email: "ana@example.com", Subject: "Hi", Message: "Hello"}
	cases := map[string]func(*SubmitContactCommand){
		"missing name":     func(c *SubmitContactCommand) { c.Name = " " },
		"bad email":        func(c *SubmitContactCommand) { c.Email = "ana" },
		"missing subject":  func(c *SubmitContactCommand) { c.Subject = "" },
		"long message":     func(c *SubmitContactCommand) { c.Message = strings.Repeat("a", maxContactMessageLength+1) },
		"markup only name": func(c *SubmitContactCommand) { c.Name = "<script>x</script>" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubContactRepository{}
			svc, err := NewContactService(ContactServiceDeps{Messages: repo})
			if err != nil {
				t.Fatalf("NewContactService: %v", err)
			}
			cmd := valid
			mutate(&cmd)
			if _, err := svc.Submit(context.Background(), cmd); !errors.Is(err, ErrContactInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if len(repo.stored) != 0 {
				t.Fatal("expected nothing stored")
			}
		})
	}
}

func TestContactServiceStoreFailure(t *testing.T) {
	svc, err := NewContactService(ContactServiceDeps{Messages: &stubContactRepository{err: errors.New("down")}})
	if err != nil {
		t.Fatalf("NewContactService: %v", err)
	}
	_, err = svc.Submit(context.Background(), SubmitContactCommand{Name: "Ana", Email: "ana@example.com", Subject: "Hi", Message: "Hello"})
	if !errors.Is(err, ErrContactUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestInterestCheckServiceSubmit(t *testing.T) {
	repo := &stubInterestRepository{}
	svc, err := NewInterestCheckService(InterestCheckServiceDeps{Checks: repo, IDGenerator: fixedID("ic_1")})
	if err != nil {
		t.Fatalf("NewInterestCheckService: %v", err)
	}

	check, err := svc.Submit(context.Background(), SubmitInterestCheckCommand{
		Mats:          []string{"round", " round ", "runner"},
		InterestLevel: 4,
		PricePoints:   []string{"$30-40"},
		OtherSizes:    "  ",
		Email:         "fan@example.com",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(check.Mats) != 2 || check.Mats[1] != "runner" {
		t.Fatalf("expected normalised mats, got %v", check.Mats)
	}
	if check.OtherSizes != nil || check.Suggestions != nil {
		t.Fatal("expected empty optional fields to be nil")
	}
	if check.Email == nil || *check.Email != "fan@example.com" {
		t.Fatalf("unexpected email %v", check.Email)
	}
	if len(repo.stored) != 1 || repo.stored[0].ID != "ic_1" {
		t.Fatalf("expected stored check, got %+v", repo.stored)
	}
}

func TestInterestCheckServiceValidation(t *testing.T) {
	svc, err := NewInterestCheckService(InterestCheckServiceDeps{Checks: &stubInterestRepository{}})
	if err != nil {
		t.Fatalf("NewInterestCheckService: %v", err)
	}
	cases := map[string]SubmitInterestCheckCommand{
		"no mats":    {Mats: []string{" "}, InterestLevel: 3},
		"level low":  {Mats: []string{"round"}, InterestLevel: 0},
		"level high": {Mats: []string{"round"}, InterestLevel: 6},
		"bad email":  {Mats: []string{"round"}, InterestLevel: 3, Email: "nope"},
	}
	for name, cmd := range cases {
		if _, err := svc.Submit(context.Background(), cmd); !errors.Is(err, ErrInterestCheckInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}

type stubAdminRepository struct {
	admins map[string]domain.AdminUser
	err    error
}

func (s stubAdminRepository) FindByUID(_ context.Context, uid string) (domain.AdminUser, error) {
	if s.err != nil {
		return domain.AdminUser{}, s.err
	}
	admin, ok := s.admins[uid]
	if !ok {
		return domain.AdminUser{}, repoErr{notFound: true}
	}
	return admin, nil
}

func TestAdminServiceAuthorize(t *testing.T) {
	svc, err := NewAdminService(AdminServiceDeps{Admins: stubAdminRepository{admins: map[string]domain.AdminUser{
		"owner": {UID: "owner", Role: domain.AdminRoleSuperAdmin},
		"staff": {Role: domain.AdminRoleAdmin},
		"odd":   {UID: "odd", Role: "viewer"},
	}}})
	if err != nil {
		t.Fatalf("NewAdminService: %v", err)
	}

	cases := map[string]bool{"owner": true, "staff": true, "odd": false, "stranger": false, "": false}
	for uid, want := range cases {
		admin, ok, err := svc.Authorize(context.Background(), uid)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", uid, err)
		}
		if ok != want {
			t.Fatalf("%s: expected %v, got %v", uid, want, ok)
		}
		if ok && admin.UID != uid {
			t.Fatalf("%s: expected uid populated, got %q", uid, admin.UID)
		}
	}
}

func TestAdminServiceAuthorizeDefaultsMissingRole(t *testing.T) {
	svc, err := NewAdminService(AdminServiceDeps{Admins: stubAdminRepository{admins: map[string]domain.AdminUser{
		"uid-1": {UID: "uid-1", Email: "ops@example.com"},
	}}})
	if err != nil {
		t.Fatalf("NewAdminService: %v", err)
	}

	admin, ok, err := svc.Authorize(context.Background(), "uid-1")
	if err != nil || !ok {
		t.Fatalf("expected record without role granted, got ok=%v err=%v", ok, err)
	}
	if admin.Role != domain.AdminRoleAdmin {
		t.Fatalf("expected admin role default, got %q", admin.Role)
	}
}

func TestAdminServiceAuthorizePropagatesLookupFailure(t *testing.T) {
	svc, err := NewAdminService(AdminServiceDeps{Admins: stubAdminRepository{err: repoErr{unavailable: true}}})
	if err != nil {
		t.Fatalf("NewAdminService: %v", err)
	}
	if _, ok, err := svc.Authorize(context.Background(), "owner"); err == nil || ok {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
}
