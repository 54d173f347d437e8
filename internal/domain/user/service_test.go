package user

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
)

type fakeRepo struct {
	users map[uuid.UUID]*User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[uuid.UUID]*User{}}
}

func (f *fakeRepo) Create(_ context.Context, u *User) error {
	u.ID = uuid.New()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, u *User) error {
	if _, ok := f.users[u.ID]; !ok {
		return apperror.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	u, ok := f.users[id]
	if !ok || !u.Active {
		return apperror.ErrNotFound
	}
	u.Active = false
	return nil
}

func (f *fakeRepo) List(_ context.Context, role string, limit, offset int) ([]*User, int, error) {
	var out []*User
	for _, u := range f.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListBySpecialty(_ context.Context, specialty string) ([]*User, error) {
	var out []*User
	for _, u := range f.users {
		if !u.Active || u.Role != auth.RolePhysician {
			continue
		}
		for _, sp := range u.Specialties {
			if strings.EqualFold(sp, specialty) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo, zerolog.New(os.Stderr)), repo
}

func strPtr(s string) *string { return &s }

func validPhysician() *User {
	return &User{
		Name:          "Dra. Elena Ruiz",
		Email:         "elena.ruiz@hospital.example",
		Role:          auth.RolePhysician,
		Specialties:   []string{"cardiología"},
		LicenseNumber: strPtr("RM-10293"),
	}
}

func TestCreate_Physician(t *testing.T) {
	svc, repo := newTestService()
	u := validPhysician()
	if err := svc.Create(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.Active {
		t.Error("new users should be active")
	}
	if u.Specialties[0] != "Cardiología" {
		t.Errorf("specialty should be canonicalized, got %q", u.Specialties[0])
	}
	if len(repo.users) != 1 {
		t.Errorf("expected 1 stored user, got %d", len(repo.users))
	}
}

func TestCreate_PhysicianMissingLicenseAndSpecialty(t *testing.T) {
	svc, _ := newTestService()
	u := &User{
		Name:  "Dr. Sin Datos",
		Email: "sd@hospital.example",
		Role:  auth.RolePhysician,
	}
	err := svc.Create(context.Background(), u)
	var ve *apperror.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("expected both rules reported, got %+v", ve.Errors)
	}
}

func TestCreate_AdminWithLicenseRejected(t *testing.T) {
	svc, _ := newTestService()
	u := &User{
		Name:          "Admin",
		Email:         "admin@hospital.example",
		Role:          auth.RoleAdmin,
		LicenseNumber: strPtr("RM-1"),
	}
	var ve *apperror.ValidationError
	if err := svc.Create(context.Background(), u); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreate_UnknownSpecialty(t *testing.T) {
	svc, _ := newTestService()
	u := validPhysician()
	u.Specialties = []string{"Alquimia"}
	var ve *apperror.ValidationError
	if err := svc.Create(context.Background(), u); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Create(context.Background(), validPhysician()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	dup := validPhysician()
	dup.Email = "ELENA.RUIZ@hospital.example"
	var ve *apperror.ValidationError
	if err := svc.Create(context.Background(), dup); !errors.As(err, &ve) {
		t.Fatalf("expected duplicate email rejection, got %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService()
	u := validPhysician()
	u.ID = uuid.New()
	if err := svc.Update(context.Background(), u); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	svc, repo := newTestService()
	u := validPhysician()
	if err := svc.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if err := svc.Deactivate(context.Background(), u.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.users[u.ID].Active {
		t.Error("user should be inactive")
	}
	if err := svc.Deactivate(context.Background(), u.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second deactivate should report not found, got %v", err)
	}
}

func TestPhysiciansForSpecialty(t *testing.T) {
	svc, _ := newTestService()
	u := validPhysician()
	if err := svc.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	got, err := svc.PhysiciansForSpecialty(context.Background(), "Cardiología")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 physician, got %d", len(got))
	}
}
