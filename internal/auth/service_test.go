package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/sharath018/field-visit-backend/config"
	"github.com/sharath018/field-visit-backend/internal/employee"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsers struct {
	users  map[uint]*User
	nextID uint
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uint]*User{}, nextID: 1}
}

func (r *fakeUsers) Create(_ context.Context, u *User) error {
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUsers) FindByLogin(_ context.Context, identifier string) (*User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, identifier) || u.Username == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeUsers) FindByID(_ context.Context, id uint) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

func (r *fakeUsers) ExistsByEmployeeID(_ context.Context, employeeID string) (bool, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.EmployeeID, employeeID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string, exceptID uint) (bool, error) {
	for _, u := range r.users {
		if u.ID != exceptID && (u.Username == username || strings.EqualFold(u.Email, email)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUsers) Update(_ context.Context, u *User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

type fakeRegistry map[string]employee.Employee

func (f fakeRegistry) FindByEmployeeID(_ context.Context, id string) (*employee.Employee, error) {
	e, ok := f[id]
	if !ok {
		return nil, &visit.NotFoundError{Kind: "employee", ID: id}
	}
	return &e, nil
}

func (f fakeRegistry) Upsert(context.Context, []employee.Employee) error { return nil }

func newTestService(t *testing.T) (Service, *fakeUsers) {
	t.Helper()
	registry := fakeRegistry{
		"DC001":  {EmployeeID: "DC001", Position: visit.DesignationCollector, Active: true},
		"TAH201": {EmployeeID: "TAH201", Position: visit.DesignationTahsildar, Active: true},
		"BDO301": {EmployeeID: "BDO301", Position: visit.DesignationBDO, Active: true},
	}
	users := newFakeUsers()
	cfg := &config.Config{
		JWTAccessSecret:    "access-secret-for-tests",
		JWTRefreshSecret:   "refresh-secret-for-tests",
		JWTAccessTTLHours:  1,
		JWTRefreshTTLHours: 24,
	}
	svc := NewService(users, employee.NewService(registry, nil, zap.NewNop()), nil, cfg, zap.NewNop())
	return svc, users
}

func TestRegisterUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Username: "priya", Email: " Priya@Example.gov ", Password: "secret123",
		Role: "user", EmployeeID: "tah201", Designation: "Tahsildar",
	})
	require.NoError(t, err)
	assert.Equal(t, "User", u.Role)
	assert.Equal(t, "TAH201", u.EmployeeID)
	assert.Equal(t, "priya@example.gov", u.Email)
	assert.Equal(t, visit.DesignationTahsildar, u.Designation)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{
		Username: "other", Email: "o@example.gov", Password: "x", Role: "User", EmployeeID: "TAH201", Designation: "TAH",
	})
	assert.ErrorIs(t, err, ErrEmployeeIDTaken)

	available, err := svc.EmployeeIDAvailable(ctx, "tah201")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestRegisterRejectsMismatches(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x", Password: "p", Role: "User", EmployeeID: "BDO301", Designation: "Tahsildar"})
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, employee.ReasonWrongPosition, regErr.Reason)

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x", Password: "p", Role: "Admin", EmployeeID: "TAH201"})
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, regErr.Message, "District Collector")

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x", Password: "p", Role: "User", EmployeeID: "DC001", Designation: "District Collector"})
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "invalid_designation", regErr.Reason)

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x", Password: "p", Role: "Owner"})
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "invalid_role", regErr.Reason)
}

func TestLoginAndTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterInput{Username: "collector", Email: "dc@example.gov", Password: "pass1234", Role: "Admin", EmployeeID: "DC001"})
	require.NoError(t, err)
	assert.Equal(t, visit.DesignationCollector, admin.Designation)
	assert.True(t, admin.Session().IsAdmin())

	_, _, err = svc.Login(ctx, LoginInput{Login: "collector", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, LoginInput{Login: "nobody", Password: "pass1234"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, u, err := svc.Login(ctx, LoginInput{Login: "DC@example.gov", Password: "pass1234"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, u.ID)

	id, err := svc.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, id)

	_, err = svc.ParseAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	id, err = svc.ParseAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, id)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.Error(t, err)
}

func TestLoginInactive(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "ravi", Email: "r@x", Password: "pw", Role: "User", EmployeeID: "BDO301", Designation: "BDO"})
	require.NoError(t, err)
	users.users[u.ID].Status = "inactive"

	_, _, err = svc.Login(ctx, LoginInput{Login: "ravi", Password: "pw"})
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, RegisterInput{Username: "priya", Email: "p@x", Password: "old", Role: "User", EmployeeID: "TAH201", Designation: "Tahsildar"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Username: "ravi", Email: "r@x", Password: "pw", Role: "User", EmployeeID: "BDO301", Designation: "BDO"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{Username: "ravi"})
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{NewPassword: "new", CurrentPassword: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	updated, err := svc.UpdateProfile(ctx, a.ID, UpdateProfileInput{Email: "PRIYA@x", NewPassword: "new", CurrentPassword: "old"})
	require.NoError(t, err)
	assert.Equal(t, "priya@x", updated.Email)

	_, _, err = svc.Login(ctx, LoginInput{Login: "priya", Password: "new"})
	assert.NoError(t, err)
}
