package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type stubRepo struct {
	byEmail map[string]User
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{byEmail: make(map[string]User)}
}

func (r *stubRepo) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range r.byEmail {
		out = append(out, u)
	}
	return out, nil
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *stubRepo) CreateUser(ctx context.Context, user User) (User, error) {
	r.nextID++
	user.ID = r.nextID
	r.byEmail[user.Email] = user
	return user, nil
}

func (r *stubRepo) SetActive(ctx context.Context, id int64, active bool) error {
	for email, u := range r.byEmail {
		if u.ID == id {
			u.IsActive = active
			r.byEmail[email] = u
			return nil
		}
	}
	return shared.ErrNotFound
}

func TestCreateUserHashesPassword(t *testing.T) {
	service := NewService(newStubRepo())

	user, err := service.CreateUser(context.Background(), " Alice@Example.COM ", "Alice", "s3cretpass")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "s3cretpass", user.PasswordHash)
	require.NotEmpty(t, user.PasswordHash)
	require.True(t, user.IsActive)
}

func TestCreateUserRejectsWeakPassword(t *testing.T) {
	service := NewService(newStubRepo())

	_, err := service.CreateUser(context.Background(), "bob@example.com", "Bob", "short")
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo)

	_, err := service.CreateUser(context.Background(), "carol@example.com", "Carol", "correctpass")
	require.NoError(t, err)

	user, err := service.Authenticate(context.Background(), "carol@example.com", "correctpass")
	require.NoError(t, err)
	require.Equal(t, "carol@example.com", user.Email)

	_, err = service.Authenticate(context.Background(), "carol@example.com", "wrongpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = service.Authenticate(context.Background(), "nobody@example.com", "correctpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo)

	user, err := service.CreateUser(context.Background(), "dave@example.com", "Dave", "correctpass")
	require.NoError(t, err)
	require.NoError(t, service.SetActive(context.Background(), user.ID, false))

	_, err = service.Authenticate(context.Background(), "dave@example.com", "correctpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
