package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grandlivre-erp/grandlivre/internal/shared"
)

type stubRepo struct {
	clients map[int64]Client
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{clients: make(map[int64]Client)}
}

func (r *stubRepo) List(ctx context.Context, organizationID int64, filters shared.ListFilters) ([]Client, int, error) {
	var out []Client
	for _, c := range r.clients {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (r *stubRepo) Get(ctx context.Context, id int64) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *stubRepo) Create(ctx context.Context, client Client) (Client, error) {
	r.nextID++
	client.ID = r.nextID
	r.clients[client.ID] = client
	return client, nil
}

func (r *stubRepo) Update(ctx context.Context, id int64, client Client) error {
	if _, ok := r.clients[id]; !ok {
		return shared.ErrNotFound
	}
	client.ID = id
	r.clients[id] = client
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.clients[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

func TestCreateNormalizesAndDefaults(t *testing.T) {
	service := NewService(newStubRepo())

	created, err := service.Create(context.Background(), Client{
		OrganizationID: 1,
		Code:           " cli-001 ",
		Name:           "  dupont   et fils ",
	})
	require.NoError(t, err)
	require.Equal(t, "CLI-001", created.Code)
	require.Equal(t, "Dupont Et Fils", created.Name)
	require.Equal(t, 30, created.PaymentDays)
}

func TestCreateRequiresCodeAndName(t *testing.T) {
	service := NewService(newStubRepo())

	_, err := service.Create(context.Background(), Client{OrganizationID: 1, Name: "Dupont"})
	require.Error(t, err)

	_, err = service.Create(context.Background(), Client{OrganizationID: 1, Code: "CLI-001"})
	require.Error(t, err)

	_, err = service.Create(context.Background(), Client{Code: "CLI-001", Name: "Dupont"})
	require.Error(t, err)
}

func TestGetUnknownClient(t *testing.T) {
	service := NewService(newStubRepo())

	_, err := service.Get(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = service.Get(context.Background(), 0)
	require.Error(t, err)
}
