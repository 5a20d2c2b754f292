package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/repositories"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleOrder(number, userID, email string, created time.Time) domain.Order {
	return domain.Order{
		ID:          "id-" + number,
		OrderNumber: number,
		UserID:      userID,
		Status:      domain.OrderStatusPlaced,
		Customer:    domain.CustomerContact{Name: "Ana Silva", Email: email},
		Items:       []domain.OrderItem{{ProductID: 1, Quantity: 1, UnitPrice: 100, LineTotal: 100}},
		CreatedAt:   created,
		UpdatedAt:   created,
		Version:     1,
	}
}

func TestInsertRejectsDuplicateNumber(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, sampleOrder("JJ00000001", "", "a@example.com", baseTime)))

	err := store.Insert(ctx, sampleOrder("JJ00000001", "", "b@example.com", baseTime))
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	exists, err := store.ExistsByNumber(ctx, "JJ00000001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertRejectsBlankNumberAsInvalid(t *testing.T) {
	store := NewOrderStore()

	err := store.Insert(context.Background(), sampleOrder("  ", "", "a@example.com", baseTime))
	var orderErr *repositories.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.True(t, orderErr.IsInvalid())
	assert.False(t, orderErr.IsUnavailable())
	assert.Equal(t, 0, store.Len())
}

func TestUpdateIsCompareAndSet(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, sampleOrder("JJ00000002", "u1", "a@example.com", baseTime)))

	order, err := store.FindByNumber(ctx, "JJ00000002")
	require.NoError(t, err)
	order.Status = domain.OrderStatusPacking
	order.Version = 2
	require.NoError(t, store.Update(ctx, order, 1))

	stale := order
	stale.Status = domain.OrderStatusCancelled
	stale.Version = 2
	err = store.Update(ctx, stale, 1)
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsConflict())

	got, _ := store.FindByNumber(ctx, "JJ00000002")
	assert.Equal(t, domain.OrderStatusPacking, got.Status)
	assert.EqualValues(t, 2, got.Version)
}

func TestUpdateOnlyAppendsSupportLog(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	order := sampleOrder("JJ00000003", "", "a@example.com", baseTime)
	order.SupportLog = []domain.SupportLogEntry{{ID: "log-1", Action: domain.SupportActionUpdateStatus, Details: map[string]any{"status": "PACKING"}}}
	require.NoError(t, store.Insert(ctx, order))

	edited := order
	edited.SupportLog = []domain.SupportLogEntry{
		{ID: "log-1", Action: domain.SupportActionChangeAddress, Details: map[string]any{"tampered": true}},
		{ID: "log-2", Action: domain.SupportActionChangeAddress},
	}
	edited.Version = 2
	require.NoError(t, store.Update(ctx, edited, 1))

	got, _ := store.FindByNumber(ctx, "JJ00000003")
	require.Len(t, got.SupportLog, 2)
	assert.Equal(t, domain.SupportActionUpdateStatus, got.SupportLog[0].Action)
	assert.Equal(t, "log-2", got.SupportLog[1].ID)
}

func TestFindReturnsIsolatedCopy(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, sampleOrder("JJ00000004", "", "a@example.com", baseTime)))

	got, _ := store.FindByNumber(ctx, "JJ00000004")
	got.Items[0].Quantity = 99

	again, _ := store.FindByNumber(ctx, "JJ00000004")
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestFindMissingIsNotFound(t *testing.T) {
	_, err := NewOrderStore().FindByNumber(context.Background(), "JJ404")
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsNotFound())
}

func TestListByUserNewestFirst(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, sampleOrder("JJ00000010", "u1", "a@example.com", baseTime)))
	require.NoError(t, store.Insert(ctx, sampleOrder("JJ00000011", "u1", "a@example.com", baseTime.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, sampleOrder("JJ00000012", "u2", "b@example.com", baseTime.Add(2*time.Hour))))

	orders, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "JJ00000011", orders[0].OrderNumber)
	assert.Equal(t, "JJ00000010", orders[1].OrderNumber)
}

func TestSearchFiltersAndPaginates(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		order := sampleOrder(fmt.Sprintf("JJ%08d", i), "", fmt.Sprintf("buyer%d@example.com", i), baseTime.Add(time.Duration(i)*time.Minute))
		if i%3 == 0 {
			order.Status = domain.OrderStatusShipped
		}
		require.NoError(t, store.Insert(ctx, order))
	}

	shipped := domain.OrderStatusShipped
	page, err := store.Search(ctx, repositories.OrderSearchFilter{Status: &shipped, Page: domain.PageQuery{Page: 1, Limit: 3}})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 2, page.TotalPages())
	assert.Equal(t, "JJ00000009", page.Items[0].OrderNumber)

	page, err = store.Search(ctx, repositories.OrderSearchFilter{Query: "BUYER11@", Page: domain.PageQuery{Page: 1, Limit: 10}})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "JJ00000011", page.Items[0].OrderNumber)

	page, err = store.Search(ctx, repositories.OrderSearchFilter{Page: domain.PageQuery{Page: 5, Limit: 10}})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 12, page.Total)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {id: 1, name: Shirt, price: 2500}\n  - {id: 2, name: Tote, price: 1200}\n"), 0o600))

	catalog, err := LoadCatalogFile(path)
	require.NoError(t, err)

	products, err := catalog.LookupProducts(context.Background(), []int64{2, 9, 2})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int64(1200), products[0].Price)
}

func TestLoadCatalogFileRejectsInvalidProducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - {id: 0, name: Broken, price: 1}\n"), 0o600))
	_, err := LoadCatalogFile(path)
	assert.Error(t, err)
}
