package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/techfy/storefront-api/internal/domain"
	pfirestore "github.com/techfy/storefront-api/internal/platform/firestore"
	"github.com/techfy/storefront-api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository stores one document per order, keyed by order number, so document creation
// doubles as the uniqueness constraint on the number.
type OrderRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	ref, err := r.docRef(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainOrder(order)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return pfirestore.Conflict("orders.insert", "order number already taken")
		}
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update writes the mutable fields and appends support-log entries beyond those already stored,
// after checking the stored version inside a transaction.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	ref, err := r.docRef(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored orderDocument
		if err := snap.DataTo(&stored); err != nil {
			return fmt.Errorf("decode order %s: %w", order.OrderNumber, err)
		}
		if stored.Version != expectedVersion {
			return pfirestore.Conflict("orders.update", "order was modified concurrently")
		}

		updates := []firestore.Update{
			{Path: "status", Value: string(order.Status)},
			{Path: "shippingAddress", Value: addressDocument(order.ShippingAddress)},
			{Path: "shippedAt", Value: order.ShippedAt},
			{Path: "deliveredAt", Value: order.DeliveredAt},
			{Path: "updatedAt", Value: order.UpdatedAt.UTC()},
			{Path: "version", Value: order.Version},
		}
		if added := repositories.NewSupportEntries(order, len(stored.SupportLog)); len(added) > 0 {
			entries := fromDomainSupportLog(added)
			values := make([]any, len(entries))
			for i, entry := range entries {
				values[i] = entry
			}
			updates = append(updates, firestore.Update{Path: "supportLog", Value: firestore.ArrayUnion(values...)})
		}
		return tx.Update(ref, updates)
	}, pfirestore.WithTxAttempts(1))
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	ref, err := r.docRef(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.find", err)
	}
	return decodeOrder(snap)
}

func (r *OrderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	ref, err := r.docRef(ctx, orderNumber)
	if err != nil {
		return false, err
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, pfirestore.WrapError("orders.exists", err)
	}
	return snap.Exists(), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Where("userId", "==", strings.TrimSpace(userID)).OrderBy("createdAt", firestore.Desc)
	return collect(query.Documents(ctx), "orders.list_by_user")
}

// Search filters by status in the query. Free-text matching has no Firestore equivalent, so
// text searches scan the status-filtered set and paginate in memory.
func (r *OrderRepository) Search(ctx context.Context, filter repositories.OrderSearchFilter) (domain.PageResult[domain.Order], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.PageResult[domain.Order]{}, err
	}
	query := coll.Query
	if filter.Status != nil {
		query = query.Where("status", "==", string(*filter.Status))
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	if repositories.FoldQuery(filter.Query) != "" {
		orders, err := collect(query.Documents(ctx), "orders.search")
		if err != nil {
			return domain.PageResult[domain.Order]{}, err
		}
		matched := orders[:0]
		for _, order := range orders {
			if repositories.MatchesSearch(order, filter) {
				matched = append(matched, order)
			}
		}
		return repositories.Paginate(matched, filter.Page), nil
	}

	total, err := count(ctx, query)
	if err != nil {
		return domain.PageResult[domain.Order]{}, err
	}
	paged := query.Offset(filter.Page.Offset())
	if filter.Page.Limit > 0 {
		paged = paged.Limit(filter.Page.Limit)
	}
	orders, err := collect(paged.Documents(ctx), "orders.search")
	if err != nil {
		return domain.PageResult[domain.Order]{}, err
	}
	return domain.PageResult[domain.Order]{
		Items: orders,
		Page:  filter.Page.Page,
		Limit: filter.Page.Limit,
		Total: total,
	}, nil
}

func (r *OrderRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, pfirestore.WrapError("orders.client", err)
	}
	return client.Collection(ordersCollection), nil
}

func (r *OrderRepository) docRef(ctx context.Context, orderNumber string) (*firestore.DocumentRef, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" || strings.Contains(orderNumber, "/") {
		return nil, pfirestore.NotFound("orders.doc", "invalid order number")
	}
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(orderNumber), nil
}

func count(ctx context.Context, query firestore.Query) (int, error) {
	result, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("orders.count", err)
	}
	value, ok := result["total"].(*firestorepb.Value)
	if !ok {
		return 0, pfirestore.WrapError("orders.count", errors.New("unexpected aggregation result"))
	}
	return int(value.GetIntegerValue()), nil
}

func collect(iter *firestore.DocumentIterator, op string) ([]domain.Order, error) {
	defer iter.Stop()
	orders := make([]domain.Order, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return orders, nil
		}
		if err != nil {
			return nil, pfirestore.WrapError(op, err)
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(), nil
}
