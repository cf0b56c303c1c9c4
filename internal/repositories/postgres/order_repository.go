package postgres

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/spokeworks/api/internal/domain"
)

// OrderRepository persists service orders in the service_orders table.
type OrderRepository struct {
	db *sql.DB
}

const orderColumns = `id, bike_id, customer_id, status, total_price, created_by, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, order domain.ServiceOrder, creatorID int64) (domain.ServiceOrder, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO service_orders (bike_id, customer_id, status, total_price, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderColumns+`
	`, order.BikeID, order.CustomerID, order.Status, order.TotalPrice, creatorID)

	saved, err := scanOrder(row)
	if err != nil {
		return domain.ServiceOrder{}, WrapError("postgres: insert order", err)
	}
	return saved, nil
}

func (r *OrderRepository) Update(ctx context.Context, order domain.ServiceOrder) error {
	result, err := runner(ctx, r.db).ExecContext(ctx, `
		UPDATE service_orders
		SET status = $1, total_price = $2, updated_at = NOW()
		WHERE id = $3
	`, order.Status, order.TotalPrice, order.ID)
	if err != nil {
		return WrapError("postgres: update order", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError("postgres: update order", err)
	}
	if affected == 0 {
		return notFoundError("postgres: update order", fmt.Sprintf("order %d does not exist", order.ID))
	}
	return nil
}

func (r *OrderRepository) UpdateIfStatus(ctx context.Context, order domain.ServiceOrder, expected domain.OrderStatus) error {
	result, err := runner(ctx, r.db).ExecContext(ctx, `
		UPDATE service_orders
		SET status = $1, total_price = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, order.Status, order.TotalPrice, order.ID, expected)
	if err != nil {
		return WrapError("postgres: update order if status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError("postgres: update order if status", err)
	}
	if affected == 0 {
		return conflictError("postgres: update order if status",
			fmt.Sprintf("order %d is not in status %q", order.ID, expected))
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (domain.ServiceOrder, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders
		WHERE id = $1
	`, orderID)

	order, err := scanOrder(row)
	if err != nil {
		return domain.ServiceOrder{}, WrapError("postgres: find order", err)
	}
	return order, nil
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, orderID int64) (domain.ServiceOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM service_orders WHERE id = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	row := runner(ctx, r.db).QueryRowContext(ctx, query, orderID)

	order, err := scanOrder(row)
	if err != nil {
		return domain.ServiceOrder{}, WrapError("postgres: find order for update", err)
	}
	return order, nil
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.ServiceOrder, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, WrapError("postgres: list orders", err)
	}
	return collectOrders(rows, "postgres: list orders")
}

func (r *OrderRepository) ListForCustomer(ctx context.Context, customerID int64) ([]domain.ServiceOrder, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM service_orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`, customerID)
	if err != nil {
		return nil, WrapError("postgres: list customer orders", err)
	}
	return collectOrders(rows, "postgres: list customer orders")
}

func scanOrder(row *sql.Row) (domain.ServiceOrder, error) {
	var order domain.ServiceOrder
	err := row.Scan(
		&order.ID,
		&order.BikeID,
		&order.CustomerID,
		&order.Status,
		&order.TotalPrice,
		&order.CreatedBy,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

func collectOrders(rows *sql.Rows, op string) ([]domain.ServiceOrder, error) {
	defer func() { _ = rows.Close() }()

	orders := []domain.ServiceOrder{}
	for rows.Next() {
		var order domain.ServiceOrder
		if err := rows.Scan(
			&order.ID,
			&order.BikeID,
			&order.CustomerID,
			&order.Status,
			&order.TotalPrice,
			&order.CreatedBy,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, WrapError(op, err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(op, err)
	}
	return orders, nil
}
