package postgres

import (
	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// ClientRepository persists clients.
type ClientRepository = ResourceRepository[domain.Client]

// EquipmentRepository persists equipment.
type EquipmentRepository = ResourceRepository[domain.Equipment]

// TransactionRepository persists financial transactions.
type TransactionRepository = ResourceRepository[domain.Transaction]

// QuoteRepository persists quotes.
type QuoteRepository = ResourceRepository[domain.Quote]

var clientsTable = table[domain.Client]{
	name: "clients",
	columns: []string{
		"id", "owner_id", "name", "email", "phone", "document", "address", "created_at", "updated_at",
	},
	patchable: columnSet("name", "email", "phone", "document", "address"),
	scan: func(row pgx.Row, c *domain.Client) error {
		return row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.Document, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	},
	values: func(c *domain.Client) map[string]any {
		return map[string]any{
			"id":       c.ID,
			"owner_id": c.OwnerID,
			"name":     c.Name,
			"email":    c.Email,
			"phone":    c.Phone,
			"document": c.Document,
			"address":  c.Address,
		}
	},
	orderBy: "name ASC, id ASC",
}

var equipmentTable = table[domain.Equipment]{
	name: "equipment",
	columns: []string{
		"id", "owner_id", "client_id", "name", "brand", "model", "serial_number", "installed_at", "created_at", "updated_at",
	},
	patchable: columnSet("client_id", "name", "brand", "model", "serial_number", "installed_at"),
	scan: func(row pgx.Row, e *domain.Equipment) error {
		return row.Scan(&e.ID, &e.OwnerID, &e.ClientID, &e.Name, &e.Brand, &e.Model, &e.SerialNumber, &e.InstalledAt, &e.CreatedAt, &e.UpdatedAt)
	},
	values: func(e *domain.Equipment) map[string]any {
		return map[string]any{
			"id":            e.ID,
			"owner_id":      e.OwnerID,
			"client_id":     e.ClientID,
			"name":          e.Name,
			"brand":         e.Brand,
			"model":         e.Model,
			"serial_number": e.SerialNumber,
			"installed_at":  e.InstalledAt,
		}
	},
	orderBy: "name ASC, id ASC",
}

var workOrdersTable = table[domain.WorkOrder]{
	name: "work_orders",
	columns: []string{
		"id", "owner_id", "client_id", "equipment_id", "title", "description", "status", "scheduled_at", "completed_at", "created_at", "updated_at",
	},
	patchable: columnSet("client_id", "equipment_id", "title", "description", "status"),
	scan: func(row pgx.Row, w *domain.WorkOrder) error {
		var status string
		if err := row.Scan(&w.ID, &w.OwnerID, &w.ClientID, &w.EquipmentID, &w.Title, &w.Description, &status, &w.ScheduledAt, &w.CompletedAt, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return err
		}
		w.Status = domain.WorkOrderStatus(status)
		return nil
	},
	values: func(w *domain.WorkOrder) map[string]any {
		status := w.Status
		if status == "" {
			status = domain.WorkOrderPending
		}
		return map[string]any{
			"id":           w.ID,
			"owner_id":     w.OwnerID,
			"client_id":    w.ClientID,
			"equipment_id": w.EquipmentID,
			"title":        w.Title,
			"description":  w.Description,
			"status":       string(status),
			"scheduled_at": w.ScheduledAt,
			"completed_at": w.CompletedAt,
		}
	},
	orderBy:     "created_at DESC, id ASC",
	guardUpdate: guardWorkOrderStatus,
	guardErr:    domain.ErrTerminalWorkOrder,
}

// openWorkOrder matches rows that have not reached a terminal status.
var openWorkOrder = squirrel.NotEq{"status": []string{
	string(domain.WorkOrderCompleted),
	string(domain.WorkOrderCancelled),
}}

// guardWorkOrderStatus stamps completion and keeps status changes away from terminal rows.
func guardWorkOrderStatus(set map[string]any) squirrel.Sqlizer {
	status, ok := set["status"]
	if !ok {
		return nil
	}
	if status == string(domain.WorkOrderCompleted) {
		set["completed_at"] = squirrel.Expr("NOW()")
	}
	return openWorkOrder
}

var transactionsTable = table[domain.Transaction]{
	name: "transactions",
	columns: []string{
		"id", "owner_id", "kind", "amount_cents", "category", "description", "work_order_id", "occurred_at", "created_at", "updated_at",
	},
	patchable: columnSet("kind", "amount_cents", "category", "description", "work_order_id", "occurred_at"),
	scan: func(row pgx.Row, t *domain.Transaction) error {
		var kind string
		if err := row.Scan(&t.ID, &t.OwnerID, &kind, &t.AmountCents, &t.Category, &t.Description, &t.WorkOrderID, &t.OccurredAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		t.Kind = domain.TransactionKind(kind)
		return nil
	},
	values: func(t *domain.Transaction) map[string]any {
		var occurredAt any = t.OccurredAt
		if t.OccurredAt.IsZero() {
			occurredAt = squirrel.Expr("NOW()")
		}
		return map[string]any{
			"id":            t.ID,
			"owner_id":      t.OwnerID,
			"kind":          string(t.Kind),
			"amount_cents":  t.AmountCents,
			"category":      t.Category,
			"description":   t.Description,
			"work_order_id": t.WorkOrderID,
			"occurred_at":   occurredAt,
		}
	},
	orderBy: "occurred_at DESC, id ASC",
}

var quotesTable = table[domain.Quote]{
	name: "quotes",
	columns: []string{
		"id", "owner_id", "client_id", "title", "total_cents", "status", "valid_until", "created_at", "updated_at",
	},
	patchable: columnSet("client_id", "title", "total_cents", "status", "valid_until"),
	scan: func(row pgx.Row, q *domain.Quote) error {
		var status string
		if err := row.Scan(&q.ID, &q.OwnerID, &q.ClientID, &q.Title, &q.TotalCents, &status, &q.ValidUntil, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return err
		}
		q.Status = domain.QuoteStatus(status)
		return nil
	},
	values: func(q *domain.Quote) map[string]any {
		status := q.Status
		if status == "" {
			status = domain.QuoteDraft
		}
		return map[string]any{
			"id":          q.ID,
			"owner_id":    q.OwnerID,
			"client_id":   q.ClientID,
			"title":       q.Title,
			"total_cents": q.TotalCents,
			"status":      string(status),
			"valid_until": q.ValidUntil,
		}
	},
	orderBy: "created_at DESC, id ASC",
}

// NewClientRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewClientRepository(exec pgExecutor) *ClientRepository {
	return newResourceRepository(exec, clientsTable)
}

// NewEquipmentRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewEquipmentRepository(exec pgExecutor) *EquipmentRepository {
	return newResourceRepository(exec, equipmentTable)
}

// NewTransactionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTransactionRepository(exec pgExecutor) *TransactionRepository {
	return newResourceRepository(exec, transactionsTable)
}

// NewQuoteRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewQuoteRepository(exec pgExecutor) *QuoteRepository {
	return newResourceRepository(exec, quotesTable)
}
