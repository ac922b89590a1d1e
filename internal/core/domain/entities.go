package domain

import (
	"fmt"
	"time"
)

// Client is a customer of the maintenance business.
type Client struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Document  *string   `json:"document,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) ResourceType() ResourceType { return ResourceClient }
func (c *Client) ResourceID() string { return c.ID }
func (c *Client) OwnerOf() string { return c.OwnerID }
func (c *Client) AssignOwner(ownerID string) { c.OwnerID = ownerID }
func (c *Client) AssignID(id string) { c.ID = id }

// Equipment is a serviced asset installed at a client.
type Equipment struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	ClientID     string     `json:"client_id"`
	Name         string     `json:"name"`
	Brand        *string    `json:"brand,omitempty"`
	Model        *string    `json:"model,omitempty"`
	SerialNumber *string    `json:"serial_number,omitempty"`
	InstalledAt  *time.Time `json:"installed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (e *Equipment) ResourceType() ResourceType { return ResourceEquipment }
func (e *Equipment) ResourceID() string { return e.ID }
func (e *Equipment) OwnerOf() string { return e.OwnerID }
func (e *Equipment) AssignOwner(ownerID string) { e.OwnerID = ownerID }
func (e *Equipment) AssignID(id string) { e.ID = id }

// WorkOrderStatus enumerates the lifecycle of a work order.
type WorkOrderStatus string

const (
	WorkOrderPending    WorkOrderStatus = "pending"
	WorkOrderApproved   WorkOrderStatus = "approved"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s WorkOrderStatus) Terminal() bool {
	return s == WorkOrderCompleted || s == WorkOrderCancelled
}

// WorkOrder is a unit of maintenance work, optionally scheduled.
type WorkOrder struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	ClientID    string          `json:"client_id"`
	EquipmentID *string         `json:"equipment_id,omitempty"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Status      WorkOrderStatus `json:"status"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (w *WorkOrder) ResourceType() ResourceType { return ResourceWorkOrder }
func (w *WorkOrder) ResourceID() string { return w.ID }
func (w *WorkOrder) OwnerOf() string { return w.OwnerID }
func (w *WorkOrder) AssignOwner(ownerID string) { w.OwnerID = ownerID }
func (w *WorkOrder) AssignID(id string) { w.ID = id }

// workOrderTransitions lists the statuses a generic update may move a work order to. Approval
// only happens through scheduling and nothing leaves a terminal status.
var workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	WorkOrderPending:    {WorkOrderInProgress, WorkOrderCancelled},
	WorkOrderApproved:   {WorkOrderInProgress, WorkOrderCancelled},
	WorkOrderInProgress: {WorkOrderCompleted, WorkOrderCancelled},
}

// ResetForCreate discards lifecycle state supplied by the caller: new work orders start pending
// and unscheduled.
func (w *WorkOrder) ResetForCreate() {
	w.Status = WorkOrderPending
	w.ScheduledAt = nil
	w.CompletedAt = nil
}

// ReviewPatch validates patch against the current state of w. Schedule and completion dates are
// never patchable; status moves must follow workOrderTransitions.
func (w *WorkOrder) ReviewPatch(patch Patch) (Patch, error) {
	out := make(Patch, len(patch))
	for key, value := range patch {
		switch key {
		case "scheduled_at", "completed_at":
			return nil, fmt.Errorf("%w: %s cannot be patched", ErrInvalidPatch, key)
		case "status":
			next, err := parseWorkOrderStatus(value)
			if err != nil {
				return nil, err
			}
			if next == w.Status {
				continue
			}
			if w.Status.Terminal() {
				return nil, fmt.Errorf("work order %s is %s: %w", w.ID, w.Status, ErrTerminalWorkOrder)
			}
			if !w.Status.canMoveTo(next) {
				return nil, fmt.Errorf("%w: status cannot move from %s to %s", ErrInvalidPatch, w.Status, next)
			}
			out[key] = string(next)
		default:
			out[key] = value
		}
	}
	return out, nil
}

func (s WorkOrderStatus) canMoveTo(next WorkOrderStatus) bool {
	for _, allowed := range workOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func parseWorkOrderStatus(value any) (WorkOrderStatus, error) {
	var status WorkOrderStatus
	switch v := value.(type) {
	case string:
		status = WorkOrderStatus(v)
	case WorkOrderStatus:
		status = v
	default:
		return "", fmt.Errorf("%w: status must be a string", ErrInvalidPatch)
	}

	switch status {
	case WorkOrderPending, WorkOrderApproved, WorkOrderInProgress, WorkOrderCompleted, WorkOrderCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, status)
}

// TransactionKind separates income from expenses.
type TransactionKind string

const (
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

// Transaction is a financial entry. Amounts are stored in cents.
type Transaction struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Kind        TransactionKind `json:"kind"`
	AmountCents int64           `json:"amount_cents"`
	Category    *string         `json:"category,omitempty"`
	Description *string         `json:"description,omitempty"`
	WorkOrderID *string         `json:"work_order_id,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (t *Transaction) ResourceType() ResourceType { return ResourceTransaction }
func (t *Transaction) ResourceID() string { return t.ID }
func (t *Transaction) OwnerOf() string { return t.OwnerID }
func (t *Transaction) AssignOwner(ownerID string) { t.OwnerID = ownerID }
func (t *Transaction) AssignID(id string) { t.ID = id }

// QuoteStatus enumerates the lifecycle of a quote.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteApproved QuoteStatus = "approved"
	QuoteRejected QuoteStatus = "rejected"
)

// Quote is a priced proposal sent to a client.
type Quote struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"owner_id"`
	ClientID   string      `json:"client_id"`
	Title      string      `json:"title"`
	TotalCents int64       `json:"total_cents"`
	Status     QuoteStatus `json:"status"`
	ValidUntil *time.Time  `json:"valid_until,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (q *Quote) ResourceType() ResourceType { return ResourceQuote }
func (q *Quote) ResourceID() string { return q.ID }
func (q *Quote) OwnerOf() string { return q.OwnerID }
func (q *Quote) AssignOwner(ownerID string) { q.OwnerID = ownerID }
func (q *Quote) AssignID(id string) { q.ID = id }

var (
	_ Lifecycle = (*WorkOrder)(nil)

	_ Owned = (*Client)(nil)
	_ Owned = (*Equipment)(nil)
	_ Owned = (*WorkOrder)(nil)
	_ Owned = (*Transaction)(nil)
	_ Owned = (*Quote)(nil)
)
