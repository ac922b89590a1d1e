package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Clients      *ClientRepository
	Equipment    *EquipmentRepository
	WorkOrders   *WorkOrderRepository
	Transactions *TransactionRepository
	Quotes       *QuoteRepository
	Audit        *AuditRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Clients:      NewClientRepository(exec),
		Equipment:    NewEquipmentRepository(exec),
		WorkOrders:   NewWorkOrderRepository(exec),
		Transactions: NewTransactionRepository(exec),
		Quotes:       NewQuoteRepository(exec),
		Audit:        NewAuditRepository(exec),
	}
}
