package audithook

// Action constants for audit events.
const (
	// Catalog actions
	ActionCatalogSeeded = "catalog.seeded"

	// Balance actions
	ActionBalanceDebited      = "balance.debited"
	ActionBalanceInsufficient = "balance.insufficient"
	ActionBalanceRefunded     = "balance.refunded"

	// Transaction actions
	ActionTransactionCompleted = "transaction.completed"
	ActionTransactionFailed    = "transaction.failed"
)

// Resource constants for audit events.
const (
	ResourceOperation   = "operation"
	ResourceAccount     = "account"
	ResourceTransaction = "transaction"
)

// Category constants for audit events.
const (
	CategoryCatalog     = "catalog"
	CategoryBilling     = "billing"
	CategoryTransaction = "transaction"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
