package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions audits only the given actions.
// If not called, all actions are audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions skips the given actions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool, len(allActions))
			for _, action := range allActions {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// WithFailuresOnly audits refused debits, refunds and failed transactions,
// and skips the per-execution success events.
func WithFailuresOnly() Option {
	return WithEnabledActions(
		ActionBalanceInsufficient,
		ActionBalanceRefunded,
		ActionTransactionFailed,
	)
}

// allActions lists every audit action.
var allActions = []string{
	ActionCatalogSeeded,
	ActionBalanceDebited,
	ActionBalanceInsufficient,
	ActionBalanceRefunded,
	ActionTransactionCompleted,
	ActionTransactionFailed,
}
