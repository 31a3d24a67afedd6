// Package abacus provides a pay-per-operation arithmetic engine for Go
// applications.
//
// Abacus is designed as a library, not a service. Import it directly and put
// whatever transport you like in front of it. It provides:
//
//   - Bearer token identity resolution (HMAC-verified or gateway-trusted)
//   - A priced catalog of six operations seeded from configuration
//   - Exact decimal arithmetic with a 15-digit square root
//   - Atomic conditional debits that never drive a balance negative
//   - An append-only record of every successful execution
//   - Plugin hooks for audit trails and Prometheus metrics
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/abacus"
//	    "github.com/xraph/abacus/store/postgres"
//	)
//
//	s := postgres.New(db)
//
//	e := abacus.New(s,
//	    abacus.WithVerifier(identity.NewHMACVerifier(secret)),
//	    abacus.WithGenerator(randomOrg),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	rec, err := e.ExecuteStrings(ctx, token, "addition", "5", "5")
//	if err != nil {
//	    http.Error(w, err.Error(), abacus.StatusCode(err))
//	    return
//	}
//	fmt.Println(rec.Result, rec.BalanceAfter) // 10 90
//
// # Execution
//
// Execute walks a fixed sequence of steps: resolve the identity, load the
// account, resolve the operation, validate the operands, debit the cost,
// compute the result and append the record. A failure at any step is
// returned as a *StepError; use FailedStep to read the step and errors.Is
// against the package sentinels to read the cause.
//
// Nothing is charged for a request that fails before the debit. Stores that
// implement store.Charger (postgres and sqlite) run the debit, the
// computation and the record append in one transaction, so a later failure
// rolls the debit back. On other stores a failed computation or append is
// followed by a credit of the cost unless WithRefundOnFailure(false) is set.
//
// # Results
//
// Results are decimal strings using a comma as the decimal separator:
//
//	10.5 + 20.3  => "30,8"
//	1 / 3        => "0,333333333333333"
//	sqrt(4)      => "2"
//
// # TypeID
//
// Operations and records use TypeID identifiers:
//
//	op_01h2xcejqtf2nbrexx3vqjhp41   // Operation ID
//	rec_01h455vb4pex5vsknk084sn02q  // Record ID
//
// Accounts are keyed by the subject UUID of the caller's token.
package abacus
