// Package governance implements policy evaluation for clone operations.
//
// A policy pairs a kind from a closed enumeration with a strongly-typed
// definition holding the kind's parameters. Definitions are validated when a
// policy is authored, so by the time the evaluator runs, every definition it
// can decode is known to be well-formed.
//
// # Architecture
//
// The package consists of three main components:
//
//  1. Types - Policies, kinds, severities, evaluation contexts, verdicts
//  2. Definitions - One typed parameter variant per policy kind
//  3. Evaluator - Pure evaluation of a context against the active policies
//
// # Usage
//
// Evaluating an operation:
//
//	evaluator := governance.NewEvaluator(store, logger)
//	verdict, err := evaluator.Evaluate(ctx, governance.EvalContext{
//	    Operation:    governance.OpCreate,
//	    Scope:        "PROD",
//	    ResourceKind: "TABLE",
//	    ResourceName: "orders_clone",
//	    Actor:        "alice",
//	    Now:          time.Now().UTC(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if verdict.Block {
//	    for _, v := range verdict.Violations {
//	        fmt.Printf("policy %s: %s\n", v.PolicyName, v.Message)
//	    }
//	}
//
// # Determinism
//
// The evaluator is stateless. Everything it consults, including the clock,
// arrives through the EvalContext, and violations are ordered by descending
// severity and then policy name. Identical inputs always produce an
// identical verdict.
//
// # Poison-policy isolation
//
// A policy whose stored definition no longer decodes is skipped with a
// logged warning and counted in Verdict.SkippedPolicies; it never aborts
// the remaining policies.
//
// # Seed files
//
// The Loader reads policy declarations from YAML or JSON seed files and can
// watch them for changes:
//
//	loader := governance.NewLoader(logger)
//	policies, err := loader.LoadFromPaths(ctx, []string{"/etc/snowgov/policies"})
package governance
