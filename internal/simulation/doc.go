// Package simulation provides a multi-configuration test harness for
// validating the properties of the refinement pipeline.
//
// The harness exercises the real engines, pipeline and SQLiteRunStore: no
// mocks. Scenarios are Go builders that construct an automaton and list the
// pipeline variants to run on it; every variant's result is read back from
// the store so assertions cover persistence as well as the computation.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestCacheTransparency(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:      "cache-transparency",
//	        Automaton: simulation.AutomatonDef{...}.Build(),
//	        Variants:  simulation.CacheVariants(2),
//	    })
//	    simulation.AssertAllAgree(t, result)
//	}
package simulation
