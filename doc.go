// Package pumped provides a graph-based dependency injection and reactive
// execution framework for Go.
//
// # Overview
//
// Pumped organizes code around four core concepts:
//
//  1. Executors: units of computation with explicit dependencies
//  2. Scopes: lifecycle managers that resolve and cache executor values
//  3. Pods: short-lived child containers for per-request isolation
//  4. Flows: typed, schema-validated operations executed inside a pod
//
// # Basic Usage
//
// Create executors to define your application graph:
//
//	scope := pumped.NewScope()
//
//	config := pumped.Provide(func(ctx *pumped.ResolveCtx) (*Config, error) {
//	    return &Config{Port: 8080}, nil
//	})
//
//	server := pumped.Derive1(
//	    config,
//	    func(ctx *pumped.ResolveCtx, cfg *pumped.Controller[*Config]) (*Server, error) {
//	        c, _ := cfg.Get()
//	        return NewServer(c.Port), nil
//	    },
//	)
//
// Access values through controllers:
//
//	serverCtrl := pumped.Accessor(scope, server)
//	srv, err := serverCtrl.Get()
//
// # Dependency Modes
//
// A dependency reference controls how the engine delivers a value to the
// dependent's factory:
//
//	// Main (default): resolved eagerly, ahead of the dependent's factory
//	service := pumped.Derive1(config, func(ctx *pumped.ResolveCtx, cfg *pumped.Controller[*Config]) (*Service, error) {
//	    // cfg is already resolved when factory runs
//	})
//
//	// Reactive: resolved eagerly, and the dependent is invalidated and
//	// re-resolved whenever the dependency is updated
//	counter := pumped.Provide(func(ctx *pumped.ResolveCtx) (int, error) { return 0, nil })
//	doubled := pumped.Derive1(
//	    counter.Reactive(),
//	    func(ctx *pumped.ResolveCtx, c *pumped.Controller[int]) (int, error) {
//	        val, _ := c.Get()
//	        return val * 2, nil
//	    },
//	)
//	pumped.Accessor(scope, counter).Update(5) // triggers re-resolution of doubled
//
//	// Lazy: resolution deferred until the factory calls Get on the Controller
//	logger := pumped.Derive1(config.Lazy(), func(ctx *pumped.ResolveCtx, cfg *pumped.Controller[*Config]) (*Logger, error) {
//	    // only resolved if this factory actually calls cfg.Get()
//	})
//
//	// Static: like Lazy for delivery, but signals intent to read/update/
//	// subscribe to the dependency itself rather than its value
//
// # Controllers
//
//	ctrl := pumped.Accessor(scope, executor)
//	val, err := ctrl.Get()      // resolves and caches
//	val, ok := ctrl.Peek()      // cached value without resolving
//	ctrl.Update(newVal)         // sets value, propagates to reactive dependents
//	ctrl.Release()              // invalidates the cached value
//	val, err = ctrl.Reload()    // release + re-resolve
//	ctrl.IsCached()
//
// # Pods
//
// A Pod is a child container created from a Scope, used to isolate a single
// request or flow execution. It delegates to the parent scope's cache when
// nothing local overrides it, and never installs reactive edges of its own:
//
//	pod := scope.CreatePod(pumped.WithPodPreset(config, testConfig))
//	defer pod.Dispose()
//	val, err := pumped.ResolveInPod(pod, server)
//
// # Flows
//
// Flows are typed, schema-validated operations executed inside a pod:
//
//	fetchUser := pumped.Define(
//	    func(execCtx *pumped.ExecutionCtx, rc *pumped.ResolveCtx, id int) (*User, error) {
//	        db, err := pumped.ResolveInFlow(execCtx, dbExecutor)
//	        if err != nil {
//	            return pumped.Ko[*User](err)
//	        }
//	        return db.FindUser(id)
//	    },
//	    pumped.WithFlowDeps(dbExecutor),
//	)
//
//	user, err := pumped.ExecuteOnScope(scope, fetchUser, 123).Await()
//
// Sub-flows compose under the same pod and are recorded in the parent's
// journal:
//
//	orders, err := pumped.ExecSub(execCtx, fetchOrdersFlow, user.ID)
//
// Parallel execution fans out over goroutines, either fail-fast or
// collecting every outcome:
//
//	results, err := pumped.Parallel(execCtx, thunks)
//	settled := pumped.ParallelSettled(execCtx, thunks)
//
// # Execution Context
//
//	execCtx.Set(someTag, "value")     // set on this execution only
//	val, ok := execCtx.Get(someTag)   // own store, incl. tags copied from the parent
//	val, ok := execCtx.Find(someTag)  // self, then parents, then pod
//
// ctx.Run journals a sub-computation's outcome by key; a second call with
// the same key in the same execution raises an error instead of replaying:
//
//	val, err := pumped.Run(execCtx, "charge-card", func() (Receipt, error) {
//	    return gateway.Charge(amount)
//	})
//
// # Tags
//
//	versionTag := pumped.NewTag[string]("version")
//	exec := pumped.Provide(factory, versionTag.With("1.0.0"))
//	scope := pumped.NewScope(pumped.WithScopeTag(versionTag, "1.0.0"))
//	version, err := versionTag.Get(exec)
//
// # Extensions
//
//	type LoggingExtension struct {
//	    pumped.BaseExtension
//	}
//
//	func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
//	    result, err := next()
//	    return result, err
//	}
//
//	scope := pumped.NewScope(pumped.WithExtension(&LoggingExtension{
//	    BaseExtension: pumped.NewBaseExtension("logging"),
//	}))
//
// See the extensions package for slog, zap, and dependency-graph debug
// extensions.
//
// # Resource Cleanup
//
//	db := pumped.Provide(func(ctx *pumped.ResolveCtx) (*DB, error) {
//	    database := OpenDB()
//	    ctx.OnCleanup(func() error { return database.Close() })
//	    return database, nil
//	})
//
// Cleanup runs when a reactive dependent is invalidated, an executor is
// released, or the owning scope/pod is disposed.
//
// # Testing with Presets
//
//	testScope := pumped.NewScope(pumped.WithPreset(realDB, mockDB))
//	testPod := scope.CreatePod(pumped.WithPodPreset(realDB, mockDB))
//
// # Execution Tree
//
//	tree := scope.GetExecutionTree()
//	for _, root := range tree.GetRoots() {
//	    tree.Walk(root.ID, func(node *pumped.ExecutionNode) bool {
//	        status, _ := node.GetTag(pumped.Status())
//	        return true
//	    })
//	}
//
// # Thread Safety
//
// Scopes, pods, and controllers are safe for concurrent use. Flows may
// execute in parallel via Parallel/ParallelSettled.
package pumped
