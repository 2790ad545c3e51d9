package extensions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	pumped "github.com/pumped-run/pumped-go"
)

func TestGraphDebugExtension_OnError(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(io.MultiWriter(&buf, os.Stdout), slog.LevelError)

	scope := pumped.NewScope(pumped.WithExtension(NewGraphDebugExtension(handler)))
	defer scope.Dispose()

	storage := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "storage", nil },
		pumped.WithName("Storage"),
	)

	userService := pumped.Derive1(
		storage.Reactive(),
		func(ctx *pumped.ResolveCtx, s *pumped.Controller[string]) (string, error) {
			return "", fmt.Errorf("type assertion failed: expected *User, got *string")
		},
		pumped.WithName("UserService"),
	)

	_, err := pumped.Resolve(scope, userService)
	if err == nil {
		t.Fatal("expected error but got nil")
	}

	output := buf.String()
	for _, want := range []string{
		"[GraphDebug] Dependency Resolution Error",
		"Failed Executor: UserService",
		"Error: type assertion failed",
		"Operation: resolve",
		"Dependency Graph:",
		"Storage",
		"Error Details:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestGraphDebugExtension_TracksResolvedExecutors(t *testing.T) {
	ext := NewGraphDebugExtension(NewSilentHandler())
	scope := pumped.NewScope(pumped.WithExtension(ext))
	defer scope.Dispose()

	storage := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "storage", nil },
		pumped.WithName("Storage"),
	)
	service := pumped.Derive1(
		storage.Reactive(),
		func(ctx *pumped.ResolveCtx, s *pumped.Controller[string]) (string, error) {
			val, _ := s.Get()
			return "service-" + val, nil
		},
		pumped.WithName("Service"),
	)

	if _, err := pumped.Resolve(scope, service); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ext.resolvedExecutors[storage] {
		t.Error("expected storage to be tracked as resolved")
	}
	if !ext.resolvedExecutors[service] {
		t.Error("expected service to be tracked as resolved")
	}
}

func TestGraphDebugExtension_ExportDependencyGraph(t *testing.T) {
	scope := pumped.NewScope()
	defer scope.Dispose()

	config := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "config", nil }, pumped.WithName("Config"))
	storage := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "storage", nil }, pumped.WithName("Storage"))

	service := pumped.Derive2(
		config.Reactive(),
		storage.Reactive(),
		func(ctx *pumped.ResolveCtx, c *pumped.Controller[string], s *pumped.Controller[string]) (string, error) {
			cfg, _ := c.Get()
			store, _ := s.Get()
			return cfg + "-" + store, nil
		},
		pumped.WithName("Service"),
	)

	if _, err := pumped.Resolve(scope, service); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	graph := scope.ExportDependencyGraph()
	if len(graph) == 0 {
		t.Fatal("expected non-empty dependency graph")
	}

	for _, base := range []pumped.AnyExecutor{config, storage} {
		deps, ok := graph[base]
		if !ok {
			t.Errorf("expected %v in dependency graph", base)
			continue
		}
		found := false
		for _, dep := range deps {
			if dep == service {
				found = true
			}
		}
		if !found {
			t.Errorf("expected service to be a dependent of %v", base)
		}
	}
}

func TestGraphDebugExtension_OnFlowPanic(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(io.MultiWriter(&buf, os.Stdout), slog.LevelError)

	scope := pumped.NewScope(pumped.WithExtension(NewGraphDebugExtension(handler)))
	defer scope.Dispose()

	dummy := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "dummy", nil })

	panicFlow := pumped.Define(
		func(execCtx *pumped.ExecutionCtx, rc *pumped.ResolveCtx, in string) (string, error) {
			panic("simulated panic")
		},
		pumped.WithFlowDeps(dummy),
		pumped.WithFlowTag(pumped.WithName("PanicFlow")),
	)

	_, err := pumped.ExecuteOnScope(scope, panicFlow, "x").Await()
	if err == nil {
		t.Error("expected panic error but got nil")
	}

	output := buf.String()
	for _, want := range []string{
		"[GraphDebug] Flow Panic",
		"Panic: simulated panic",
		"Flow: PanicFlow",
		"Stack Trace:",
		"goroutine",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
	if strings.Contains(output, "\\n") {
		t.Error("expected actual newlines, not escaped \\n characters")
	}
}

func TestGraphDebugExtension_GetExecutorName(t *testing.T) {
	namedExec := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "value", nil }, pumped.WithName("NamedExecutor"))
	if name := pumped.ExecutorName(namedExec); name != "NamedExecutor" {
		t.Errorf("expected 'NamedExecutor', got %q", name)
	}

	unnamedExec := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "value", nil })
	if name := pumped.ExecutorName(unnamedExec); !strings.Contains(name, "executor<") {
		t.Errorf("expected type-and-pointer fallback name, got %q", name)
	}
}

func TestSilentHandler(t *testing.T) {
	handler := NewSilentHandler()

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected SilentHandler to be disabled for Debug level")
	}
	if handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected SilentHandler to be disabled for Error level")
	}
	if err := handler.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("expected Handle to return nil, got %v", err)
	}
	if handler.WithAttrs(nil) != handler {
		t.Error("expected WithAttrs to return self")
	}
	if handler.WithGroup("test") != handler {
		t.Error("expected WithGroup to return self")
	}

	ext := NewGraphDebugExtension(handler)
	scope := pumped.NewScope(pumped.WithExtension(ext))
	defer scope.Dispose()

	failingExec := pumped.Provide(
		func(ctx *pumped.ResolveCtx) (string, error) { return "", fmt.Errorf("intentional error") },
		pumped.WithName("FailingExecutor"),
	)
	if _, err := pumped.Resolve(scope, failingExec); err == nil {
		t.Error("expected error from failing executor")
	}
}

func TestGraphDebugExtension_ComplexDependencyGraph(t *testing.T) {
	handler := NewHumanHandler(os.Stdout, slog.LevelError)
	scope := pumped.NewScope(pumped.WithExtension(NewGraphDebugExtension(handler)))
	defer scope.Dispose()

	dbConfig := pumped.Provide(func(ctx *pumped.ResolveCtx) (string, error) { return "db-config", nil }, pumped.WithName("DBConfig"))

	database := pumped.Derive1(
		dbConfig.Reactive(),
		func(ctx *pumped.ResolveCtx, cfg *pumped.Controller[string]) (string, error) {
			return "", fmt.Errorf("database connection timeout")
		},
		pumped.WithName("Database"),
	)

	userRepo := pumped.Derive1(
		database.Reactive(),
		func(ctx *pumped.ResolveCtx, db *pumped.Controller[string]) (string, error) {
			val, _ := db.Get()
			return "user-repo-" + val, nil
		},
		pumped.WithName("UserRepository"),
	)

	apiGateway := pumped.Derive1(
		userRepo.Reactive(),
		func(ctx *pumped.ResolveCtx, repo *pumped.Controller[string]) (string, error) {
			return "api-gateway", nil
		},
		pumped.WithName("APIGateway"),
	)

	_, err := pumped.Resolve(scope, apiGateway)
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	t.Logf("demonstrated a multi-layer dependency graph with a failure at Database")
}
