package elrpc

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryRegisterLookupDeregister(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", "(x)", "echoes its argument", func(ctx context.Context, args Value) (Value, error) {
		return args, nil
	})

	h, ok := r.Lookup("echo")
	if !ok {
		t.Fatal("Lookup(\"echo\") not found")
	}
	result, err := h(context.Background(), List(String("hi")))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.Equal(List(String("hi"))) {
		t.Fatalf("handler result = %v", result)
	}

	r.Deregister("echo")
	if _, ok := r.Lookup("echo"); ok {
		t.Fatal("Lookup(\"echo\") should fail after Deregister")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register("add", "(a b)", "adds two numbers", func(ctx context.Context, args Value) (Value, error) {
		return Nil(), nil
	})
	r.Register("sub", "(a b)", "subtracts two numbers", func(ctx context.Context, args Value) (Value, error) {
		return Nil(), nil
	})

	entries := r.List()
	if len(entries) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["add"] || !names["sub"] {
		t.Fatalf("List() = %v, missing expected names", entries)
	}
}

func TestRegisterFuncTypedAdd(t *testing.T) {
	r := NewRegistry()
	RegisterFunc(r, "add", "(a b)", "adds two integers", func(a, b int64) (int64, error) {
		return a + b, nil
	})

	h, ok := r.Lookup("add")
	if !ok {
		t.Fatal("Lookup(\"add\") not found")
	}
	result, err := h(context.Background(), List(Integer(2), Integer(3)))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	n, ok := result.IntegerValue()
	if !ok || n != 5 {
		t.Fatalf("result = %v, want 5", result)
	}
}

func TestRegisterFuncWithContext(t *testing.T) {
	r := NewRegistry()
	var sawCtx context.Context
	RegisterFunc(r, "withCtx", "(x)", "", func(ctx context.Context, x string) (string, error) {
		sawCtx = ctx
		return x + "!", nil
	})

	h, _ := r.Lookup("withCtx")
	ctx := context.WithValue(context.Background(), struct{}{}, "marker")
	result, err := h(ctx, List(String("hi")))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if sawCtx != ctx {
		t.Fatal("handler did not receive the context passed to it")
	}
	s, ok := result.StringValue()
	if !ok || s != "hi!" {
		t.Fatalf("result = %v, want \"hi!\"", result)
	}
}

func TestRegisterFuncCoercionFailure(t *testing.T) {
	r := NewRegistry()
	RegisterFunc(r, "add", "(a b)", "", func(a, b int64) (int64, error) {
		return a + b, nil
	})

	h, _ := r.Lookup("add")
	_, err := h(context.Background(), List(Integer(2), String("not a number")))
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected *SerializationError for wrong-typed argument, got %v", err)
	}
}

func TestRegisterFuncArityMismatch(t *testing.T) {
	r := NewRegistry()
	RegisterFunc(r, "add", "(a b)", "", func(a, b int64) (int64, error) {
		return a + b, nil
	})

	h, _ := r.Lookup("add")
	_, err := h(context.Background(), List(Integer(2)))
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected *SerializationError for arity mismatch, got %v", err)
	}
}

func TestRegisterFuncHandlerError(t *testing.T) {
	r := NewRegistry()
	RegisterFunc(r, "boom", "()", "", func() (string, error) {
		return "", &ApplicationError{Class: "custom-error", Message: "kaboom"}
	})

	h, _ := r.Lookup("boom")
	_, err := h(context.Background(), Nil())
	var appErr *ApplicationError
	if !errors.As(err, &appErr) || appErr.Class != "custom-error" {
		t.Fatalf("expected custom ApplicationError, got %v", err)
	}
}
