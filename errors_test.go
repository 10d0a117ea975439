package elrpc

import "testing"

func TestAsApplicationErrorMethodNotFoundMessageIsBareName(t *testing.T) {
	appErr := asApplicationError(&MethodNotFoundError{Name: "frobnicate"})
	if appErr.Class != "no-such-method" {
		t.Fatalf("Class = %q, want %q", appErr.Class, "no-such-method")
	}
	if appErr.Message != "frobnicate" {
		t.Fatalf("Message = %q, want bare method name %q", appErr.Message, "frobnicate")
	}
}

func TestAsApplicationErrorPassesThroughExisting(t *testing.T) {
	original := &ApplicationError{Class: "custom", Message: "m"}
	if got := asApplicationError(original); got != original {
		t.Fatalf("asApplicationError should return the existing *ApplicationError unchanged, got %v", got)
	}
}

func TestAsApplicationErrorSerializationError(t *testing.T) {
	appErr := asApplicationError(&SerializationError{Reason: "bad type"})
	if appErr.Class != "wrong-type-argument" {
		t.Fatalf("Class = %q, want %q", appErr.Class, "wrong-type-argument")
	}
	if appErr.Message != "bad type" {
		t.Fatalf("Message = %q, want %q", appErr.Message, "bad type")
	}
}
