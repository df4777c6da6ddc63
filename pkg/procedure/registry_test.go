package procedure

import (
	"context"
	"testing"

	"github.com/orneryd/deltagraph/pkg/graphstore"
	"github.com/orneryd/deltagraph/pkg/record"
)

func TestRegisterAndCall(t *testing.T) {
	r := New()
	called := false
	err := r.Register(&Procedure{
		Name:   "test.echo",
		Yields: []string{"value"},
		Call: func(ctx context.Context, store *graphstore.Store, args []record.Value) ([]*record.Record, error) {
			called = true
			rec := record.New(1)
			rec.SetScalar(0, args[0].Scalar)
			return []*record.Record{rec}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	out, err := r.Call(context.Background(), "test.echo", nil, []record.Value{{Kind: record.Scalar, Scalar: "hi"}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !called {
		t.Fatal("expected handler to run")
	}
	if len(out) != 1 || out[0].Get(0).Scalar != "hi" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestRegisterDuplicateNameRejected(t *testing.T) {
	r := New()
	p := &Procedure{Name: "dup", Call: func(ctx context.Context, store *graphstore.Store, args []record.Value) ([]*record.Record, error) {
		return nil, nil
	}}
	if err := r.Register(p); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(p); err == nil {
		t.Fatal("expected second Register of the same name to fail")
	}
}

func TestCallUnknownProcedure(t *testing.T) {
	r := New()
	if _, err := r.Call(context.Background(), "nope", nil, nil); err == nil {
		t.Fatal("expected error calling an unregistered procedure")
	}
}

func TestRegisterBuiltinsDbLabels(t *testing.T) {
	store := graphstore.New()
	if _, err := store.CreateNode("Person", nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if _, err := store.CreateNode("Company", nil); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	r := New()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	out, err := r.Call(context.Background(), "db.labels", store, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 labels, got %d: %+v", len(out), out)
	}
	got := map[string]bool{}
	for _, rec := range out {
		got[rec.Get(0).Scalar.(string)] = true
	}
	if !got["Person"] || !got["Company"] {
		t.Fatalf("expected {Person, Company}, got %v", got)
	}
}
