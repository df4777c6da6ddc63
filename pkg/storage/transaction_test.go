package storage

import "testing"

func TestWriteTransactionLifecycle(t *testing.T) {
	tx := BeginWriteTransaction()
	if tx.Status() != TxActive {
		t.Fatalf("new transaction should be active, got %v", tx.Status())
	}

	if err := tx.Record(Operation{Type: OpCreateNode, NodeID: 1, Label: "Person"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tx.Record(Operation{Type: OpCreateEdge, NodeID: 1, EdgeID: 2, Label: "KNOWS"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ops := tx.Operations()
	if len(ops) != 2 {
		t.Fatalf("expected 2 recorded operations, got %d", len(ops))
	}
	if ops[0].Type != OpCreateNode || ops[1].Type != OpCreateEdge {
		t.Fatalf("operations out of issue order: %+v", ops)
	}
	for _, op := range ops {
		if op.Timestamp.IsZero() {
			t.Fatal("Record should stamp a timestamp when none given")
		}
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tx.Status() != TxCommitted {
		t.Fatalf("expected committed, got %v", tx.Status())
	}
}

func TestWriteTransactionRecordAfterCommitFails(t *testing.T) {
	tx := BeginWriteTransaction()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Record(Operation{Type: OpCreateNode}); err == nil {
		t.Fatal("expected error recording into a committed transaction")
	}
	if err := tx.Commit(); err == nil {
		t.Fatal("expected error double-committing")
	}
}

func TestWriteTransactionRollback(t *testing.T) {
	tx := BeginWriteTransaction()
	if err := tx.Record(Operation{Type: OpDeleteNode, NodeID: 5}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if tx.Status() != TxRolledBack {
		t.Fatalf("expected rolled_back, got %v", tx.Status())
	}
	if err := tx.Commit(); err == nil {
		t.Fatal("expected error committing a rolled-back transaction")
	}
}

func TestWriteTransactionOperationsSnapshotIsCopy(t *testing.T) {
	tx := BeginWriteTransaction()
	_ = tx.Record(Operation{Type: OpCreateNode, NodeID: 1})

	snap := tx.Operations()
	snap[0].NodeID = 999

	again := tx.Operations()
	if again[0].NodeID == 999 {
		t.Fatal("Operations() should return a defensive copy")
	}
}
