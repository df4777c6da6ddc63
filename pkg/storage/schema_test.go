package storage

import "testing"

func TestUniqueConstraintRejectsDuplicateValue(t *testing.T) {
	sm := NewSchemaManager()
	if err := sm.AddUniqueConstraint("person_email", "Person", "email"); err != nil {
		t.Fatalf("AddUniqueConstraint: %v", err)
	}

	if err := sm.CheckUniqueConstraint("Person", "email", "a@example.com", 0); err != nil {
		t.Fatalf("unexpected conflict on empty registry: %v", err)
	}
	sm.RegisterUniqueValue("Person", "email", "a@example.com", 1)

	if err := sm.CheckUniqueConstraint("Person", "email", "a@example.com", 2); err == nil {
		t.Fatal("expected conflict for duplicate value owned by a different node")
	}
	if err := sm.CheckUniqueConstraint("Person", "email", "a@example.com", 1); err != nil {
		t.Fatalf("value's own owner should not conflict: %v", err)
	}
}

func TestUnregisterUniqueValueFreesIt(t *testing.T) {
	sm := NewSchemaManager()
	if err := sm.AddUniqueConstraint("person_email", "Person", "email"); err != nil {
		t.Fatalf("AddUniqueConstraint: %v", err)
	}
	sm.RegisterUniqueValue("Person", "email", "a@example.com", 1)
	sm.UnregisterUniqueValue("Person", "email", "a@example.com")

	if err := sm.CheckUniqueConstraint("Person", "email", "a@example.com", 99); err != nil {
		t.Fatalf("value should be free after unregister: %v", err)
	}
}

func TestAddUniqueConstraintDuplicateName(t *testing.T) {
	sm := NewSchemaManager()
	if err := sm.AddUniqueConstraint("c1", "Person", "email"); err != nil {
		t.Fatalf("AddUniqueConstraint: %v", err)
	}
	if err := sm.AddUniqueConstraint("c1", "Person", "ssn"); err == nil {
		t.Fatal("expected error re-registering constraint name")
	}
}

func TestValidatePropertiesAcrossLabels(t *testing.T) {
	sm := NewSchemaManager()
	if err := sm.AddUniqueConstraint("person_email", "Person", "email"); err != nil {
		t.Fatalf("AddUniqueConstraint: %v", err)
	}
	sm.RegisterUniqueValue("Person", "email", "dup@example.com", 1)

	if err := sm.ValidateProperties("Person", Properties{"email": "dup@example.com"}, 2); err == nil {
		t.Fatal("expected constraint violation")
	}
	if err := sm.ValidateProperties("Company", Properties{"email": "dup@example.com"}, 2); err != nil {
		t.Fatalf("constraint scoped to Person should not apply to Company: %v", err)
	}
	if err := sm.ValidateProperties("Person", Properties{"name": "no constraint on this prop"}, 2); err != nil {
		t.Fatalf("unconstrained property should pass: %v", err)
	}
}
