package services

import (
	"fmt"
	"testing"
	"time"

	"recessims/server/internal/models"
)

func TestNextNumberStartsAtOne(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSequenceService(db)

	year := time.Now().UTC().Year()
	got, err := svc.NextNumber(db, models.SequencePrefixOrder)
	if err != nil {
		t.Fatalf("NextNumber: %v", err)
	}
	want := fmt.Sprintf("PO-%d-0001", year)
	if got != want {
		t.Errorf("first number = %s, want %s", got, want)
	}
}

func TestNextNumberIncrements(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSequenceService(db)

	year := time.Now().UTC().Year()
	for i := 1; i <= 3; i++ {
		got, err := svc.NextNumber(db, models.SequencePrefixOrder)
		if err != nil {
			t.Fatalf("NextNumber #%d: %v", i, err)
		}
		want := fmt.Sprintf("PO-%d-%04d", year, i)
		if got != want {
			t.Errorf("number #%d = %s, want %s", i, got, want)
		}
	}
}

func TestNextNumberIndependentPrefixes(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSequenceService(db)

	if _, err := svc.NextNumber(db, models.SequencePrefixOrder); err != nil {
		t.Fatalf("NextNumber PO: %v", err)
	}
	if _, err := svc.NextNumber(db, models.SequencePrefixOrder); err != nil {
		t.Fatalf("NextNumber PO: %v", err)
	}

	year := time.Now().UTC().Year()
	got, err := svc.NextNumber(db, models.SequencePrefixSettlement)
	if err != nil {
		t.Fatalf("NextNumber ST: %v", err)
	}
	want := fmt.Sprintf("ST-%d-0001", year)
	if got != want {
		t.Errorf("ST counter = %s, want %s (счетчики префиксов независимы)", got, want)
	}
}

// Уникальность номеров под конкурентной нагрузкой обеспечивает атомарный
// upsert (INSERT ... ON CONFLICT ... SET last_number = last_number + 1)
// на стороне Postgres. Однописательный sqlite в тестах настоящей
// конкуренции не дает, поэтому здесь проверяется только выдача без
// повторов в пределах одного счетчика.
func TestNextNumberNoDuplicates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSequenceService(db)

	seen := make(map[string]bool)
	for i := 1; i <= 50; i++ {
		got, err := svc.NextNumber(db, models.SequencePrefixOrder)
		if err != nil {
			t.Fatalf("NextNumber #%d: %v", i, err)
		}
		if seen[got] {
			t.Fatalf("номер выдан дважды: %s", got)
		}
		seen[got] = true
	}
}
