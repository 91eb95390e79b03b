package models

import (
	"testing"
	"time"
)

func TestDocumentStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to DocumentStatus }{
		{StatusDraft, StatusSubmitted},
		{StatusDraft, StatusCancelled},
		{StatusSubmitted, StatusInProgress},
		{StatusSubmitted, StatusValidated},
		{StatusInProgress, StatusValidated},
		{StatusValidated, StatusSigned},
		{StatusSigned, StatusActive},
		{StatusActive, StatusExpired},
		{StatusActive, StatusUsed},
		{StatusActive, StatusCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to DocumentStatus }{
		{StatusDraft, StatusSigned},
		{StatusSubmitted, StatusDraft},
		{StatusSigned, StatusInProgress},
		{StatusCancelled, StatusDraft},
		{StatusUsed, StatusActive},
		{StatusExpired, StatusActive},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []DocumentStatus{StatusExpired, StatusCancelled, StatusUsed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusActive.IsTerminal() {
		t.Error("ACTIVE is not terminal")
	}
	if DocumentStatus("ARCHIVED").Valid() {
		t.Error("unknown status reported as valid")
	}
}

func TestCurrentSignatoryFollowsOrder(t *testing.T) {
	now := time.Now()
	doc := &Document{
		Signatories: []Signatory{
			{UserID: "c", Order: 3, Status: SignatoryPending, CreatedAt: now},
			{UserID: "a", Order: 1, Status: SignatorySigned, CreatedAt: now},
			{UserID: "b", Order: 2, Status: SignatoryPending, CreatedAt: now},
		},
	}

	cur := doc.CurrentSignatory()
	if cur == nil || cur.UserID != "b" {
		t.Fatalf("expected signatory b, got %+v", cur)
	}
	if doc.AllSigned() {
		t.Error("AllSigned should be false")
	}
	if doc.Signatories[0].UserID != "a" {
		t.Error("signatories should be re-sorted by order")
	}
}

func TestSortSignatoriesTieBreaksOnCreation(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	list := []Signatory{
		{UserID: "late", Order: 1, CreatedAt: t0.Add(time.Minute)},
		{UserID: "early", Order: 1, CreatedAt: t0},
	}
	SortSignatories(list)
	if list[0].UserID != "early" {
		t.Errorf("expected earliest first, got %s", list[0].UserID)
	}
}

func TestDocumentTypeFieldsOrdering(t *testing.T) {
	dt := &DocumentType{
		FieldGroups: []FieldGroup{
			{Key: "second", Order: 2, Fields: []FieldDefinition{{Key: "z", Order: 1}}},
			{Key: "first", Order: 1, Fields: []FieldDefinition{{Key: "b", Order: 2}, {Key: "a", Order: 1}}},
		},
	}

	var keys []string
	for _, f := range dt.Fields() {
		keys = append(keys, f.Key)
	}
	want := []string{"a", "b", "z"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}
