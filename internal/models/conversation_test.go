package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanonicalPair(t *testing.T) {
	low := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	high := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	a, b := CanonicalPair(low, high)
	if a != low || b != high {
		t.Errorf("CanonicalPair(low, high) = (%s, %s)", a, b)
	}

	// Same pair regardless of initiation direction.
	a, b = CanonicalPair(high, low)
	if a != low || b != high {
		t.Errorf("CanonicalPair(high, low) = (%s, %s)", a, b)
	}
}

func TestConversationHiddenBy(t *testing.T) {
	userA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userB := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	other := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	conv := Conversation{UserAID: userA, UserBID: userB, HiddenByA: true}

	if !conv.HiddenBy(userA) {
		t.Error("userA side should be hidden")
	}
	if conv.HiddenBy(userB) {
		t.Error("userB side should not be hidden")
	}
	if conv.HiddenBy(other) {
		t.Error("non-participant should never be hidden")
	}
}
