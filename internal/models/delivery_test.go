package models

import "testing"

func TestDeliveryStatusTransitions(t *testing.T) {
	for _, tc := range []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryStatusDelivered, DeliveryStatusRead, true},
		{DeliveryStatusDelivered, DeliveryStatusReplied, true},
		{DeliveryStatusRead, DeliveryStatusReplied, true},
		// forward-only: no regressions
		{DeliveryStatusRead, DeliveryStatusDelivered, false},
		{DeliveryStatusReplied, DeliveryStatusRead, false},
		{DeliveryStatusReplied, DeliveryStatusDelivered, false},
		// no self-transitions
		{DeliveryStatusDelivered, DeliveryStatusDelivered, false},
		{DeliveryStatusReplied, DeliveryStatusReplied, false},
	} {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDeliveryStatusValid(t *testing.T) {
	for _, s := range []DeliveryStatus{DeliveryStatusDelivered, DeliveryStatusRead, DeliveryStatusReplied} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if DeliveryStatus("pending").Valid() {
		t.Error("unknown status should not be valid")
	}
}
