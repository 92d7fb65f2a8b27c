package enums

import "testing"

func TestParseProductType(t *testing.T) {
	got, err := ParseProductType("electronic_services")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ProductTypeElectronicServices {
		t.Fatalf("expected electronic services, got %s", got)
	}
	if _, err := ParseProductType("digital"); err == nil {
		t.Fatal("expected unknown product type to fail")
	}
}

func TestVatNumberStatusAuthority(t *testing.T) {
	cases := []struct {
		status        VatNumberStatus
		authoritative bool
		verified      bool
	}{
		{VatNumberStatusNone, false, false},
		{VatNumberStatusValid, true, true},
		{VatNumberStatusInvalid, false, false},
		{VatNumberStatusUncheckedDueToOutage, true, false},
	}
	for _, tc := range cases {
		if got := tc.status.IsAuthoritative(); got != tc.authoritative {
			t.Fatalf("%s: expected authoritative=%v, got %v", tc.status, tc.authoritative, got)
		}
		if got := tc.status.IsVerified(); got != tc.verified {
			t.Fatalf("%s: expected verified=%v, got %v", tc.status, tc.verified, got)
		}
	}
}

func TestBasketStateIsValid(t *testing.T) {
	for _, s := range []BasketState{BasketStateDraft, BasketStateEvidenceConfirmed, BasketStateComplete} {
		if !s.IsValid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if BasketState("paid").IsValid() {
		t.Fatal("expected unknown state to be invalid")
	}
}

func TestOutboxEnums(t *testing.T) {
	if got, err := ParseOutboxEventType("transaction_recorded"); err != nil || got != EventTransactionRecorded {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if !AggregateTransaction.IsValid() {
		t.Fatal("expected transaction aggregate to be valid")
	}
	if OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("expected unknown dlq reason to be invalid")
	}
}

func TestAdminRoles(t *testing.T) {
	if got, err := ParseAdminRole("reviewer"); err != nil || got != AdminRoleReviewer {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
	if _, err := ParseAdminRole("owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
	if AdminRole("").IsValid() {
		t.Fatal("empty role should be invalid")
	}
}
