package lifecycle

import "testing"

func kinds(acts []Action) []ActionKind {
	out := make([]ActionKind, 0, len(acts))
	for _, a := range acts {
		out = append(out, a.Kind)
	}
	return out
}

func TestTransitionTableExhaustive(t *testing.T) {
	want := map[Role]map[Status][]ActionKind{
		RoleVendor: {
			StatusPlaced:    {ActionAccept, ActionReject},
			StatusConfirmed: {ActionMarkPicked},
			StatusPicked:    {ActionMarkPacked},
		},
		RoleDeliveryPartner: {
			StatusOutForDelivery: {ActionDeliver, ActionMarkFailed, ActionRetryDelivery, ActionReturnToVendor},
		},
	}

	for _, role := range Roles {
		for _, status := range AllStatuses {
			got := kinds(Resolve(status, role))
			exp := want[role][status]
			if len(got) != len(exp) {
				t.Fatalf("%s@%s: got %v, want %v", role, status, got, exp)
			}
			for i := range exp {
				if got[i] != exp[i] {
					t.Fatalf("%s@%s: got %v, want %v", role, status, got, exp)
				}
			}
		}
	}
}

func TestResolve_BuyerNeverActs(t *testing.T) {
	for _, status := range AllStatuses {
		if acts := Resolve(status, RoleBuyer); len(acts) != 0 {
			t.Fatalf("buyer@%s got actions %v", status, kinds(acts))
		}
	}
}

func TestResolve_PackedVendorIsInformational(t *testing.T) {
	if acts := Resolve(StatusPacked, RoleVendor); len(acts) != 0 {
		t.Fatalf("vendor@packed should have no actions, got %v", kinds(acts))
	}
	if acts := Resolve(StatusOutForDelivery, RoleVendor); len(acts) != 0 {
		t.Fatalf("vendor@out_for_delivery should have no actions, got %v", kinds(acts))
	}
}

func TestResolve_GuardsAndTargets(t *testing.T) {
	rej, ok := Permits(StatusPlaced, RoleVendor, ActionReject)
	if !ok || !rej.RequiresConfirmation || rej.Target != StatusCancelled {
		t.Fatalf("reject action wrong: %+v", rej)
	}
	fail, ok := Permits(StatusOutForDelivery, RoleDeliveryPartner, ActionMarkFailed)
	if !ok || !fail.RequiresConfirmation {
		t.Fatalf("mark failed must require confirmation: %+v", fail)
	}
	del, ok := Permits(StatusOutForDelivery, RoleDeliveryPartner, ActionDeliver)
	if !ok || !del.RequiresOTP || del.Target != StatusDelivered {
		t.Fatalf("deliver action wrong: %+v", del)
	}
	if _, ok := Permits(StatusPacked, RoleDeliveryPartner, ActionDeliver); ok {
		t.Fatal("deliver must not be permitted before out_for_delivery")
	}
}

func TestResolve_ReturnsCopy(t *testing.T) {
	acts := Resolve(StatusPlaced, RoleVendor)
	acts[0].Label = "mutated"
	if Resolve(StatusPlaced, RoleVendor)[0].Label != "Accept" {
		t.Fatal("Resolve leaked the shared table")
	}
}

func TestRoleCanAndDispatch(t *testing.T) {
	if !RoleCan(RoleVendor, ActionMarkPacked) || RoleCan(RoleVendor, ActionDeliver) {
		t.Fatal("vendor capabilities wrong")
	}
	if RoleCan(RoleBuyer, ActionAccept) {
		t.Fatal("buyer cannot accept")
	}
	if !CanDispatch(StatusPacked, RoleDeliveryPartner) || CanDispatch(StatusPacked, RoleVendor) || CanDispatch(StatusPicked, RoleDeliveryPartner) {
		t.Fatal("dispatch rules wrong")
	}
	if tgt, ok := TargetOf(ActionDispatch); !ok || tgt != StatusOutForDelivery {
		t.Fatalf("dispatch target = %s", tgt)
	}
	if tgt, ok := TargetOf(ActionReturnToVendor); !ok || tgt != StatusReturned {
		t.Fatalf("return target = %s", tgt)
	}
}
