package services

import (
	"net/http"
	"testing"

	"github.com/huangang/meridian/internal/access"
	"github.com/huangang/meridian/internal/models"
)

func ownerCount(t *testing.T, f *fixture) int64 {
	t.Helper()
	var n int64
	f.db.Model(&models.MeridianMember{}).Where("meridian_id = ? AND role = ?", f.meridian.ID, "owner").Count(&n)
	return n
}

func TestMemberList_Ordering(t *testing.T) {
	f := newFixture(t)
	svc := NewMemberService(f.db)
	extra := createUser(t, f.db, "Aaron Another", "aaron@example.com")
	f.addMember(t, f.meridian.ID, extra.ID, "member")

	members, err := svc.List(f.meridian.ID, f.viewer.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"Olive Owner", "Aaron Another", "Max Member", "Vera Viewer"}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %d", len(want), len(members))
	}
	for i, name := range want {
		if members[i].DisplayName != name {
			t.Errorf("member %d = %q, want %q", i, members[i].DisplayName, name)
		}
	}
	if members[0].Role != "owner" || members[3].Role != "viewer" {
		t.Errorf("unexpected roles: %+v", members)
	}

	_, err = svc.List(f.meridian.ID, f.outsider.ID)
	expectForbidden(t, err)
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	svc := NewMemberService(f.db)

	_, err := svc.AddMember(f.meridian.ID, &AddMemberRequest{UserID: f.outsider.ID, Role: "member"}, f.member.ID)
	expectForbidden(t, err)

	_, err = svc.AddMember(f.meridian.ID, &AddMemberRequest{UserID: 9999, Role: "member"}, f.owner.ID)
	expectStatus(t, err, http.StatusNotFound)

	_, err = svc.AddMember(f.meridian.ID, &AddMemberRequest{UserID: f.outsider.ID, Role: "admin"}, f.owner.ID)
	expectStatus(t, err, http.StatusBadRequest)

	// Upsert overwrites an existing role.
	if _, err := svc.AddMember(f.meridian.ID, &AddMemberRequest{UserID: f.viewer.ID, Role: "member"}, f.owner.ID); err != nil {
		t.Fatalf("AddMember upsert: %v", err)
	}
	if role, _ := RoleOf(f.db, f.viewer.ID, f.meridian.ID); role != access.RoleMember {
		t.Errorf("role after upsert = %s, want member", role)
	}

	_, err = svc.AddMember(f.meridian.ID, &AddMemberRequest{UserID: f.owner.ID, Role: "viewer"}, f.owner.ID)
	expectStatus(t, err, http.StatusConflict)
	if ownerCount(t, f) != 1 {
		t.Error("owner count changed after a rejected upsert")
	}
}

func TestChangeRole_LastOwnerGuard(t *testing.T) {
	f := newFixture(t)
	svc := NewMemberService(f.db)

	_, err := svc.ChangeRole(f.meridian.ID, f.owner.ID, "member", f.owner.ID)
	expectStatus(t, err, http.StatusConflict)
	if role, _ := RoleOf(f.db, f.owner.ID, f.meridian.ID); role != access.RoleOwner {
		t.Fatalf("sole owner was demoted to %s", role)
	}

	if _, err := svc.ChangeRole(f.meridian.ID, f.member.ID, "owner", f.owner.ID); err != nil {
		t.Fatalf("promote member: %v", err)
	}
	if _, err := svc.ChangeRole(f.meridian.ID, f.owner.ID, "viewer", f.owner.ID); err != nil {
		t.Fatalf("demote with a second owner present: %v", err)
	}
	if ownerCount(t, f) != 1 {
		t.Errorf("expected exactly one owner, got %d", ownerCount(t, f))
	}

	// The former owner can no longer manage.
	_, err = svc.ChangeRole(f.meridian.ID, f.member.ID, "member", f.owner.ID)
	expectForbidden(t, err)
}

func TestChangeRole_Errors(t *testing.T) {
	f := newFixture(t)
	svc := NewMemberService(f.db)

	_, err := svc.ChangeRole(f.meridian.ID, f.outsider.ID, "member", f.owner.ID)
	expectStatus(t, err, http.StatusNotFound)

	_, err = svc.ChangeRole(f.meridian.ID, f.viewer.ID, "superuser", f.owner.ID)
	expectStatus(t, err, http.StatusBadRequest)

	_, err = svc.ChangeRole(f.meridian.ID, f.viewer.ID, "member", f.member.ID)
	expectForbidden(t, err)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	svc := NewMemberService(f.db)

	expectStatus(t, svc.RemoveMember(f.meridian.ID, f.owner.ID, f.owner.ID), http.StatusConflict)
	if ownerCount(t, f) != 1 {
		t.Fatal("the only owner must remain a member")
	}

	// Members cannot remove others but can leave.
	expectForbidden(t, svc.RemoveMember(f.meridian.ID, f.viewer.ID, f.member.ID))
	if err := svc.RemoveMember(f.meridian.ID, f.member.ID, f.member.ID); err != nil {
		t.Fatalf("self removal: %v", err)
	}
	if role, _ := RoleOf(f.db, f.member.ID, f.meridian.ID); role != access.RoleNone {
		t.Errorf("member still has role %s", role)
	}

	if err := svc.RemoveMember(f.meridian.ID, f.viewer.ID, f.owner.ID); err != nil {
		t.Fatalf("owner removes viewer: %v", err)
	}
	expectStatus(t, svc.RemoveMember(f.meridian.ID, f.viewer.ID, f.owner.ID), http.StatusNotFound)
	expectForbidden(t, svc.RemoveMember(f.meridian.ID, f.outsider.ID, f.outsider.ID))
}

func TestOwnerCountNeverReachesZero(t *testing.T) {
	f := newFixture(t)
	svc := NewMemberService(f.db)
	f.addMember(t, f.meridian.ID, f.member.ID, "owner")

	steps := []func() error{
		func() error { return svc.RemoveMember(f.meridian.ID, f.member.ID, f.owner.ID) },
		func() error { _, err := svc.ChangeRole(f.meridian.ID, f.owner.ID, "viewer", f.owner.ID); return err },
		func() error { return svc.RemoveMember(f.meridian.ID, f.owner.ID, f.owner.ID) },
	}
	for _, step := range steps {
		_ = step()
		if n := ownerCount(t, f); n < 1 {
			t.Fatalf("owner count dropped to %d", n)
		}
	}
}
