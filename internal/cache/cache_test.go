package cache

import (
	"testing"
	"time"
)

func TestPermissionSet(t *testing.T) {
	c := New(time.Minute)
	c.SetPermissions("u1", PermissionSet{Codes: map[string]struct{}{"documents.read": {}}})
	c.SetPermissions("u2", PermissionSet{All: true})
	c.Set("other", 1)

	set, ok := c.GetPermissions("u1")
	if !ok {
		t.Fatal("expected cached set for u1")
	}
	if !set.Has("documents.read") || set.Has("documents.sign") {
		t.Errorf("unexpected grants: %+v", set)
	}

	admin, _ := c.GetPermissions("u2")
	if !admin.Has("anything.at_all") {
		t.Error("All should grant every code")
	}

	c.InvalidateUser("u1")
	if _, ok := c.GetPermissions("u1"); ok {
		t.Error("u1 should be invalidated")
	}

	c.InvalidatePermissions()
	if _, ok := c.GetPermissions("u2"); ok {
		t.Error("u2 should be invalidated")
	}
	if _, ok := c.Get("other"); !ok {
		t.Error("unrelated keys must survive prefix invalidation")
	}
}
