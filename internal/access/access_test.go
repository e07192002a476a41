package access

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

const (
	admin   = strata.Principal("strata-admin")
	crawler = strata.Principal("strata-scanner")
)

const usersPattern = strata.ResourceRef("s3://data-bucket/raw/jsonplaceholder/users/*")

func newController() *Controller {
	return New(zerolog.Nop(), admin)
}

func TestController_GrantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newController()

	for i := 0; i < 3; i++ {
		if err := c.Grant(ctx, crawler, usersPattern, strata.PermStorageRead, strata.PermStorageList); err != nil {
			t.Fatal(err)
		}
	}

	grants, err := c.Enumerate(ctx, crawler)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected 1 grant, got %v", grants)
	}
	if len(grants[0].Permissions) != 2 {
		t.Errorf("expected 2 permissions, got %v", grants[0].Permissions)
	}
}

func TestController_GrantIsAdditive(t *testing.T) {
	ctx := context.Background()
	c := newController()

	if err := c.Grant(ctx, crawler, usersPattern, strata.PermStorageRead); err != nil {
		t.Fatal(err)
	}
	if err := c.Grant(ctx, crawler, "catalog://users_db", strata.PermCreateTable); err != nil {
		t.Fatal(err)
	}

	grants, err := c.Enumerate(ctx, crawler)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected grants on 2 resources, got %v", grants)
	}
	if !c.Allowed(crawler, usersPattern, strata.PermStorageRead) {
		t.Error("expected earlier grant to survive later ones")
	}
}

func TestController_GrantScopedToPrefix(t *testing.T) {
	ctx := context.Background()
	c := newController()

	if err := c.Grant(ctx, crawler, usersPattern, strata.PermStorageRead); err != nil {
		t.Fatal(err)
	}

	if c.Allowed(crawler, "s3://data-bucket/*", strata.PermStorageRead) {
		t.Error("expected no bucket-wide permission from a prefix grant")
	}
	if c.Allowed(crawler, usersPattern, strata.PermCreateTable) {
		t.Error("expected no permissions beyond the granted set")
	}
}

func TestController_RegisterRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	c := newController()

	_, err := c.RegisterDataLocation(ctx, crawler, usersPattern)
	if !errors.Is(err, strata.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got: %v", err)
	}

	handle, err := c.RegisterDataLocation(ctx, admin, usersPattern)
	if err != nil {
		t.Fatal(err)
	}
	if handle.Resource != usersPattern || handle.RegisteredBy != admin {
		t.Errorf("unexpected handle: %+v", handle)
	}
}

func TestController_RegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newController()

	first, err := c.RegisterDataLocation(ctx, admin, usersPattern)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.RegisterDataLocation(ctx, admin, usersPattern)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected identical handles, got %+v and %+v", first, second)
	}
}

func TestController_GrantDataLocationRequiresRegistration(t *testing.T) {
	ctx := context.Background()
	c := newController()

	unregistered := strata.LocationHandle{Resource: usersPattern}
	err := c.GrantDataLocation(ctx, crawler, unregistered)
	if !errors.Is(err, strata.ErrLocationNotRegistered) {
		t.Errorf("expected ErrLocationNotRegistered, got: %v", err)
	}

	handle, err := c.RegisterDataLocation(ctx, admin, usersPattern)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.GrantDataLocation(ctx, crawler, handle); err != nil {
		t.Fatal(err)
	}
	if !c.Allowed(crawler, usersPattern, strata.PermDataLocation) {
		t.Error("expected location access after registration and grant")
	}
}

func TestController_EnumerateUnknownPrincipal(t *testing.T) {
	c := newController()
	grants, err := c.Enumerate(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 0 {
		t.Errorf("expected no grants, got %v", grants)
	}
}
