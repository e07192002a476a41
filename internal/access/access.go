// Package access implements the permission service the pipeline grants
// through. Grants are additive and idempotent; location-scoped grants
// require prior registration by an administrator.
package access

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

type permSet map[strata.Permission]bool

// Controller is an in-memory strata.AccessController. Safe for concurrent
// use.
type Controller struct {
	mu        sync.RWMutex
	admins    map[strata.Principal]bool
	grants    map[strata.Principal]map[strata.ResourceRef]permSet
	locations map[strata.ResourceRef]strata.Principal
	log       zerolog.Logger
}

// New creates a Controller. admins are the principals allowed to register
// data locations.
func New(log zerolog.Logger, admins ...strata.Principal) *Controller {
	c := &Controller{
		admins:    make(map[strata.Principal]bool, len(admins)),
		grants:    make(map[strata.Principal]map[strata.ResourceRef]permSet),
		locations: make(map[strata.ResourceRef]strata.Principal),
		log:       log,
	}
	for _, a := range admins {
		c.admins[a] = true
	}
	return c
}

// Grant adds perms for principal on resource. Re-granting is a no-op and
// existing permissions on other resources are untouched.
func (c *Controller) Grant(_ context.Context, principal strata.Principal, resource strata.ResourceRef, perms ...strata.Permission) error {
	if principal == "" || resource == "" {
		return fmt.Errorf("access: principal and resource are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byResource := c.grants[principal]
	if byResource == nil {
		byResource = make(map[strata.ResourceRef]permSet)
		c.grants[principal] = byResource
	}
	set := byResource[resource]
	if set == nil {
		set = make(permSet)
		byResource[resource] = set
	}

	var added []string
	for _, p := range perms {
		if !set[p] {
			set[p] = true
			added = append(added, string(p))
		}
	}
	if len(added) > 0 {
		c.log.Info().
			Str("principal", string(principal)).
			Str("resource", string(resource)).
			Strs("permissions", added).
			Msg("grant applied")
	}
	return nil
}

// RegisterDataLocation declares resource a governed data source. Only an
// administrator may register; registration is idempotent.
func (c *Controller) RegisterDataLocation(_ context.Context, admin strata.Principal, resource strata.ResourceRef) (strata.LocationHandle, error) {
	if resource == "" {
		return strata.LocationHandle{}, fmt.Errorf("access: resource is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.admins[admin] {
		return strata.LocationHandle{}, fmt.Errorf("%w: %s cannot register data locations", strata.ErrPermissionDenied, admin)
	}
	if _, ok := c.locations[resource]; !ok {
		c.locations[resource] = admin
		c.log.Info().
			Str("resource", string(resource)).
			Str("admin", string(admin)).
			Msg("data location registered")
	}
	return strata.LocationHandle{Resource: resource, RegisteredBy: c.locations[resource]}, nil
}

// GrantDataLocation grants location access against a registered location.
func (c *Controller) GrantDataLocation(ctx context.Context, principal strata.Principal, loc strata.LocationHandle) error {
	c.mu.RLock()
	_, registered := c.locations[loc.Resource]
	c.mu.RUnlock()
	if !registered {
		return fmt.Errorf("%w: %s", strata.ErrLocationNotRegistered, loc.Resource)
	}
	return c.Grant(ctx, principal, loc.Resource, strata.PermDataLocation)
}

// Enumerate returns every grant held by principal, sorted by resource.
func (c *Controller) Enumerate(_ context.Context, principal strata.Principal) ([]strata.Grant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byResource := c.grants[principal]
	out := make([]strata.Grant, 0, len(byResource))
	for resource, set := range byResource {
		perms := make([]strata.Permission, 0, len(set))
		for p := range set {
			perms = append(perms, p)
		}
		sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
		out = append(out, strata.Grant{Principal: principal, Resource: resource, Permissions: perms})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out, nil
}

// Allowed reports whether principal holds perm on resource. Used by the
// query surface to enforce describe permissions.
func (c *Controller) Allowed(principal strata.Principal, resource strata.ResourceRef, perm strata.Permission) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grants[principal][resource][perm]
}
