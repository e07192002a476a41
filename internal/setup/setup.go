// Package setup provisions the pipeline's governed resources in dependency
// order: the data location registration, the scanner's storage and catalog
// grants, and the query result root. Every step is idempotent, so Run can
// be re-applied on every deploy.
package setup

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

// Principals provisioned by setup.
const (
	PrincipalAdmin   strata.Principal = "strata-admin"
	PrincipalScanner strata.Principal = "strata-scanner"
	PrincipalQuery   strata.Principal = "strata-query"
)

// Setup wires grants and locations for one partition prefix and namespace.
type Setup struct {
	access     strata.AccessController
	location   strata.ResourceRef
	namespace  string
	resultRoot string
	log        zerolog.Logger
}

// New creates a Setup. location is the grant pattern covering the partition
// prefix, namespace the catalog namespace tables are published into.
func New(access strata.AccessController, location strata.ResourceRef, namespace, resultRoot string, log zerolog.Logger) *Setup {
	return &Setup{
		access:     access,
		location:   location,
		namespace:  namespace,
		resultRoot: resultRoot,
		log:        log,
	}
}

// Run applies all provisioning steps in order. Location registration comes
// first: the location grant in the final step requires the handle it
// returns.
func (s *Setup) Run(ctx context.Context) error {
	handle, err := s.access.RegisterDataLocation(ctx, PrincipalAdmin, s.location)
	if err != nil {
		return fmt.Errorf("setup: registering data location: %w", err)
	}

	if err := s.access.Grant(ctx, PrincipalScanner, s.location,
		strata.PermStorageRead, strata.PermStorageList); err != nil {
		return fmt.Errorf("setup: storage grants: %w", err)
	}

	namespaceRef := strata.ResourceRef("catalog://" + s.namespace)
	if err := s.access.Grant(ctx, PrincipalScanner, namespaceRef,
		strata.PermCreateTable, strata.PermAlterTable, strata.PermDropTable, strata.PermDescribe); err != nil {
		return fmt.Errorf("setup: catalog grants: %w", err)
	}

	if err := s.access.GrantDataLocation(ctx, PrincipalScanner, handle); err != nil {
		return fmt.Errorf("setup: location grant: %w", err)
	}

	if err := s.access.Grant(ctx, PrincipalQuery, namespaceRef, strata.PermDescribe); err != nil {
		return fmt.Errorf("setup: query grants: %w", err)
	}

	if s.resultRoot != "" {
		if err := os.MkdirAll(s.resultRoot, 0o755); err != nil {
			return fmt.Errorf("setup: result root: %w", err)
		}
	}

	s.log.Info().
		Str("location", string(s.location)).
		Str("namespace", s.namespace).
		Msg("provisioning complete")
	return nil
}
