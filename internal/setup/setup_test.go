package setup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strata-lake/strata/internal/access"
	"github.com/strata-lake/strata/strata"
)

const usersPattern = strata.ResourceRef("s3://data-bucket/raw/jsonplaceholder/users/*")

func newSetup(t *testing.T) (*Setup, *access.Controller, string) {
	t.Helper()
	ac := access.New(zerolog.Nop(), PrincipalAdmin)
	resultRoot := filepath.Join(t.TempDir(), "results")
	return New(ac, usersPattern, "users_db", resultRoot, zerolog.Nop()), ac, resultRoot
}

func TestSetup_Run(t *testing.T) {
	ctx := context.Background()
	s, ac, resultRoot := newSetup(t)

	require.NoError(t, s.Run(ctx))

	require.True(t, ac.Allowed(PrincipalScanner, usersPattern, strata.PermStorageRead))
	require.True(t, ac.Allowed(PrincipalScanner, usersPattern, strata.PermStorageList))
	require.True(t, ac.Allowed(PrincipalScanner, usersPattern, strata.PermDataLocation))

	namespaceRef := strata.ResourceRef("catalog://users_db")
	for _, perm := range []strata.Permission{
		strata.PermCreateTable, strata.PermAlterTable, strata.PermDropTable, strata.PermDescribe,
	} {
		require.True(t, ac.Allowed(PrincipalScanner, namespaceRef, perm), "missing %s", perm)
	}

	require.True(t, ac.Allowed(PrincipalQuery, namespaceRef, strata.PermDescribe))
	require.False(t, ac.Allowed(PrincipalQuery, namespaceRef, strata.PermDropTable))

	info, err := os.Stat(resultRoot)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestSetup_RunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, ac, _ := newSetup(t)

	require.NoError(t, s.Run(ctx))
	require.NoError(t, s.Run(ctx))

	grants, err := ac.Enumerate(ctx, PrincipalScanner)
	require.NoError(t, err)
	require.Len(t, grants, 2)
}

func TestSetup_ScannerHasNoWritePermissionOnStorage(t *testing.T) {
	ctx := context.Background()
	s, ac, _ := newSetup(t)
	require.NoError(t, s.Run(ctx))

	grants, err := ac.Enumerate(ctx, PrincipalScanner)
	require.NoError(t, err)
	for _, g := range grants {
		if g.Resource != usersPattern {
			continue
		}
		require.ElementsMatch(t,
			[]strata.Permission{strata.PermStorageRead, strata.PermStorageList, strata.PermDataLocation},
			g.Permissions)
	}
}
