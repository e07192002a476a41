// Package strata provides the building blocks for a snapshot-ingestion data
// lake: immutable snapshot files in object storage, a schema catalog derived
// from them, scoped access grants, and an ad-hoc query surface.
//
// Strata focuses on the contracts between those parts. Extraction, scanning,
// and query execution are implemented under internal/ against the interfaces
// defined here.
package strata

import (
	"context"
	"errors"
	"io"
	"time"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// Record is one source entity flattened to named scalar fields.
//
// The field set is stable across a run: absent source fields map to a zero
// value, never a dropped column, so every row in one snapshot file has an
// identical shape.
type Record map[string]any

// Principal identifies a service or user that can hold grants.
type Principal string

// ResourceRef is a hierarchical reference to a governed resource, for
// example "s3://bucket/raw/jsonplaceholder/users/" or "catalog://users_db".
type ResourceRef string

// Permission names a single grantable action on a resource.
type Permission string

// Permissions used by the pipeline. Storage permissions are scoped to a
// partition prefix pattern, catalog permissions to one namespace.
const (
	PermStorageRead  Permission = "storage:read"
	PermStorageList  Permission = "storage:list"
	PermCreateTable  Permission = "catalog:create_table"
	PermAlterTable   Permission = "catalog:alter"
	PermDropTable    Permission = "catalog:drop"
	PermDescribe     Permission = "catalog:describe"
	PermDataLocation Permission = "location:access"
)

// Grant binds a principal to a permission set on one resource.
type Grant struct {
	Principal   Principal    `json:"principal"`
	Resource    ResourceRef  `json:"resource"`
	Permissions []Permission `json:"permissions"`
}

// -----------------------------------------------------------------------------
// Field types and table definitions
// -----------------------------------------------------------------------------

// FieldType is the inferred column type of a snapshot field.
//
// Types form a widening lattice: unknown < bigint < double < string. Values
// that disagree across rows or files widen to the least common type, and
// anything incomparable widens to string.
type FieldType int

// Field types in widening order.
const (
	TypeUnknown FieldType = iota
	TypeBigInt
	TypeDouble
	TypeString
)

func (t FieldType) String() string {
	switch t {
	case TypeBigInt:
		return "bigint"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// Widen returns the least common type of a and b on the lattice.
func Widen(a, b FieldType) FieldType {
	if a > b {
		return a
	}
	return b
}

// Column is one named, typed column of a table definition.
type Column struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// TableDefinition is the catalog's view of a partition prefix: a stable
// table name, the inferred column set, and the storage location the columns
// were inferred from. Only the scanner mutates table definitions.
type TableDefinition struct {
	Namespace string      `json:"namespace"`
	Name      string      `json:"name"`
	Location  ResourceRef `json:"location"`
	Columns   []Column    `json:"columns"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Column returns the named column and whether it exists.
func (d *TableDefinition) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// UpdateBehavior controls how a rescan treats an existing definition.
type UpdateBehavior int

const (
	// UpdateBehaviorMerge unions columns and widens types into the existing
	// definition. This is the default.
	UpdateBehaviorMerge UpdateBehavior = iota
	// UpdateBehaviorReplace publishes exactly the freshly inferred schema.
	UpdateBehaviorReplace
)

// DeleteBehavior controls how a rescan treats columns that disappeared from
// the latest files.
type DeleteBehavior int

const (
	// DeleteBehaviorLog keeps removed columns in the definition and logs
	// them. This is the default.
	DeleteBehaviorLog DeleteBehavior = iota
	// DeleteBehaviorDrop removes them. Only meaningful with replace updates.
	DeleteBehaviorDrop
)

// UpdatePolicy bundles the schema-change behavior for a scan.
type UpdatePolicy struct {
	Update UpdateBehavior
	Delete DeleteBehavior
}

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts the object store snapshots land in.
//
// Put is create-only: writing an existing path returns ErrPathExists, and a
// failed Put never leaves a partially written path visible to readers. That
// single property is what makes snapshot publication atomic.
type Store interface {
	// Put writes the full contents of r to path, failing if path exists.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves the contents at path, or ErrNotFound.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns all paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// -----------------------------------------------------------------------------
// Catalog interface
// -----------------------------------------------------------------------------

// Catalog is the metadata registry mapping table names to schemas and
// storage locations.
type Catalog interface {
	// CreateOrUpdateTable publishes def into its namespace. When a table of
	// the same name exists the policy decides whether columns merge or the
	// definition is replaced.
	CreateOrUpdateTable(ctx context.Context, def TableDefinition, policy UpdatePolicy) error

	// DescribeTable returns the published definition, or ErrTableNotFound.
	DescribeTable(ctx context.Context, namespace, name string) (*TableDefinition, error)
}

// -----------------------------------------------------------------------------
// Access control interface
// -----------------------------------------------------------------------------

// LocationHandle proves a storage location has been registered as a governed
// data source. Location-scoped grants require one, which makes the
// register-before-grant ordering explicit in the types rather than a runtime
// check.
type LocationHandle struct {
	Resource     ResourceRef
	RegisteredBy Principal
}

// AccessController is the permission service the pipeline grants through.
//
// Grants are additive and idempotent: re-applying a grant is a no-op and
// never revokes unrelated permissions.
type AccessController interface {
	// Grant adds permissions for principal on resource.
	Grant(ctx context.Context, principal Principal, resource ResourceRef, perms ...Permission) error

	// RegisterDataLocation declares resource a governed data source. Only
	// administrator principals may register; others get ErrPermissionDenied.
	RegisterDataLocation(ctx context.Context, admin Principal, resource ResourceRef) (LocationHandle, error)

	// GrantDataLocation grants location access against a registered location.
	GrantDataLocation(ctx context.Context, principal Principal, loc LocationHandle) error

	// Enumerate returns every grant held by principal.
	Enumerate(ctx context.Context, principal Principal) ([]Grant, error)
}

// -----------------------------------------------------------------------------
// Query interface
// -----------------------------------------------------------------------------

// ExecutionStatus is the lifecycle state of one query execution.
type ExecutionStatus int

const (
	StatusRunning ExecutionStatus = iota
	StatusSucceeded
	StatusFailed
)

func (s ExecutionStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "running"
	}
}

// ResultHandle references the isolated output of one query execution. Result
// locations are unique per execution and never overwritten.
type ResultHandle struct {
	ExecutionID    string          `json:"execution_id"`
	ResultLocation ResourceRef     `json:"result_location"`
	Status         ExecutionStatus `json:"status"`
}

// QueryEngine runs ad-hoc SQL against one cataloged namespace. Engines hold
// no state between executions.
type QueryEngine interface {
	// Execute runs sql against the namespace and persists the result set at
	// an execution-unique location.
	Execute(ctx context.Context, sql, namespace string) (*ResultHandle, error)

	// Status reports the state of a previous execution.
	Status(ctx context.Context, executionID string) (ExecutionStatus, error)
}

// -----------------------------------------------------------------------------
// Codec and compressor interfaces
// -----------------------------------------------------------------------------

// Codec serializes records into a snapshot file format the scanner can
// type-infer.
type Codec interface {
	// Name returns the codec identifier ("csv", "jsonl", "parquet").
	Name() string

	// Extension returns the snapshot file extension including the dot.
	Extension() string

	// Encode writes records to w.
	Encode(w io.Writer, records []Record) error

	// Decode reads records from r.
	Decode(r io.Reader) ([]Record, error)
}

// Compressor wraps snapshot streams with compression.
type Compressor interface {
	// Name returns the compressor identifier ("gzip", "zstd", "none").
	Name() string

	// Extension returns the appended file extension ("" for none).
	Extension() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Sentinel errors shared across the pipeline. Components wrap these with
// context; callers branch with errors.Is.
var (
	// ErrNotFound indicates a requested object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPathExists indicates a create-only write hit an existing path.
	ErrPathExists = errors.New("path exists")

	// ErrInvalidPath indicates a path that is empty or escapes the root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNoSnapshots indicates a partition prefix with no snapshot files
	// yet. Scanners treat this as "not yet run", not a failure.
	ErrNoSnapshots = errors.New("no snapshots under prefix")

	// ErrSourceUnavailable indicates the upstream fetch failed or timed
	// out. Fatal to the run; no partial output is written.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrWriteFailure indicates destination storage rejected the snapshot
	// write. Retry-safe: no partial file is visible.
	ErrWriteFailure = errors.New("snapshot write failed")

	// ErrScanFailure indicates a catalog scan could not complete. The
	// previously published definition remains valid.
	ErrScanFailure = errors.New("catalog scan failed")

	// ErrPermissionDenied indicates a principal lacks a required grant.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrLocationNotRegistered indicates a location-scoped grant was
	// attempted before the location was registered.
	ErrLocationNotRegistered = errors.New("data location not registered")

	// ErrQueryFailure indicates malformed SQL or a missing table, surfaced
	// to the caller verbatim.
	ErrQueryFailure = errors.New("query failed")

	// ErrStorageFailure indicates query results could not be persisted.
	ErrStorageFailure = errors.New("result storage failed")

	// ErrTableNotFound indicates the catalog has no such table.
	ErrTableNotFound = errors.New("table not found")
)
