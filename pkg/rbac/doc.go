// Package rbac provides role-based access control for the generic
// resource API.
//
// Every protected entity maps to an access group keyed by its table name
// (the resource tag). Grants live in a (role, group) permission table
// with four CRUD flags; a principal's effective permission for a resource
// is the logical OR of its roles' records. Records are cached in Redis as
// hashes keyed rbac:role#<id>:group#<tag>, which keeps both invalidation
// scans cheap: by role when a role's grants change, by group when a
// resource's grants change. A cache entry missing any of the four flags
// is treated as a full miss.
//
// Access groups are provisioned lazily: the first permission check
// against an unknown resource tag creates its group as a side effect and
// returns default-deny without caching it, so a grant added right after
// becomes visible immediately.
//
// The Gate authorizes requests conjunctively over the primary entity and
// every entity reachable through the requested relation traversal; a
// single denial rejects the request. A principal that resolves to zero
// roles is reported as a server-side misconfiguration, not a denial.
package rbac
