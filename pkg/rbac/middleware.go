package rbac

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/contextkeys"
	"github.com/tollgate-io/tollgate/pkg/httputil"
	"github.com/tollgate-io/tollgate/pkg/observability"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

// RoleSource resolves the acting principal's role ids. The principal is
// assumed to already be authenticated by an upstream collaborator.
type RoleSource interface {
	RolesForPrincipal(ctx context.Context, principalID int64) ([]int64, error)
}

// Gate authorizes requests against an entity and everything reachable
// through the requested relation traversal. Authorization is conjunctive:
// every resource in the expanded set must grant the action.
type Gate struct {
	resolver *Resolver
	roles    RoleSource
	log      logrus.FieldLogger
}

// NewGate creates an access control gate
func NewGate(resolver *Resolver, roles RoleSource, log logrus.FieldLogger) *Gate {
	return &Gate{
		resolver: resolver,
		roles:    roles,
		log:      log.WithField("component", "rbac-gate"),
	}
}

// methodAction maps an HTTP method to the CRUD action it requests.
func methodAction(method string) (Action, bool) {
	switch method {
	case http.MethodGet:
		return ActionRead, true
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	default:
		return "", false
	}
}

// Authorize allows or rejects an action by the principal's roles on the
// primary resource and its relation-derived resources.
func (g *Gate) Authorize(ctx context.Context, principalID int64, meta *schema.Metadata, relations []string, action Action) error {
	roleIDs, err := g.roles.RolesForPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		// A principal with zero roles is a server-side misconfiguration,
		// distinct from having roles that lack the permission.
		observability.PermissionChecksTotal.WithLabelValues("no_roles").Inc()
		return apperror.Internal("Principal has no role. Cannot access resource!", "rbac")
	}

	resources := AuthorizedResources(meta, relations)

	eg, ctx := errgroup.WithContext(ctx)
	for _, resource := range resources {
		resource := resource
		eg.Go(func() error {
			perm, err := g.resolver.Resolve(ctx, roleIDs, resource)
			if err != nil {
				return err
			}
			if !perm.Allows(action) {
				msg := fmt.Sprintf("You don't have permission to %s resource: '%s'", action, resource)
				return apperror.Forbidden(msg, "rbac")
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if appErr := apperror.As(err); appErr != nil && appErr.Status == http.StatusForbidden {
			observability.PermissionChecksTotal.WithLabelValues("denied").Inc()
		}
		return err
	}

	observability.PermissionChecksTotal.WithLabelValues("allowed").Inc()
	return nil
}

// Middleware gates every request to an entity's routes. For reads, the
// relation paths of the parsed resource query (mounted on the request
// context by the handler chain) expand the resource set.
func (g *Gate) Middleware(meta *schema.Metadata) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			action, ok := methodAction(r.Method)
			if !ok {
				httputil.WriteAppError(w, g.log, apperror.Internal(fmt.Sprintf("Invalid method name: '%s'", r.Method), "rbac"))
				return
			}

			principalID, ok := contextkeys.Principal(ctx)
			if !ok {
				httputil.WriteAppError(w, g.log, apperror.Unauthorized("No authenticated principal", "rbac"))
				return
			}

			var relations []string
			if action == ActionRead {
				if q := contextkeys.Query(ctx); q != nil {
					relations = q.Relations
				}
			}

			if err := g.Authorize(ctx, principalID, meta, relations, action); err != nil {
				httputil.WriteAppError(w, g.log, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
