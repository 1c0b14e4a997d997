package agentpolicy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowkit/wfgraph/graph"
	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingAuthToken is returned (wrapped in a Failure) when an RBAC
// policy runs against a state with no "authToken" data entry.
var ErrMissingAuthToken = errors.New("agentpolicy: workflow state has no authToken")

// ErrForbidden is returned (wrapped in a Failure) when a caller's token
// does not carry the role an RBAC policy requires.
var ErrForbidden = errors.New("agentpolicy: caller lacks required role")

// rbacPolicy gates a node on a bearer JWT carried in
// WorkflowState.Data["authToken"] having requiredRole among its "role" or
// "roles" claim.
type rbacPolicy struct {
	requiredRole string
	keyFunc      jwt.Keyfunc
}

// RBAC builds a Policy that parses and validates the bearer token at
// WorkflowState.Data["authToken"] (using keyFunc to resolve the signing
// key, the same Keyfunc shape jwt.Parse expects) and only lets the
// wrapped node run if the token's claims grant requiredRole, either as a
// single "role" string claim or within a "roles" array claim.
func RBAC(requiredRole string, keyFunc jwt.Keyfunc) Policy {
	return &rbacPolicy{requiredRole: requiredRole, keyFunc: keyFunc}
}

func (p *rbacPolicy) Wrap(next graph.Node) graph.Node {
	return &policyNode{
		next: next,
		execute: func(state graph.WorkflowState, cancellationSignal context.Context) graph.NodeResult {
			tokenString, _ := state.Data["authToken"].(string)
			if tokenString == "" {
				return graph.Failure(next.ID(), "", time.Now(), "missing auth token", ErrMissingAuthToken)
			}

			token, err := jwt.Parse(tokenString, p.keyFunc, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}))
			if err != nil {
				return graph.Failure(next.ID(), "", time.Now(), "invalid auth token", err)
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !hasRole(claims, p.requiredRole) {
				return graph.Failure(next.ID(), "", time.Now(), "forbidden", fmt.Errorf("%w: %q", ErrForbidden, p.requiredRole))
			}

			return next.Execute(state, cancellationSignal)
		},
	}
}

func hasRole(claims jwt.MapClaims, required string) bool {
	if role, ok := claims["role"].(string); ok && role == required {
		return true
	}
	roles, ok := claims["roles"].([]interface{})
	if !ok {
		return false
	}
	for _, r := range roles {
		if s, ok := r.(string); ok && s == required {
			return true
		}
	}
	return false
}
