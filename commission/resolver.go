// commission/resolver.go
package commission

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ancestor is one entry of a resolved upline chain. Level 1 is the direct
// recruiter.
type Ancestor struct {
	ID    primitive.ObjectID
	Level int
}

// Chain is the ordered upline of a user. Truncated is set when resolution
// stopped because the underlying data contained a cycle; the entries
// collected before the cycle point are still returned.
type Chain struct {
	Ancestors []Ancestor
	Truncated bool
}

// Resolver walks a user's recruiter chain. It prefers the upline cache
// written at recruitment time and falls back to following recruiter
// pointers live. Resolution is a pure read with no side effects.
type Resolver struct {
	users UserReader
}

func NewResolver(users UserReader) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the ancestor chain of userID, at most maxDepth deep.
// Recruitment-time validation is supposed to keep the graph acyclic, but
// the walk does not trust that: a repeated or self-referencing entry ends
// the chain with Truncated set instead of looping. A dangling recruiter
// pointer ends the chain quietly.
func (r *Resolver) Resolve(ctx context.Context, userID primitive.ObjectID, maxDepth int) (Chain, error) {
	if maxDepth <= 0 {
		return Chain{}, nil
	}

	user, err := r.users.FindUser(ctx, userID)
	if err != nil {
		return Chain{}, fmt.Errorf("resolve upline of %s: %w", userID.Hex(), err)
	}

	if len(user.Uplines) > 0 {
		return chainFromCache(userID, user.Uplines, maxDepth), nil
	}
	return r.walk(ctx, user, maxDepth)
}

// chainFromCache trusts the precomputed upline list but still guards
// against a poisoned cache containing the user itself or a repeat.
func chainFromCache(userID primitive.ObjectID, uplines []primitive.ObjectID, maxDepth int) Chain {
	seen := map[primitive.ObjectID]bool{userID: true}
	chain := Chain{}
	for _, id := range uplines {
		if len(chain.Ancestors) == maxDepth {
			break
		}
		if seen[id] {
			chain.Truncated = true
			break
		}
		seen[id] = true
		chain.Ancestors = append(chain.Ancestors, Ancestor{ID: id, Level: len(chain.Ancestors) + 1})
	}
	return chain
}

// walk follows recruiter pointers one read at a time, bounded by maxDepth.
func (r *Resolver) walk(ctx context.Context, user *UserRecord, maxDepth int) (Chain, error) {
	seen := map[primitive.ObjectID]bool{user.ID: true}
	chain := Chain{}
	current := user
	for len(chain.Ancestors) < maxDepth {
		if current.RecruiterID == nil {
			break
		}
		next := *current.RecruiterID
		if seen[next] {
			chain.Truncated = true
			break
		}
		ancestor, err := r.users.FindUser(ctx, next)
		if errors.Is(err, ErrNotFound) {
			// Dangling pointer: the chain simply ends here.
			break
		}
		if err != nil {
			return Chain{}, fmt.Errorf("resolve upline at level %d: %w", len(chain.Ancestors)+1, err)
		}
		seen[next] = true
		chain.Ancestors = append(chain.Ancestors, Ancestor{ID: next, Level: len(chain.Ancestors) + 1})
		current = ancestor
	}
	return chain, nil
}
