package commission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeUsers is a map-backed UserReader that counts reads.
type fakeUsers struct {
	users map[primitive.ObjectID]*UserRecord
	reads int
}

func (f *fakeUsers) FindUser(_ context.Context, id primitive.ObjectID) (*UserRecord, error) {
	f.reads++
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindUsers(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*UserRecord, error) {
	out := make(map[primitive.ObjectID]*UserRecord, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeUsers) add(u *UserRecord) {
	if f.users == nil {
		f.users = make(map[primitive.ObjectID]*UserRecord)
	}
	f.users[u.ID] = u
}

func objID() primitive.ObjectID { return primitive.NewObjectID() }

func TestResolvePrefersUplineCache(t *testing.T) {
	a, b, c, user := objID(), objID(), objID(), objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: user, RecruiterID: &a, Uplines: []primitive.ObjectID{a, b, c}, Active: true})

	chain, err := NewResolver(f).Resolve(context.Background(), user, 3)
	require.NoError(t, err)
	require.Len(t, chain.Ancestors, 3)
	assert.False(t, chain.Truncated)
	assert.Equal(t, Ancestor{ID: a, Level: 1}, chain.Ancestors[0])
	assert.Equal(t, Ancestor{ID: b, Level: 2}, chain.Ancestors[1])
	assert.Equal(t, Ancestor{ID: c, Level: 3}, chain.Ancestors[2])

	// Only the user itself was read; the ancestors came from the cache.
	assert.Equal(t, 1, f.reads)
}

func TestResolveCacheCappedByDepth(t *testing.T) {
	a, b, c, user := objID(), objID(), objID(), objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: user, Uplines: []primitive.ObjectID{a, b, c}})

	chain, err := NewResolver(f).Resolve(context.Background(), user, 2)
	require.NoError(t, err)
	require.Len(t, chain.Ancestors, 2)
	assert.False(t, chain.Truncated)
}

func TestResolvePoisonedCacheTruncates(t *testing.T) {
	a, user := objID(), objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: user, Uplines: []primitive.ObjectID{a, user}})

	chain, err := NewResolver(f).Resolve(context.Background(), user, 3)
	require.NoError(t, err)
	require.Len(t, chain.Ancestors, 1)
	assert.True(t, chain.Truncated)
	assert.Equal(t, a, chain.Ancestors[0].ID)
}

func TestResolveWalksRecruiterPointers(t *testing.T) {
	grandparent, parent, user := objID(), objID(), objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: grandparent, Active: true})
	f.add(&UserRecord{ID: parent, RecruiterID: &grandparent, Active: true})
	f.add(&UserRecord{ID: user, RecruiterID: &parent, Active: true})

	chain, err := NewResolver(f).Resolve(context.Background(), user, 3)
	require.NoError(t, err)
	require.Len(t, chain.Ancestors, 2)
	assert.False(t, chain.Truncated)
	assert.Equal(t, Ancestor{ID: parent, Level: 1}, chain.Ancestors[0])
	assert.Equal(t, Ancestor{ID: grandparent, Level: 2}, chain.Ancestors[1])
}

func TestResolveCycleTruncates(t *testing.T) {
	// a -> b -> c -> a, resolution starts at a.
	a, b, c := objID(), objID(), objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: a, RecruiterID: &b})
	f.add(&UserRecord{ID: b, RecruiterID: &c})
	f.add(&UserRecord{ID: c, RecruiterID: &a})

	chain, err := NewResolver(f).Resolve(context.Background(), a, 5)
	require.NoError(t, err)
	require.Len(t, chain.Ancestors, 2)
	assert.True(t, chain.Truncated)
	assert.Equal(t, b, chain.Ancestors[0].ID)
	assert.Equal(t, c, chain.Ancestors[1].ID)
}

func TestResolveSelfRecruiterTruncates(t *testing.T) {
	a := objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: a, RecruiterID: &a})

	chain, err := NewResolver(f).Resolve(context.Background(), a, 3)
	require.NoError(t, err)
	assert.Empty(t, chain.Ancestors)
	assert.True(t, chain.Truncated)
}

func TestResolveDanglingPointerEndsQuietly(t *testing.T) {
	gone, parent, user := objID(), objID(), objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: parent, RecruiterID: &gone})
	f.add(&UserRecord{ID: user, RecruiterID: &parent})

	chain, err := NewResolver(f).Resolve(context.Background(), user, 3)
	require.NoError(t, err)
	require.Len(t, chain.Ancestors, 1)
	assert.False(t, chain.Truncated)
	assert.Equal(t, parent, chain.Ancestors[0].ID)
}

func TestResolveUnknownUser(t *testing.T) {
	f := &fakeUsers{}

	_, err := NewResolver(f).Resolve(context.Background(), objID(), 3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveZeroDepth(t *testing.T) {
	user := objID()
	f := &fakeUsers{}
	f.add(&UserRecord{ID: user, Uplines: []primitive.ObjectID{objID()}})

	chain, err := NewResolver(f).Resolve(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Empty(t, chain.Ancestors)
	assert.Equal(t, 0, f.reads)
}
