package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{ID: "u-1", Email: "ana@example.com", FullName: "Ana", Role: "client"}

func TestInitializeRestoresSession(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	first := NewStore(storage, zerolog.Nop())
	first.Initialize(ctx)
	require.NoError(t, first.SignIn(ctx, "tok-1", testIdentity))

	second := NewStore(storage, zerolog.Nop())
	assert.False(t, second.State().Initialized)
	st := second.Initialize(ctx)
	assert.True(t, st.Initialized)
	assert.True(t, st.Authenticated)
	require.NotNil(t, st.Identity)
	assert.Equal(t, testIdentity, *st.Identity)
	tok, ok := second.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)
}

func TestInitializeWithCorruptData(t *testing.T) {
	ctx := context.Background()
	cases := map[string]map[string]string{
		"bad json":      {TokenKey: "tok", UserKey: "{not json"},
		"missing user":  {TokenKey: "tok"},
		"missing token": {UserKey: `{"id":"u-1"}`},
		"no id":         {TokenKey: "tok", UserKey: `{"email":"x"}`},
		"empty token":   {TokenKey: "", UserKey: `{"id":"u-1"}`},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			storage := NewMemoryStorage()
			for k, v := range data {
				require.NoError(t, storage.Set(ctx, k, v))
			}
			st := NewStore(storage, zerolog.Nop()).Initialize(ctx)
			assert.True(t, st.Initialized)
			assert.False(t, st.Authenticated)
			assert.Nil(t, st.Identity)
		})
	}
}

func TestInitializeWithCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("\x00garbage"), 0o600))

	s := NewStore(NewFileStorage(path), zerolog.Nop())
	st := s.Initialize(context.Background())
	assert.True(t, st.Initialized)
	assert.False(t, st.Authenticated)

	// Signing in over a corrupt file recovers it.
	require.NoError(t, s.SignIn(context.Background(), "tok", testIdentity))
	restored := NewStore(NewFileStorage(path), zerolog.Nop()).Initialize(context.Background())
	assert.True(t, restored.Authenticated)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := NewStore(storage, zerolog.Nop())
	s.Initialize(ctx)
	require.NoError(t, s.SignIn(ctx, "tok", testIdentity))
	require.NoError(t, storage.Delete(ctx, TokenKey, UserKey))

	st := s.Initialize(ctx)
	assert.True(t, st.Authenticated, "second initialize must not reset live state")
}

func TestLogoutClearsStorageAndMemory(t *testing.T) {
	ctx := context.Background()
	storage := NewFileStorage(filepath.Join(t.TempDir(), "s.json"))
	s := NewStore(storage, zerolog.Nop())
	require.NoError(t, s.SignIn(ctx, "tok", testIdentity))
	require.NoError(t, storage.Set(ctx, "pendingPaymentOrderId", "o-1"))

	require.NoError(t, s.Logout(ctx))
	st := s.State()
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.Identity)
	_, ok := s.Token(ctx)
	assert.False(t, ok)

	_, ok, err := storage.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = storage.Get(ctx, UserKey)
	assert.False(t, ok)
	v, ok, _ := storage.Get(ctx, "pendingPaymentOrderId")
	assert.True(t, ok)
	assert.Equal(t, "o-1", v)
}

type failingDelete struct{ *MemoryStorage }

func (f failingDelete) Delete(context.Context, ...string) error { return errors.New("disk full") }

func TestLogoutFailureLeavesSessionIntact(t *testing.T) {
	ctx := context.Background()
	storage := failingDelete{NewMemoryStorage()}
	s := NewStore(storage, zerolog.Nop())
	require.NoError(t, s.SignIn(ctx, "tok", testIdentity))

	require.Error(t, s.Logout(ctx))
	assert.True(t, s.State().Authenticated)
	_, ok, _ := storage.Get(ctx, TokenKey)
	assert.True(t, ok)
}

func TestSetIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryStorage(), zerolog.Nop())
	require.NoError(t, s.SetIdentity(ctx, &testIdentity))
	assert.True(t, s.State().Authenticated)
	require.NoError(t, s.SetIdentity(ctx, nil))
	assert.False(t, s.State().Authenticated)
}

func TestClearingIdentitySignsOut(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := NewStore(storage, zerolog.Nop())
	s.Initialize(ctx)
	require.NoError(t, s.SignIn(ctx, "tok-1", testIdentity))

	require.NoError(t, s.SetIdentity(ctx, nil))
	assert.False(t, s.State().Authenticated)
	_, ok := s.Token(ctx)
	assert.False(t, ok, "no bearer without an identity")
	for _, k := range []string{TokenKey, UserKey} {
		_, found, err := storage.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, found, k)
	}

	st := NewStore(storage, zerolog.Nop()).Initialize(ctx)
	assert.True(t, st.Initialized)
	assert.False(t, st.Authenticated)
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	storage := NewRedisStorage(client, "gighub:test:")

	s := NewStore(storage, zerolog.Nop())
	require.NoError(t, s.SignIn(ctx, "tok", testIdentity))
	assert.True(t, mr.Exists("gighub:test:token"))

	restored := NewStore(storage, zerolog.Nop()).Initialize(ctx)
	assert.True(t, restored.Authenticated)

	require.NoError(t, s.Logout(ctx))
	assert.False(t, mr.Exists("gighub:test:token"))
	assert.False(t, mr.Exists("gighub:test:user"))
}

func TestGuard(t *testing.T) {
	assert.Equal(t, DecisionLoading, Guard(State{}, ""))
	assert.Equal(t, DecisionRedirectLogin, Guard(State{Initialized: true}, ""))

	id := testIdentity
	st := State{Initialized: true, Authenticated: true, Identity: &id}
	assert.Equal(t, DecisionAllow, Guard(st, ""))
	assert.Equal(t, DecisionAllow, Guard(st, "client"))
	assert.Equal(t, DecisionRedirectHome, Guard(st, "freelancer"))
}
