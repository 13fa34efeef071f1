package mode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunschool/sunschool-go/internal/cache"
	"github.com/sunschool/sunschool-go/internal/nav"
	"github.com/sunschool/sunschool-go/internal/session"
	"github.com/sunschool/sunschool-go/internal/storage"
)

// fakeSession entrega una identidad fija y un canal de expiración manual.
type fakeSession struct {
	ident  *session.Identity
	expiry chan session.ExpiryEvent
}

func newFakeSession(ident *session.Identity) *fakeSession {
	return &fakeSession{ident: ident, expiry: make(chan session.ExpiryEvent, 1)}
}

func (f *fakeSession) Identity() *session.Identity           { return f.ident }
func (f *fakeSession) Subscribe() <-chan session.ExpiryEvent { return f.expiry }

// fakeAPI responde el fetch de learners con una lista fija o un error.
type fakeAPI struct {
	learners []Learner
	err      error
	calls    int
}

func (f *fakeAPI) Get(ctx context.Context, path string, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	b, _ := json.Marshal(f.learners)
	return json.Unmarshal(b, out)
}

// spyCache envuelve el driver memory y registra cada DeletePrefix, con un
// hook para observar el estado del selector en el momento exacto del borrado.
type spyCache struct {
	cache.Client
	prefixes []string
	onDelete func(prefix string)
}

func (s *spyCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	s.prefixes = append(s.prefixes, prefix)
	if s.onDelete != nil {
		s.onDelete(prefix)
	}
	return s.Client.DeletePrefix(ctx, prefix)
}

type env struct {
	sel   *Selector
	sess  *fakeSession
	api   *fakeAPI
	store storage.Store
	spy   *spyCache
	pend  *nav.Pending
	navs  *[]nav.Route
}

func newEnv(t *testing.T, ident *session.Identity, learners []Learner, confirm ConfirmFunc) *env {
	t.Helper()
	sess := newFakeSession(ident)
	api := &fakeAPI{learners: learners}
	store := storage.NewMemory()
	spy := &spyCache{Client: cache.NewMemory("")}

	var navs []nav.Route
	pend := nav.NewPending(nav.Func(func(r nav.Route) error {
		navs = append(navs, r)
		return nil
	}), nil)

	sel := New(Options{
		Session: sess,
		API:     api,
		Store:   store,
		Results: spy,
		Nav:     pend,
		Confirm: confirm,
	})
	t.Cleanup(sel.Close)
	return &env{sel, sess, api, store, spy, pend, &navs}
}

func parent() *session.Identity {
	return &session.Identity{ID: 10, Name: "Pat", Role: session.RoleParent}
}

func twoLearners() []Learner {
	return []Learner{{ID: 1, Name: "Sam"}, {ID: 2, Name: "Lee"}}
}

func TestInitialMode_RoleDefault(t *testing.T) {
	e := newEnv(t, &session.Identity{ID: 3, Name: "Kid", Role: session.RoleLearner}, nil, nil)
	e.sel.Init(context.Background())
	require.Equal(t, ModeLearner, e.sel.Mode())

	e2 := newEnv(t, parent(), nil, nil)
	e2.sel.Init(context.Background())
	require.Equal(t, ModeGrownUp, e2.sel.Mode())
}

func TestInitialMode_PersistedPreferenceWins(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	_ = e.store.Set(storage.KeyPreferredMode, string(ModeLearner))
	e.sel.Init(context.Background())
	require.Equal(t, ModeLearner, e.sel.Mode(), "persisted preference beats role default")
}

func TestInitialMode_GarbagePreferenceIgnored(t *testing.T) {
	e := newEnv(t, parent(), nil, nil)
	_ = e.store.Set(storage.KeyPreferredMode, "SIDEWAYS")
	e.sel.Init(context.Background())
	require.Equal(t, ModeGrownUp, e.sel.Mode())
}

func TestRefreshLearners_NonCaregiver(t *testing.T) {
	e := newEnv(t, &session.Identity{ID: 3, Role: session.RoleLearner}, twoLearners(), nil)
	got := e.sel.RefreshLearners(context.Background())
	require.Nil(t, got)
	require.Zero(t, e.api.calls, "learner identities never fetch the roster")
}

func TestRefreshLearners_FetchErrorYieldsEmpty(t *testing.T) {
	e := newEnv(t, parent(), nil, nil)
	e.api.err = errors.New("boom")
	got := e.sel.RefreshLearners(context.Background())
	require.NotNil(t, got)
	require.Empty(t, got, "fetch failure resolves to empty list, not an error surface")
	require.Nil(t, e.sel.SelectedLearner())
	require.False(t, e.sel.IsLoadingLearners())
}

func TestRestoreSelection_PersistedMatch(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	_ = e.store.Set(storage.KeySelectedLearner, "2")

	e.sel.RefreshLearners(context.Background())
	sel := e.sel.SelectedLearner()
	require.NotNil(t, sel)
	require.EqualValues(t, 2, sel.ID)
}

func TestRestoreSelection_FallbackToFirst(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	_ = e.store.Set(storage.KeySelectedLearner, "99") // ya no existe

	e.sel.RefreshLearners(context.Background())
	sel := e.sel.SelectedLearner()
	require.NotNil(t, sel)
	require.EqualValues(t, 1, sel.ID, "fallback is the first roster entry")

	raw, ok := e.store.Get(storage.KeySelectedLearner)
	require.True(t, ok)
	require.Equal(t, "1", raw, "persisted id rewritten so future restores are stable")
}

func TestSelectLearner_Idempotent(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)

	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 2}))
	invalidations := len(e.spy.prefixes)
	e.pend.Reconcile()

	// misma selección de nuevo: sin invalidación, sin writes, sin navegación
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 2}))
	require.Len(t, e.spy.prefixes, invalidations, "re-select must not invalidate caches")
	_, pendingNav := e.pend.Peek()
	require.False(t, pendingNav, "re-select must not navigate")
}

func TestSelectLearner_InvalidatesBeforeSelection(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 1}))

	// en cada borrado la selección observable sigue siendo la vieja
	e.spy.prefixes = nil
	e.spy.onDelete = func(prefix string) {
		cur := e.sel.SelectedLearner()
		require.NotNil(t, cur)
		require.EqualValues(t, 1, cur.ID,
			"invalidation must complete before the new selection is observable")
		require.True(t, e.sel.IsSwitching())
	}

	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 2}))
	require.Equal(t, []string{"lessons:", "quizzes:", "progress:", "mastery:"}, e.spy.prefixes)
	require.False(t, e.sel.IsSwitching())
}

func TestSelectLearner_FullSwitch(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)

	_ = e.spy.Set(ctx, "lessons:1:list", "old", 0)
	_ = e.spy.Set(ctx, "roster:all", "keep", 0)

	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 2}))

	sel := e.sel.SelectedLearner()
	require.NotNil(t, sel)
	require.EqualValues(t, 2, sel.ID)
	require.Equal(t, ModeLearner, e.sel.Mode(), "selection forces LEARNER mode")

	_, err := e.spy.Get(ctx, "lessons:1:list")
	require.ErrorIs(t, err, cache.ErrNotFound)
	v, err := e.spy.Get(ctx, "roster:all")
	require.NoError(t, err, "non learner-scoped families survive the switch")
	require.Equal(t, "keep", v)

	raw, _ := e.store.Get(storage.KeySelectedLearner)
	require.Equal(t, "2", raw)
	rawMode, _ := e.store.Get(storage.KeyPreferredMode)
	require.Equal(t, string(ModeLearner), rawMode)

	r, ok := e.pend.Peek()
	require.True(t, ok)
	require.Equal(t, nav.RouteLearnerHome, r)
}

func TestSelectLearner_RejectsUnknownAndMalformed(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	before := e.sel.SelectedLearner()

	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 0}))
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 77}))

	after := e.sel.SelectedLearner()
	require.Equal(t, before.ID, after.ID, "bad input leaves selection untouched")
}

func TestToggleMode_Flip(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 1}))
	e.pend.Reconcile()

	require.NoError(t, e.sel.ToggleMode(ctx))
	require.Equal(t, ModeGrownUp, e.sel.Mode())
	r, ok := e.pend.Peek()
	require.True(t, ok)
	require.Equal(t, nav.RouteDashboard, r)
	raw, _ := e.store.Get(storage.KeyPreferredMode)
	require.Equal(t, string(ModeGrownUp), raw)
}

func TestToggleMode_NoLearnersRedirects(t *testing.T) {
	e := newEnv(t, parent(), nil, nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)

	require.NoError(t, e.sel.ToggleMode(ctx))
	require.Equal(t, ModeGrownUp, e.sel.Mode(), "mode unchanged")
	r, ok := e.pend.Peek()
	require.True(t, ok)
	require.Equal(t, nav.RouteLearners, r, "redirected to learner management")
}

func TestToggleMode_NoSelectionDelegatesToSelect(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	_ = e.store.Remove(storage.KeySelectedLearner)
	e.sel.mu.Lock()
	e.sel.selected = nil
	e.sel.mu.Unlock()

	require.NoError(t, e.sel.ToggleMode(ctx))
	sel := e.sel.SelectedLearner()
	require.NotNil(t, sel)
	require.EqualValues(t, 1, sel.ID, "delegated select picks the first learner")
	require.Equal(t, ModeLearner, e.sel.Mode())
	r, ok := e.pend.Peek()
	require.True(t, ok)
	require.Equal(t, nav.RouteLearnerHome, r)
}

func TestToggleMode_DirtyGuardDecline(t *testing.T) {
	declined := false
	e := newEnv(t, parent(), twoLearners(), func(prompt string) bool {
		declined = true
		if !strings.Contains(prompt, "unsaved") {
			t.Errorf("prompt should mention unsaved changes, got %q", prompt)
		}
		return false
	})
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 1}))
	e.pend.Reconcile()

	e.sel.MarkFormDirty("quiz-editor")
	require.NoError(t, e.sel.ToggleMode(ctx))

	require.True(t, declined)
	require.Equal(t, ModeLearner, e.sel.Mode(), "decline leaves mode untouched")
	require.Equal(t, 1, e.sel.DirtyFormCount(), "decline leaves the registry intact")
	_, pendingNav := e.pend.Peek()
	require.False(t, pendingNav)
}

func TestToggleMode_DirtyGuardAccept(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), func(string) bool { return true })
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 1}))
	e.pend.Reconcile()

	e.sel.MarkFormDirty("quiz-editor")
	e.sel.MarkFormDirty("profile")
	require.NoError(t, e.sel.ToggleMode(ctx))

	require.Equal(t, ModeGrownUp, e.sel.Mode())
	require.Zero(t, e.sel.DirtyFormCount(), "accept clears the registry")
}

func TestToggleMode_NilConfirmDeclines(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.RefreshLearners(ctx)
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 1}))

	e.sel.MarkFormDirty("quiz-editor")
	require.NoError(t, e.sel.ToggleMode(ctx))
	require.Equal(t, ModeLearner, e.sel.Mode(), "no confirm hook means the switch is blocked")
}

func TestToggleMode_NoIdentity(t *testing.T) {
	e := newEnv(t, nil, nil, nil)
	require.NoError(t, e.sel.ToggleMode(context.Background()))
	require.Equal(t, ModeGrownUp, e.sel.Mode())
	_, pendingNav := e.pend.Peek()
	require.False(t, pendingNav)
}

func TestExpiry_ClearsSelection(t *testing.T) {
	e := newEnv(t, parent(), twoLearners(), nil)
	ctx := context.Background()
	e.sel.Init(ctx)
	require.NoError(t, e.sel.SelectLearner(ctx, Learner{ID: 2}))

	e.pend.Reconcile() // consume la navegación del select previo

	e.sess.expiry <- session.ExpiryEvent{Path: "/api/progress"}

	require.Eventually(t, func() bool {
		_, hasLearner := e.store.Get(storage.KeySelectedLearner)
		_, hasMode := e.store.Get(storage.KeyPreferredMode)
		return !hasLearner && !hasMode && e.sel.SelectedLearner() == nil
	}, time.Second, 5*time.Millisecond, "expiry must clear persisted and in-memory selection")

	_, pendingNav := e.pend.Peek()
	require.False(t, pendingNav, "expiry never schedules navigation")
}
