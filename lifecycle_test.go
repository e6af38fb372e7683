// lifecycle_test.go: tests for initialization ordering and shutdown
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"testing"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	manager, err := New(append([]Option{WithLogger(NewTestLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })
	return manager
}

// activationRecorder appends plugin identities in hook execution order.
type activationRecorder struct {
	order []Identity
}

func (a *activationRecorder) hook(id Identity) HookFunc {
	return func(ctx context.Context, args ...any) error {
		a.order = append(a.order, id)
		return nil
	}
}

func insertManaged(t *testing.T, m *Manager, b *DescriptorBuilder) *PluginRecord {
	t.Helper()
	record, outcome, err := m.Insert(mustDescriptor(t, b))
	require.NoError(t, err)
	require.Equal(t, InsertAccepted, outcome)
	return record
}

func TestInitializeChildrenFirst(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}

	// a depends on b depends on c; activation must run c, b, a.
	insertManaged(t, m, NewDescriptor("a", "1.0").
		WithDependency("b", AnyVersion(), true).
		WithActivator(0, rec.hook("a")))
	insertManaged(t, m, NewDescriptor("b", "1.0").
		WithDependency("c", AnyVersion(), true).
		WithActivator(0, rec.hook("b")))
	insertManaged(t, m, NewDescriptor("c", "1.0").
		WithActivator(0, rec.hook("c")))

	failures, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []Identity{"c", "b", "a"}, rec.order)

	for _, id := range []Identity{"a", "b", "c"} {
		record, ok := m.Lookup(id)
		require.True(t, ok)
		assert.True(t, record.IsActive(), "%s must be active", id)
		assert.True(t, record.IsConstructed())
	}
}

func TestInitializeSkipsUnlinkable(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}

	insertManaged(t, m, NewDescriptor("ready", "1.0").
		WithActivator(0, rec.hook("ready")))
	stuck := insertManaged(t, m, NewDescriptor("stuck", "1.0").
		WithDependency("missing", AnyVersion(), true).
		WithActivator(0, rec.hook("stuck")))

	failures, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []Identity{"ready"}, rec.order)
	assert.False(t, stuck.IsActive())
	assert.False(t, stuck.IsConstructed())
}

func TestInitializeSkipsLibraries(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}

	insertManaged(t, m, NewDescriptor("toolkit", "1.0").
		WithType(PluginTypeLibrary).
		WithActivator(0, rec.hook("toolkit")))
	insertManaged(t, m, NewDescriptor("app", "1.0").
		WithDependency("toolkit", AnyVersion(), true).
		WithActivator(0, rec.hook("app")))

	failures, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []Identity{"app"}, rec.order)

	toolkit, ok := m.Lookup("toolkit")
	require.True(t, ok)
	assert.False(t, toolkit.IsConstructed())
	assert.False(t, toolkit.IsActive())
	assert.True(t, toolkit.IsLinkable(), "libraries still resolve and link")
}

func TestInitializeConstructionFailureAborts(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}
	boom := goerrors.New("TEST_BOOM", "constructor exploded")

	insertManaged(t, m, NewDescriptor("base", "1.0").
		WithActivator(0, rec.hook("base")))
	insertManaged(t, m, NewDescriptor("faulty", "1.0").
		WithDependency("base", AnyVersion(), true).
		WithConstructor(func(ctx context.Context, args ...any) (any, error) {
			return nil, boom
		}))
	insertManaged(t, m, NewDescriptor("after", "1.0").
		WithDependency("faulty", AnyVersion(), true).
		WithActivator(0, rec.hook("after")))

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	var structured *goerrors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, goerrors.ErrorCode(ErrCodeConstruction), structured.ErrorCode())

	// base activated before the abort; after never ran.
	assert.Equal(t, []Identity{"base"}, rec.order)
	after, _ := m.Lookup("after")
	assert.False(t, after.IsActive())
}

func TestInitializeActivationRetryResumesFromFailedHook(t *testing.T) {
	m := newTestManager(t)

	firstCalls := 0
	flakyCalls := 0
	insertManaged(t, m, NewDescriptor("flaky", "1.0").
		WithActivator(0, func(ctx context.Context, args ...any) error {
			firstCalls++
			return nil
		}).
		WithActivator(1, func(ctx context.Context, args ...any) error {
			flakyCalls++
			if flakyCalls == 1 {
				return goerrors.New("TEST_FLAKE", "first attempt fails")
			}
			return nil
		}))

	failures, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)

	// The completed hook must not re-run on retry.
	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 2, flakyCalls)

	flaky, _ := m.Lookup("flaky")
	assert.True(t, flaky.IsActive())
}

func TestInitializePersistentActivationFailureReported(t *testing.T) {
	m := newTestManager(t)
	attempts := 0

	insertManaged(t, m, NewDescriptor("broken", "1.0").
		WithActivator(0, func(ctx context.Context, args ...any) error {
			attempts++
			return goerrors.New("TEST_DEAD", "never succeeds")
		}))
	insertManaged(t, m, NewDescriptor("healthy", "1.0"))

	failures, err := m.Initialize(context.Background())
	require.Error(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, Identity("broken"), failures[0].Plugin)
	assert.Equal(t, "1.0", failures[0].Version)
	require.Error(t, failures[0].Err)
	assert.Equal(t, 2, attempts, "one initial attempt plus one retry")

	var structured *goerrors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, goerrors.ErrorCode(ErrCodeActivation), structured.ErrorCode())

	// The healthy plugin is unaffected.
	healthy, _ := m.Lookup("healthy")
	assert.True(t, healthy.IsActive())
	broken, _ := m.Lookup("broken")
	assert.False(t, broken.IsActive())
}

func TestInitializeIsIdempotentForActivePlugins(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}
	insertManaged(t, m, NewDescriptor("once", "1.0").
		WithActivator(0, rec.hook("once")))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	_, err = m.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Identity{"once"}, rec.order, "active plugins are not re-activated")
}

func TestInitializeIncrementalArrivals(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}

	insertManaged(t, m, NewDescriptor("app", "1.0").
		WithDependency("db", AnyVersion(), true).
		WithActivator(0, rec.hook("app")))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.order)

	// The dependency arrives later; the next round picks both up.
	insertManaged(t, m, NewDescriptor("db", "1.0").
		WithActivator(0, rec.hook("db")))
	_, err = m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Identity{"db", "app"}, rec.order)
}

func TestInitializeCycleActivatesEveryMember(t *testing.T) {
	m := newTestManager(t)
	rec := &activationRecorder{}

	insertManaged(t, m, NewDescriptor("a", "1.0").
		WithDependency("b", AnyVersion(), true).
		WithActivator(0, rec.hook("a")))
	insertManaged(t, m, NewDescriptor("b", "1.0").
		WithDependency("a", AnyVersion(), true).
		WithActivator(0, rec.hook("b")))

	failures, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, rec.order, 2)
	assert.ElementsMatch(t, []Identity{"a", "b"}, rec.order)

	// The DFS enters the cycle through the first-registered member, so
	// its dependency is emitted first.
	assert.Equal(t, []Identity{"b", "a"}, rec.order)
}

func TestShutdownDeactivatesInReverseOrder(t *testing.T) {
	m := newTestManager(t)
	var deactivated []Identity
	deactivator := func(id Identity) HookFunc {
		return func(ctx context.Context, args ...any) error {
			deactivated = append(deactivated, id)
			return nil
		}
	}

	insertManaged(t, m, NewDescriptor("a", "1.0").
		WithDependency("b", AnyVersion(), true).
		WithDeactivator(0, deactivator("a")))
	insertManaged(t, m, NewDescriptor("b", "1.0").
		WithDeactivator(0, deactivator("b")))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []Identity{"a", "b"}, deactivated,
		"dependents deactivate before their dependencies")

	for _, id := range []Identity{"a", "b"} {
		record, _ := m.Lookup(id)
		assert.False(t, record.IsActive())
	}
}

func TestShutdownContinuesPastDeactivationFailure(t *testing.T) {
	m := newTestManager(t)
	var deactivated []Identity

	insertManaged(t, m, NewDescriptor("a", "1.0").
		WithDependency("b", AnyVersion(), true).
		WithDeactivator(0, func(ctx context.Context, args ...any) error {
			return goerrors.New("TEST_STUCK", "refuses to stop")
		}))
	insertManaged(t, m, NewDescriptor("b", "1.0").
		WithDeactivator(0, func(ctx context.Context, args ...any) error {
			deactivated = append(deactivated, "b")
			return nil
		}))

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	err = m.Shutdown(context.Background())
	require.Error(t, err)
	var structured *goerrors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, goerrors.ErrorCode(ErrCodeDeactivation), structured.ErrorCode())
	assert.Equal(t, []Identity{"b"}, deactivated, "later plugins still deactivate")
}

func TestOperationsAfterShutdownReportShuttingDown(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Shutdown(context.Background()))

	_, _, err := m.Insert(mustDescriptor(t, NewDescriptor("late", "1.0")))
	requireErrCode(t, err, ErrCodeShuttingDown)

	_, err = m.Initialize(context.Background())
	requireErrCode(t, err, ErrCodeShuttingDown)

	err = m.Watch(t.TempDir())
	requireErrCode(t, err, ErrCodeShuttingDown)
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var structured *goerrors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, goerrors.ErrorCode(code), structured.ErrorCode())
}

func TestShutdownIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	insertManaged(t, m, NewDescriptor("p", "1.0"))
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}
