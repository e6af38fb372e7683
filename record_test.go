// record_test.go: tests for per-plugin runtime state
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

func TestRecordConstructRequiresLinkability(t *testing.T) {
	record := testRecord(t, NewDescriptor("app", "1.0"))

	_, err := record.construct(context.Background())
	require.Error(t, err)
	var structured *goerrors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, goerrors.ErrorCode(ErrCodeUnlinkable), structured.ErrorCode())
	assert.False(t, record.IsConstructed())
}

func TestRecordConstructDefaultInstance(t *testing.T) {
	record := testRecord(t, NewDescriptor("app", "1.0"))
	record.markLinkable()

	instance, err := record.construct(context.Background())
	require.NoError(t, err)
	handle, ok := instance.(*PluginHandle)
	require.True(t, ok)
	assert.Equal(t, Identity("app"), handle.ID)
	assert.Equal(t, "1.0", handle.Version)
	assert.True(t, record.IsConstructed())
	assert.Same(t, instance, record.Instance())
}

func TestRecordConstructRunsConstructorWithArgs(t *testing.T) {
	type service struct{ name string }
	var gotArgs []any
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithConstructor(func(ctx context.Context, args ...any) (any, error) {
			gotArgs = args
			return &service{name: "built"}, nil
		}))
	record.markLinkable()

	instance, err := record.construct(context.Background(), "flag", 42)
	require.NoError(t, err)
	assert.Equal(t, []any{"flag", 42}, gotArgs)
	assert.Equal(t, "built", instance.(*service).name)
}

func TestRecordConstructTwiceReturnsExistingInstance(t *testing.T) {
	calls := 0
	logger := NewTestLogger()
	record := newPluginRecord(mustDescriptor(t, NewDescriptor("app", "1.0").
		WithConstructor(func(ctx context.Context, args ...any) (any, error) {
			calls++
			return calls, nil
		})), logger)
	record.markLinkable()

	first, err := record.construct(context.Background())
	require.NoError(t, err)
	second, err := record.construct(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.True(t, logger.HasMessage("WARN", "Plugin already constructed, returning existing instance"))
}

func TestRecordConstructorFailureLeavesSlotEmpty(t *testing.T) {
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithConstructor(func(ctx context.Context, args ...any) (any, error) {
			return nil, goerrors.New("TEST_BOOM", "no instance today")
		}))
	record.markLinkable()

	_, err := record.construct(context.Background())
	require.Error(t, err)
	assert.False(t, record.IsConstructed())
	assert.Nil(t, record.Instance())
}

func TestRecordHooksRunByPriorityThenDeclarationOrder(t *testing.T) {
	var order []string
	step := func(name string) HookFunc {
		return func(ctx context.Context, args ...any) error {
			order = append(order, name)
			return nil
		}
	}

	record := testRecord(t, NewDescriptor("app", "1.0").
		WithActivator(10, step("late")).
		WithActivator(0, step("first-zero")).
		WithActivator(5, step("middle")).
		WithActivator(0, step("second-zero")))

	require.NoError(t, record.callActivators(context.Background()))
	assert.Equal(t, []string{"first-zero", "second-zero", "middle", "late"}, order)
}

func TestRecordActivatorResumeSkipsCompletedHooks(t *testing.T) {
	var order []string
	fail := true
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithActivator(0, func(ctx context.Context, args ...any) error {
			order = append(order, "ok")
			return nil
		}).
		WithActivator(1, func(ctx context.Context, args ...any) error {
			if fail {
				order = append(order, "fail")
				return goerrors.New("TEST_FLAKE", "transient")
			}
			order = append(order, "recovered")
			return nil
		}).
		WithActivator(2, func(ctx context.Context, args ...any) error {
			order = append(order, "tail")
			return nil
		}))

	err := record.callActivators(context.Background())
	require.Error(t, err)

	fail = false
	require.NoError(t, record.callActivators(context.Background()))
	assert.Equal(t, []string{"ok", "fail", "recovered", "tail"}, order)
}

func TestRecordDeactivatorResumeMirrorsActivators(t *testing.T) {
	calls := 0
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithDeactivator(0, func(ctx context.Context, args ...any) error {
			calls++
			if calls == 1 {
				return goerrors.New("TEST_STUCK", "transient")
			}
			return nil
		}))

	require.Error(t, record.callDeactivators(context.Background()))
	require.NoError(t, record.callDeactivators(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestRecordHookArgsForwarded(t *testing.T) {
	var got []any
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithActivator(0, func(ctx context.Context, args ...any) error {
			got = args
			return nil
		}))

	require.NoError(t, record.callActivators(context.Background(), "shared", 7))
	assert.Equal(t, []any{"shared", 7}, got)
}

func TestRecordLinkableFlagIsSticky(t *testing.T) {
	record := testRecord(t, NewDescriptor("app", "1.0"))
	assert.False(t, record.IsLinkable())
	record.markLinkable()
	assert.True(t, record.IsLinkable())
	record.markLinkable()
	assert.True(t, record.IsLinkable())
}

func TestRecordIsResolvedIgnoresOptionalDeps(t *testing.T) {
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithDependency("must", AnyVersion(), true).
		WithDependency("may", AnyVersion(), false))
	assert.False(t, record.IsResolved())

	must := testRecord(t, NewDescriptor("must", "1.0"))
	_, ok := record.bindDependency(must, AnyVersion())
	require.True(t, ok)
	assert.True(t, record.IsResolved(), "optional dependency must not block resolution")
}

func TestRecordUnbindDependencyRestoresUnresolved(t *testing.T) {
	record := testRecord(t, NewDescriptor("app", "1.0").
		WithDependency("db", AnyVersion(), true))
	db := testRecord(t, NewDescriptor("db", "1.0"))

	_, ok := record.bindDependency(db, AnyVersion())
	require.True(t, ok)
	require.True(t, record.IsResolved())

	record.unbindDependency("db")
	assert.False(t, record.IsResolved())
	assert.Empty(t, record.ResolvedDeps())
}
