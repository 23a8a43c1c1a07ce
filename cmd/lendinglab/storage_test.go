package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"
)

func TestDrainLockFor(t *testing.T) {
	backend := sharedLock.NewLocalLock()
	redis := sharedLock.NewLocalLock()

	t.Run("el lock del backend tiene prioridad", func(t *testing.T) {
		got, err := drainLockFor(&storage{drainLock: backend}, redis)
		require.NoError(t, err)
		assert.Same(t, backend, got)
	})

	t.Run("sin lock propio se usa Redis", func(t *testing.T) {
		got, err := drainLockFor(&storage{}, redis)
		require.NoError(t, err)
		assert.Same(t, redis, got)
	})

	t.Run("sin ninguno no arranca", func(t *testing.T) {
		_, err := drainLockFor(&storage{}, nil)
		assert.ErrorIs(t, err, errDrainLockRequired)
	})
}
