package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tablesync/internal/cli"
	"github.com/rshade/tablesync/internal/demo"
)

func TestBulkCmd_StatusActions(t *testing.T) {
	setupCLITest(t)
	srv, url := startDemo(t, 10, demo.ServerConfig{})

	res := execute(t, "", "bulk", "deactivate", "--base-url", url, "--ids", "1,2", "--ids", "2")
	require.NoError(t, res.err, res.errOut)
	assert.Equal(t, "2 products marked inactive.\n", res.out)
	for _, id := range []int{1, 2} {
		p, ok := srv.Store().Get(id)
		require.True(t, ok)
		assert.Equal(t, demo.StatusInactive, p.Status)
	}

	res = execute(t, "", "bulk", "activate", "--base-url", url, "--ids", "1")
	require.NoError(t, res.err, res.errOut)
	assert.Equal(t, "1 products marked active.\n", res.out)
	p, _ := srv.Store().Get(1)
	assert.Equal(t, demo.StatusActive, p.Status)
}

func TestBulkCmd_Delete(t *testing.T) {
	setupCLITest(t)

	t.Run("--yes skips the prompt", func(t *testing.T) {
		srv, url := startDemo(t, 10, demo.ServerConfig{})
		res := execute(t, "", "bulk", "delete", "--base-url", url, "--ids", "1,2,3", "--yes")
		require.NoError(t, res.err, res.errOut)
		assert.Equal(t, "3 products deleted.\n", res.out)
		assert.Equal(t, 7, srv.Store().Len())
	})

	t.Run("prompt accepted", func(t *testing.T) {
		srv, url := startDemo(t, 10, demo.ServerConfig{})
		res := execute(t, "y\n", "bulk", "delete", "--base-url", url, "--ids", "4")
		require.NoError(t, res.err, res.errOut)
		assert.Contains(t, res.out, "? Delete 1 record on admin.products? [y/N] ")
		assert.Contains(t, res.out, "1 products deleted.")
		assert.Equal(t, 9, srv.Store().Len())
	})

	t.Run("prompt declined", func(t *testing.T) {
		srv, url := startDemo(t, 10, demo.ServerConfig{})
		res := execute(t, "\n", "bulk", "delete", "--base-url", url, "--ids", "4,5")
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "Delete 2 records")
		assert.Contains(t, res.out, "Aborted.")
		assert.Equal(t, 10, srv.Store().Len())
	})

	t.Run("server refusal", func(t *testing.T) {
		srv, url := startDemo(t, 10, demo.ServerConfig{LockedIDs: []int{1}})
		res := execute(t, "", "bulk", "delete", "--base-url", url, "--ids", "1,2", "--yes")
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "delete failed")
		assert.Contains(t, res.err.Error(), "You may not delete these products.")
		assert.Equal(t, 10, srv.Store().Len())
	})
}

func TestBulkCmd_RequiresIDs(t *testing.T) {
	setupCLITest(t)
	_, url := startDemo(t, 3, demo.ServerConfig{})

	res := execute(t, "", "bulk", "activate", "--base-url", url, "--ids", " , ")
	require.ErrorIs(t, res.err, cli.ErrNoIDs)
}
