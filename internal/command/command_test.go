package command

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moe/internal/errors"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunShell(t *testing.T) {
	requireSh(t)
	r := Runner{Timeout: 10 * time.Second}
	out, err := r.RunShell(context.Background(), t.TempDir(), `sh -c "echo 'hello world'"`)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestRun_Failure(t *testing.T) {
	requireSh(t)
	r := Runner{Timeout: 10 * time.Second}
	_, err := r.RunShell(context.Background(), t.TempDir(), `sh -c "echo oops >&2; exit 3"`)
	require.Error(t, err)
	assert.Equal(t, errors.InternalError, errors.CodeOf(err))

	var me *errors.MoeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "oops", me.Details.(map[string]interface{})["stderr"])
}

func TestRun_Timeout(t *testing.T) {
	requireSh(t)
	r := Runner{Timeout: 50 * time.Millisecond}
	_, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "sleep 5")
	require.Error(t, err)
	assert.Equal(t, errors.Timeout, errors.CodeOf(err))
}

func TestRunShell_BadQuoting(t *testing.T) {
	_, err := Runner{}.RunShell(context.Background(), ".", `echo "unterminated`)
	assert.Equal(t, errors.ParseError, errors.CodeOf(err))

	_, err = Runner{}.RunShell(context.Background(), ".", "   ")
	assert.Equal(t, errors.ParseError, errors.CodeOf(err))
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Lines("a\n\n  b \n"))
	assert.Empty(t, Lines(""))
}
