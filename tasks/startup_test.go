package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/guidance/flags"
)

func newTestStartup(t *testing.T, r *fakeRenderer, flagValue any) (*Startup, *fakeCoord) {
	t.Helper()
	coord := newFakeCoord()
	store := flags.NewStore(nil)
	if flagValue != nil {
		require.NoError(t, store.Set(flags.ScopeProject, StartupInstructionFlag, flagValue))
	}
	return NewStartup(coord, r, store, nil), coord
}

func TestStartupQueuesPriorityInstruction(t *testing.T) {
	r := &fakeRenderer{bodies: map[string]string{startupTemplate: "  welcome aboard  "}}
	s, coord := newTestStartup(t, r, "collection:handbook")

	coord.led.Queue("existing", false)
	s.OnSessionChange("s1")

	assert.Equal(t, []string{"welcome aboard", "existing"}, coord.led.Pending(),
		"startup instruction queued at head, trimmed, untracked")
	assert.Zero(t, coord.led.TrackedCount())
}

func TestStartupOneShotPerSession(t *testing.T) {
	r := &fakeRenderer{bodies: map[string]string{startupTemplate: "welcome"}}
	s, coord := newTestStartup(t, r, "setup")

	s.OnSessionChange("s1")
	s.OnSessionChange("s1")
	assert.Len(t, r.calls, 1)

	coord.led.Inject(map[string]any{})
	s.OnSessionChange("s2")
	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"welcome"}, coord.led.Pending())
}

func TestStartupSkipsWithoutFlag(t *testing.T) {
	r := &fakeRenderer{bodies: map[string]string{startupTemplate: "welcome"}}
	s, coord := newTestStartup(t, r, nil)

	s.OnSessionChange("s1")
	assert.Empty(t, r.calls)
	assert.True(t, coord.led.Empty())
}

// The startup flag is project-scoped: a global flag of the same name must
// not trigger the listener.
func TestStartupIgnoresGlobalScopeFlag(t *testing.T) {
	r := &fakeRenderer{bodies: map[string]string{startupTemplate: "welcome"}}
	coord := newFakeCoord()
	store := flags.NewStore(nil)
	require.NoError(t, store.Set(flags.ScopeGlobal, StartupInstructionFlag, "setup"))
	s := NewStartup(coord, r, store, nil)

	s.OnSessionChange("s1")
	assert.Empty(t, r.calls)
	assert.True(t, coord.led.Empty())
}

func TestStartupSkipsUnparseableTarget(t *testing.T) {
	r := &fakeRenderer{bodies: map[string]string{startupTemplate: "welcome"}}
	s, coord := newTestStartup(t, r, "bogus:kind:extra")

	s.OnSessionChange("s1")
	assert.Empty(t, r.calls, "parse failure skips the render")
	assert.True(t, coord.led.Empty())
}

func TestStartupFilteredTemplateSilentlySkipped(t *testing.T) {
	r := &fakeRenderer{filtered: map[string]bool{startupTemplate: true}}
	s, coord := newTestStartup(t, r, "setup")

	s.OnSessionChange("s1")
	assert.True(t, coord.led.Empty())
}

func TestStartupEmptyBodyNotQueued(t *testing.T) {
	r := &fakeRenderer{bodies: map[string]string{startupTemplate: "   \n  "}}
	s, coord := newTestStartup(t, r, "setup")

	s.OnSessionChange("s1")
	assert.True(t, coord.led.Empty())
}
