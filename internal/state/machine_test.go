package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachinePhaseCycle(t *testing.T) {
	m := NewMachine("registry-sync", nil)
	assert.Equal(t, PhaseIdle, m.CurrentPhase())

	// 两轮完整的页循环
	for i := 0; i < 2; i++ {
		require.NoError(t, m.Trigger(EventStartFetch))
		require.NoError(t, m.Trigger(EventReconcile))
		require.NoError(t, m.Trigger(EventWrite))
		require.NoError(t, m.Trigger(EventAdvance))
	}

	require.NoError(t, m.Trigger(EventFinish))
	assert.Equal(t, PhaseDone, m.CurrentPhase())
	assert.True(t, m.Terminal())
}

func TestMachineRejectsSkippedPhase(t *testing.T) {
	m := NewMachine("registry-sync", nil)

	// idle 状态下不能直接写入
	assert.False(t, m.CanTransition(EventWrite))
	err := m.Trigger(EventWrite)
	assert.Error(t, err)
	assert.Equal(t, PhaseIdle, m.CurrentPhase())
}

func TestMachineAdvancesPastSkippedPage(t *testing.T) {
	m := NewMachine("registry-sync", nil)
	require.NoError(t, m.Trigger(EventStartFetch))

	// 页拉取失败时跳过 reconcile/write，直接推进到下一页
	require.NoError(t, m.Trigger(EventAdvance))
	assert.Equal(t, PhaseAdvancing, m.CurrentPhase())
	require.NoError(t, m.Trigger(EventStartFetch))
}

func TestMachineFailFromAnyPhase(t *testing.T) {
	m := NewMachine("seed-amenities", nil)
	require.NoError(t, m.Trigger(EventStartFetch))
	require.NoError(t, m.Trigger(EventReconcile))

	require.NoError(t, m.Trigger(EventFail))
	assert.Equal(t, PhaseFailed, m.CurrentPhase())
	assert.True(t, m.Terminal())
}

func TestMachinePhaseChangeCallback(t *testing.T) {
	var transitions []string
	m := NewMachine("refresh-scores", func(task, from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	require.NoError(t, m.Trigger(EventStartFetch))
	require.NoError(t, m.Trigger(EventFinish))

	assert.Equal(t, []string{"idle->fetching", "fetching->done"}, transitions)
}

func TestManagerStartReplacesRun(t *testing.T) {
	mgr := NewManager(nil)

	first := mgr.Start("registry-sync")
	require.NoError(t, first.Trigger(EventStartFetch))

	second := mgr.Start("registry-sync")
	got, ok := mgr.Get("registry-sync")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, PhaseIdle, got.CurrentPhase())

	states := mgr.GetAllStates()
	require.Len(t, states, 1)
	assert.Equal(t, "registry-sync", states["registry-sync"].Task)
}

func TestMachineUpdateStateCounts(t *testing.T) {
	m := NewMachine("registry-sync", nil)
	m.UpdateState(func(s *RunState) {
		s.Pages = 3
		s.Fetched = 600
		s.Written = 580
	})

	got := m.GetState()
	assert.Equal(t, 3, got.Pages)
	assert.Equal(t, 600, got.Fetched)
	assert.Equal(t, 580, got.Written)
}
