package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 管线运行阶段常量
const (
	PhaseIdle        = "idle"
	PhaseFetching    = "fetching"
	PhaseReconciling = "reconciling"
	PhaseWriting     = "writing"
	PhaseAdvancing   = "advancing"
	PhaseDone        = "done"
	PhaseFailed      = "failed"
)

// 阶段事件常量
const (
	EventStartFetch = "start_fetch"
	EventReconcile  = "reconcile"
	EventWrite      = "write"
	EventAdvance    = "advance"
	EventFinish     = "finish"
	EventFail       = "fail"
)

// RunState 一次管线运行的可观测快照
type RunState struct {
	Task         string    `json:"task"`
	CurrentPhase string    `json:"phase"`
	Since        time.Time `json:"since"`
	StartedAt    time.Time `json:"started_at"`
	Pages        int       `json:"pages"`
	Fetched      int       `json:"fetched"`
	Written      int       `json:"written"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	LastError    string    `json:"last_error,omitempty"`
}

// Machine 管线运行状态机。把批量任务约束在
// fetching → reconciling → writing → advancing 的循环上，
// advancing 之后要么回到 fetching 要么收敛到 done。
type Machine struct {
	mu            sync.RWMutex
	task          string
	fsm           *fsm.FSM
	state         *RunState
	onPhaseChange func(task, from, to string)
}

// NewMachine 创建运行状态机
func NewMachine(task string, onPhaseChange func(task, from, to string)) *Machine {
	now := time.Now()
	m := &Machine{
		task:          task,
		onPhaseChange: onPhaseChange,
		state: &RunState{
			Task:         task,
			CurrentPhase: PhaseIdle,
			Since:        now,
			StartedAt:    now,
		},
	}

	m.fsm = fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			// 新一轮页处理从 idle 或上一轮 advancing 进入
			{Name: EventStartFetch, Src: []string{PhaseIdle, PhaseAdvancing}, Dst: PhaseFetching},

			// 页内阶段推进；拉取失败被跳过的页从 fetching 直接 advance
			{Name: EventReconcile, Src: []string{PhaseFetching}, Dst: PhaseReconciling},
			{Name: EventWrite, Src: []string{PhaseReconciling}, Dst: PhaseWriting},
			{Name: EventAdvance, Src: []string{PhaseWriting, PhaseFetching}, Dst: PhaseAdvancing},

			// 收敛：最后一页之后或空页直接结束
			{Name: EventFinish, Src: []string{PhaseAdvancing, PhaseFetching, PhaseIdle}, Dst: PhaseDone},

			// 任何阶段都可能失败
			{Name: EventFail, Src: []string{PhaseIdle, PhaseFetching, PhaseReconciling, PhaseWriting, PhaseAdvancing}, Dst: PhaseFailed},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onPhaseChange != nil && e.Src != e.Dst {
					m.onPhaseChange(m.task, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentPhase 获取当前阶段
func (m *Machine) CurrentPhase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取完整运行快照
func (m *Machine) GetState() *RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stateCopy := *m.state
	stateCopy.CurrentPhase = m.fsm.Current()
	return &stateCopy
}

// UpdateState 更新运行计数
func (m *Machine) UpdateState(update func(s *RunState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update(m.state)
}

// Trigger 触发阶段事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.state.CurrentPhase = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Terminal 运行是否已收敛
func (m *Machine) Terminal() bool {
	phase := m.CurrentPhase()
	return phase == PhaseDone || phase == PhaseFailed
}

// Manager 按任务名管理运行状态机
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine
	onChange func(task, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(task, from, to string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// Start 为任务开启一次新运行，覆盖旧机器
func (m *Manager) Start(task string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	machine := NewMachine(task, m.onChange)
	m.machines[task] = machine
	return machine
}

// Get 获取任务的状态机
func (m *Manager) Get(task string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[task]
	return machine, ok
}

// GetAllStates 获取所有任务的运行快照
func (m *Manager) GetAllStates() map[string]*RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*RunState)
	for task, machine := range m.machines {
		states[task] = machine.GetState()
	}
	return states
}
