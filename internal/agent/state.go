package agent

import "github.com/techwithashish1/aws-agent-core-sample-application/internal/llm"

// State 是循环的运行状态。
type State int

const (
	// StateReasoning 表示等待推理服务给出下一条助手消息。
	StateReasoning State = iota
	// StateActing 表示正在执行助手消息携带的工具调用。
	StateActing
	// StateDone 表示循环已产出最终回复。
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReasoning:
		return "REASONING"
	case StateActing:
		return "ACTING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// nextState 是纯转移函数：REASONING 依据助手消息是否携带工具调用
// 决定走向，ACTING 总是回到 REASONING。
func nextState(state State, last *llm.Message) State {
	switch state {
	case StateReasoning:
		if last != nil && len(last.ToolCalls) > 0 {
			return StateActing
		}
		return StateDone
	case StateActing:
		return StateReasoning
	default:
		return StateDone
	}
}
