package generation

import (
	"context"

	"github.com/JaimeStill/go-agents/pkg/agent"
)

type agentChat struct {
	agent agent.Agent
}

// FromAgent adapts a go-agents agent to a Chatter.
func FromAgent(a agent.Agent) Chatter {
	return &agentChat{agent: a}
}

func (c *agentChat) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.agent.Chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}
