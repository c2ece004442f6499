package worker

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kestrelworks/steward/pkg/models"
)

// AgentConfig configures the Anthropic-backed agent pool.
type AgentConfig struct {
	// Model is the Claude model to use.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// MaxTokens bounds the response size per task.
	MaxTokens int64
}

// AgentPool is a Backend that executes each task as a single Anthropic API
// conversation. The prompt carries the task title and its goal tags; the
// response text becomes the task output.
type AgentPool struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAgentPool creates an AgentPool from config.
func NewAgentPool(cfg AgentConfig) (*AgentPool, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &AgentPool{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Kind implements Backend.
func (p *AgentPool) Kind() Kind { return KindAgentPool }

// Dispatch implements Backend.
func (p *AgentPool) Dispatch(ctx context.Context, task *models.Task, workerID string) <-chan *models.WorkerResult {
	ch := make(chan *models.WorkerResult, 1)

	go func() {
		started := time.Now()
		res := &models.WorkerResult{
			TaskID:    task.ID,
			WorkerID:  workerID,
			StartedAt: started,
		}

		resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: "You are an execution agent completing a single development task. Respond with the completed work."},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(task))),
			},
		})
		res.FinishedAt = time.Now()
		if err != nil {
			res.Success = false
			res.Err = fmt.Sprintf("API error: %v", err)
			ch <- res
			return
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
				text.WriteString(variant.Text)
			}
		}
		res.Success = true
		res.Output = text.String()
		ch <- res
	}()

	return ch
}

// buildPrompt renders the task and its goal targets as the user message.
// Goal tags are listed in sorted order so prompts are reproducible.
func buildPrompt(task *models.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s: %s\n", task.ID, task.Title)

	if len(task.GoalTags) > 0 {
		sb.WriteString("\nGoal targets:\n")
		goals := make([]string, 0, len(task.GoalTags))
		for goal := range task.GoalTags {
			goals = append(goals, goal)
		}
		sort.Strings(goals)
		for _, goal := range goals {
			if models.SentinelGoalValue(task.GoalTags[goal]) {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", goal, task.GoalTags[goal])
		}
	}
	return sb.String()
}
