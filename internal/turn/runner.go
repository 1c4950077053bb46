// Package turn orchestrates one question/answer exchange: it resolves the
// response mode, replays conversation history into the agent loop, persists
// the produced parts, and closes the event stream with exactly one terminal.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docketbot/docket/internal/agent"
	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/prefs"
	"github.com/docketbot/docket/internal/stream"
)

// DefaultThreshold is the classifier confidence a mode must reach before it
// is picked over the user's configured default.
const DefaultThreshold = 0.3

// persistTimeout bounds the save that runs after the turn context is gone.
const persistTimeout = 5 * time.Second

var (
	errEmptyInput = errors.New("query must not be empty")
	errNoUser     = errors.New("user id is required")
)

// Config carries the runner's dependencies.
type Config struct {
	Agent         *agent.Agent
	Modes         *mode.Registry
	Conversations conversation.Store
	Preferences   prefs.Store
	Logger        log.Logger

	// Threshold is the classifier confidence floor. Zero means DefaultThreshold.
	Threshold float64
}

func (c *Config) validate() error {
	if c.Agent == nil {
		return errors.New("agent is required")
	}
	if c.Modes == nil {
		return errors.New("mode registry is required")
	}
	if c.Conversations == nil {
		return errors.New("conversation store is required")
	}
	if c.Preferences == nil {
		return errors.New("preference store is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Runner executes turns.
type Runner struct {
	agent         *agent.Agent
	modes         *mode.Registry
	conversations conversation.Store
	preferences   prefs.Store
	logger        log.Logger
	threshold     float64
}

// NewRunner validates cfg and builds a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid turn config: %w", err)
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Runner{
		agent:         cfg.Agent,
		modes:         cfg.Modes,
		conversations: cfg.Conversations,
		preferences:   cfg.Preferences,
		logger:        cfg.Logger,
		threshold:     threshold,
	}, nil
}

// Request identifies one turn. An empty ConversationID starts a new
// conversation; an empty ModeID lets the runner resolve the mode itself.
type Request struct {
	UserID         string
	ConversationID string
	ModeID         string
	Input          string
}

// Outcome summarizes a finished turn for non-streaming callers.
type Outcome struct {
	ConversationID string
	Title          string
	FinalText      string
	Steps          int
	Mode           string
	Confidence     float64
}

// Run executes one turn, emitting events to sink as they are produced. The
// stream always ends with exactly one terminal event, and everything emitted
// before a failure is persisted on the conversation with the failure noted.
func (r *Runner) Run(ctx context.Context, req Request, sink stream.Sink) (*Outcome, error) {
	seq := stream.NewSequencer(sink)

	input := strings.TrimSpace(req.Input)
	if input == "" {
		_ = seq.Fail(ctx, stream.CodeValidation, errEmptyInput.Error())
		return nil, errEmptyInput
	}
	if req.UserID == "" {
		_ = seq.Fail(ctx, stream.CodeValidation, errNoUser.Error())
		return nil, errNoUser
	}

	conv, created, err := r.loadConversation(ctx, req)
	if err != nil {
		_ = seq.Fail(ctx, errorCode(err), err.Error())
		return nil, err
	}

	m, confidence, err := r.resolveMode(ctx, req.UserID, req.ModeID, input)
	if err != nil {
		_ = seq.Fail(ctx, errorCode(err), err.Error())
		return nil, err
	}

	r.logger.Debug("turn started",
		"conversation_id", conv.ID,
		"mode", m.Name,
		"confidence", confidence,
	)

	col := newCollector(seq)
	result, runErr := r.agent.Run(ctx, agent.Request{
		System:  m.Prompt.Render(),
		History: conversation.History(conv.Messages),
		Input:   input,
	}, col)

	deriveTitle := created || len(conv.Messages) == 0

	assistant := conversation.AssistantMessage(col.Parts()...)
	if runErr != nil {
		assistant.Error = runErr.Error()
	}
	conv.Messages = append(conv.Messages, conversation.UserMessage(input), assistant)
	if deriveTitle {
		conv.Title = conversation.Title(conv.Messages)
	}

	// Persist on a detached context so a canceled turn still keeps its
	// partial transcript.
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelSave()
	if err := r.conversations.Save(saveCtx, conv); err != nil {
		r.logger.Error("saving conversation failed",
			"conversation_id", conv.ID,
			"error", err,
		)
		if runErr == nil {
			runErr = fmt.Errorf("saving conversation: %w", err)
		}
	}

	if runErr != nil {
		_ = seq.Fail(ctx, errorCode(runErr), runErr.Error())
		return nil, runErr
	}

	if err := seq.Done(ctx, conv.ID, conv.Title); err != nil {
		return nil, err
	}

	r.logger.Info("turn completed",
		"conversation_id", conv.ID,
		"mode", m.Name,
		"steps", result.Steps,
	)

	return &Outcome{
		ConversationID: conv.ID,
		Title:          conv.Title,
		FinalText:      result.FinalText,
		Steps:          result.Steps,
		Mode:           m.Name,
		Confidence:     confidence,
	}, nil
}

func (r *Runner) loadConversation(ctx context.Context, req Request) (*conversation.Conversation, bool, error) {
	if req.ConversationID == "" {
		return conversation.New(req.UserID), true, nil
	}
	conv, err := r.conversations.Get(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, false, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, false, nil
}

// resolveMode picks the mode for a turn. An explicit override wins; otherwise
// the classifier runs when auto-detect is on, then the user's configured
// default, then the registry default.
func (r *Runner) resolveMode(ctx context.Context, userID, modeID, query string) (*mode.Mode, float64, error) {
	if modeID != "" {
		m, err := r.modes.Get(modeID)
		if err != nil {
			return nil, 0, fmt.Errorf("resolving mode override: %w", err)
		}
		return m, 0, nil
	}

	p, err := r.preferences.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("loading preferences failed, using defaults", "error", err)
		p = prefs.Defaults()
	}

	if p.AutoDetect {
		if match := mode.Classify(query, r.modes.List()); match.Mode != nil && match.Confidence >= r.threshold {
			r.logger.Debug("query classified",
				"mode", match.Mode.Name,
				"confidence", match.Confidence,
				"matched", match.Matched,
			)
			return match.Mode, match.Confidence, nil
		}
	}

	if p.DefaultModeID != "" {
		if m, err := r.modes.Get(p.DefaultModeID); err == nil {
			return m, 0, nil
		}
		// The preferred mode was deleted since the preference was written.
		r.logger.Warn("preferred default mode missing, falling back", "mode_id", p.DefaultModeID)
	}

	return r.modes.Default(), 0, nil
}

// errorCode maps a turn failure onto the stream error taxonomy.
func errorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return stream.CodeCanceled
	case errors.Is(err, mode.ErrNotFound), errors.Is(err, conversation.ErrNotFound):
		return stream.CodeNotFound
	case errors.Is(err, errEmptyInput), errors.Is(err, errNoUser):
		return stream.CodeValidation
	case errors.Is(err, agent.ErrModel):
		return stream.CodeBackendUnavailable
	default:
		return stream.CodeInternal
	}
}
