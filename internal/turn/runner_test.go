package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/docketbot/docket/internal/agent"
	"github.com/docketbot/docket/internal/conversation"
	"github.com/docketbot/docket/internal/log"
	"github.com/docketbot/docket/internal/mode"
	"github.com/docketbot/docket/internal/prefs"
	"github.com/docketbot/docket/internal/search"
	"github.com/docketbot/docket/internal/stream"
	"github.com/docketbot/docket/internal/tools"
)

// scriptedModel plays canned responses in call order and falls back to a
// plain text answer when the script runs out.
type scriptedModel struct {
	mu        sync.Mutex
	calls     int
	responses []*ai.ModelResponse
	errs      []error
}

func (m *scriptedModel) generate(_ context.Context, _ ...ai.GenerateOption) (*ai.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) && m.responses[i] != nil {
		return m.responses[i], nil
	}
	return textResponse("out of script"), nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func textResponse(text string) *ai.ModelResponse {
	return &ai.ModelResponse{Message: &ai.Message{
		Role:    ai.RoleModel,
		Content: []*ai.Part{ai.NewTextPart(text)},
	}}
}

func toolResponse(name, ref string, input map[string]any) *ai.ModelResponse {
	return &ai.ModelResponse{Message: &ai.Message{
		Role: ai.RoleModel,
		Content: []*ai.Part{{
			Kind:        ai.PartToolRequest,
			ToolRequest: &ai.ToolRequest{Name: name, Ref: ref, Input: input},
		}},
	}}
}

// stubDispatcher returns a fixed result and optionally runs a hook on each
// call, which cancellation tests use to pull the plug mid-turn.
type stubDispatcher struct {
	mu         sync.Mutex
	calls      int
	result     tools.Result
	onDispatch func()
}

func (d *stubDispatcher) Dispatch(_ context.Context, _ string, _ any) tools.Result {
	d.mu.Lock()
	d.calls++
	fn := d.onDispatch
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
	return d.result
}

func (d *stubDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fixture struct {
	runner   *Runner
	model    *scriptedModel
	dispatch *stubDispatcher
	convs    *conversation.MemStore
	prefs    *prefs.MemStore
	modes    *mode.Registry
}

func newFixture(t *testing.T, model *scriptedModel, dispatch *stubDispatcher) *fixture {
	t.Helper()
	logger := log.NewNop()

	modes, err := mode.NewRegistry(context.Background(), mode.NewMemStore(), logger)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	a, err := agent.New(agent.Config{
		Generate: model.generate,
		Dispatch: dispatch,
		Logger:   logger,
		MaxSteps: 3,
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	convs := conversation.NewMemStore()
	preferences := prefs.NewMemStore()
	r, err := NewRunner(Config{
		Agent:         a,
		Modes:         modes,
		Conversations: convs,
		Preferences:   preferences,
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return &fixture{runner: r, model: model, dispatch: dispatch, convs: convs, prefs: preferences, modes: modes}
}

// singleTerminal asserts the stream ends with exactly one terminal event of
// the wanted type and returns it.
func singleTerminal(t *testing.T, events []stream.Event, want stream.EventType) stream.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	terminals := 0
	for _, ev := range events {
		if ev.Type.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("stream has %d terminal events, want exactly 1", terminals)
	}
	last := events[len(events)-1]
	if last.Type != want {
		t.Fatalf("terminal = %q, want %q", last.Type, want)
	}
	return last
}

func modeID(t *testing.T, r *mode.Registry, name string) string {
	t.Helper()
	for _, m := range r.List() {
		if m.Name == name {
			return m.ID
		}
	}
	t.Fatalf("mode %q not registered", name)
	return ""
}

func TestRunFirstTurn(t *testing.T) {
	f := newFixture(t,
		&scriptedModel{responses: []*ai.ModelResponse{textResponse("DS-42 is in code review.")}},
		&stubDispatcher{},
	)
	rec := stream.NewRecorder()

	out, err := f.runner.Run(context.Background(), Request{
		UserID: "u1",
		Input:  "What is the status of DS-42?",
	}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.ConversationID == "" {
		t.Error("outcome has no conversation id")
	}
	if out.Title != "What is the status of DS-42?" {
		t.Errorf("title = %q", out.Title)
	}
	if out.FinalText != "DS-42 is in code review." {
		t.Errorf("final text = %q", out.FinalText)
	}
	if out.Mode != "general" {
		t.Errorf("mode = %q, want the registry default", out.Mode)
	}

	done := singleTerminal(t, rec.Events(), stream.TypeDone)
	if done.ConversationID != out.ConversationID || done.Title != out.Title {
		t.Errorf("done event = %+v, want outcome ids", done)
	}

	conv, err := f.convs.Get(context.Background(), "u1", out.ConversationID)
	if err != nil {
		t.Fatalf("Get saved conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("saved %d messages, want user + assistant", len(conv.Messages))
	}
	if conv.Messages[0].Role != conversation.RoleUser || conv.Messages[1].Role != conversation.RoleAssistant {
		t.Errorf("roles = %q, %q", conv.Messages[0].Role, conv.Messages[1].Role)
	}
	if got := conv.Messages[1].Text(); got != "DS-42 is in code review." {
		t.Errorf("assistant text = %q", got)
	}
}

func TestRunClassifiesBugQuery(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	rec := stream.NewRecorder()

	out, err := f.runner.Run(context.Background(), Request{
		UserID: "u1",
		Input:  "list all bugs in DS",
	}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Mode != "bug-triage" {
		t.Errorf("mode = %q, want bug-triage", out.Mode)
	}
	if out.Confidence < 0.6 {
		t.Errorf("confidence = %v, want >= 0.6", out.Confidence)
	}
}

func TestRunModeOverride(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	id := modeID(t, f.modes, "release-notes")

	// The query would classify as Bug Triage; the override must win.
	out, err := f.runner.Run(context.Background(), Request{
		UserID: "u1",
		ModeID: id,
		Input:  "list all bugs in DS",
	}, stream.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Mode != "release-notes" {
		t.Errorf("mode = %q, want override", out.Mode)
	}
	if out.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 for explicit override", out.Confidence)
	}
}

func TestRunModeOverrideUnknown(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	rec := stream.NewRecorder()

	_, err := f.runner.Run(context.Background(), Request{
		UserID: "u1",
		ModeID: "no-such-mode",
		Input:  "hello",
	}, rec)
	if !errors.Is(err, mode.ErrNotFound) {
		t.Fatalf("Run error = %v, want mode.ErrNotFound", err)
	}

	terminal := singleTerminal(t, rec.Events(), stream.TypeError)
	if terminal.Error.Code != stream.CodeNotFound {
		t.Errorf("code = %q, want %q", terminal.Error.Code, stream.CodeNotFound)
	}
	if f.model.callCount() != 0 {
		t.Error("model must not be called when the mode override is invalid")
	}
	if got, _ := f.convs.List(context.Background(), "u1"); len(got) != 0 {
		t.Error("nothing should be persisted for a failed mode lookup")
	}
}

func TestRunPreferredDefaultMode(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	id := modeID(t, f.modes, "sprint-planning")
	ctx := context.Background()

	err := f.prefs.Put(ctx, "u1", prefs.Preferences{AutoDetect: false, DefaultModeID: id})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// With auto-detect off, even a classifiable query lands on the
	// configured default.
	out, err := f.runner.Run(ctx, Request{UserID: "u1", Input: "list all bugs in DS"}, stream.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Mode != "sprint-planning" {
		t.Errorf("mode = %q, want the preferred default", out.Mode)
	}
}

func TestRunStaleDefaultModeFallsBack(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	ctx := context.Background()

	err := f.prefs.Put(ctx, "u1", prefs.Preferences{AutoDetect: false, DefaultModeID: "deleted-mode"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := f.runner.Run(ctx, Request{UserID: "u1", Input: "hello"}, stream.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Mode != "general" {
		t.Errorf("mode = %q, want registry default after stale preference", out.Mode)
	}
}

func TestRunContinuesConversation(t *testing.T) {
	f := newFixture(t, &scriptedModel{responses: []*ai.ModelResponse{textResponse("Still open.")}}, &stubDispatcher{})
	ctx := context.Background()

	conv := conversation.New("u1")
	conv.Title = "Existing title"
	conv.Messages = []conversation.Message{
		conversation.UserMessage("What is DS-42?"),
		conversation.AssistantMessage(conversation.TextPart("A login bug.")),
	}
	if err := f.convs.Create(ctx, conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := stream.NewRecorder()
	out, err := f.runner.Run(ctx, Request{
		UserID:         "u1",
		ConversationID: conv.ID,
		Input:          "Is it fixed yet?",
	}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ConversationID != conv.ID {
		t.Errorf("conversation id = %q, want %q", out.ConversationID, conv.ID)
	}
	if out.Title != "Existing title" {
		t.Errorf("title = %q, continuation must not retitle", out.Title)
	}

	saved, err := f.convs.Get(ctx, "u1", conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(saved.Messages) != 4 {
		t.Errorf("saved %d messages, want 4", len(saved.Messages))
	}
}

func TestRunUnknownConversation(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	rec := stream.NewRecorder()

	_, err := f.runner.Run(context.Background(), Request{
		UserID:         "u1",
		ConversationID: "missing",
		Input:          "hello",
	}, rec)
	if !errors.Is(err, conversation.ErrNotFound) {
		t.Fatalf("Run error = %v, want conversation.ErrNotFound", err)
	}

	terminal := singleTerminal(t, rec.Events(), stream.TypeError)
	if terminal.Error.Code != stream.CodeNotFound {
		t.Errorf("code = %q, want %q", terminal.Error.Code, stream.CodeNotFound)
	}
}

func TestRunEmptyInput(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, &stubDispatcher{})
	rec := stream.NewRecorder()

	_, err := f.runner.Run(context.Background(), Request{UserID: "u1", Input: "   "}, rec)
	if err == nil {
		t.Fatal("Run succeeded with blank input")
	}

	terminal := singleTerminal(t, rec.Events(), stream.TypeError)
	if terminal.Error.Code != stream.CodeValidation {
		t.Errorf("code = %q, want %q", terminal.Error.Code, stream.CodeValidation)
	}
	if f.model.callCount() != 0 {
		t.Error("model must not be called for blank input")
	}
}

func TestRunToolRoundPersistsParts(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{
		toolResponse("structured_search", "r1", map[string]any{"query": "project = DS AND type = Bug", "limit": 10}),
		textResponse("Found one open bug."),
	}}
	dispatch := &stubDispatcher{result: tools.Result{
		Status: tools.StatusSuccess,
		Data: search.Result{
			Issues: []search.Issue{{Key: "DS-7", Summary: "Login fails on SSO"}},
			Count:  1,
			Source: search.SourceStructured,
		},
	}}
	f := newFixture(t, model, dispatch)
	rec := stream.NewRecorder()

	out, err := f.runner.Run(context.Background(), Request{UserID: "u1", Input: "list all bugs in DS"}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	singleTerminal(t, rec.Events(), stream.TypeDone)

	conv, err := f.convs.Get(context.Background(), "u1", out.ConversationID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	assistant := conv.Messages[1]
	if assistant.Error != "" {
		t.Errorf("assistant error = %q, want none", assistant.Error)
	}

	wantTypes := []string{conversation.PartTool, conversation.PartArtifact, conversation.PartText}
	if len(assistant.Parts) != len(wantTypes) {
		t.Fatalf("assistant has %d parts (%+v), want %d", len(assistant.Parts), assistant.Parts, len(wantTypes))
	}
	for i, typ := range wantTypes {
		if assistant.Parts[i].Type != typ {
			t.Errorf("parts[%d].Type = %q, want %q", i, assistant.Parts[i].Type, typ)
		}
	}
	if tool := assistant.Parts[0].Tool; tool.Name != "structured_search" || len(tool.Result) == 0 {
		t.Errorf("tool part = %+v, want completed structured_search", tool)
	}
	if assistant.Parts[1].Artifact.Kind != "issue-table" {
		t.Errorf("artifact kind = %q", assistant.Parts[1].Artifact.Kind)
	}
}

func TestRunAgentFailurePersistsParts(t *testing.T) {
	model := &scriptedModel{
		responses: []*ai.ModelResponse{
			toolResponse("structured_search", "r1", map[string]any{"query": "project = DS", "limit": 5}),
		},
		errs: []error{nil, errors.New("invalid api key")},
	}
	f := newFixture(t, model, &stubDispatcher{result: tools.Result{
		Status: tools.StatusSuccess,
		Data:   search.Result{Source: search.SourceStructured},
	}})
	rec := stream.NewRecorder()

	_, err := f.runner.Run(context.Background(), Request{UserID: "u1", Input: "list all bugs in DS"}, rec)
	if !errors.Is(err, agent.ErrModel) {
		t.Fatalf("Run error = %v, want agent.ErrModel", err)
	}

	terminal := singleTerminal(t, rec.Events(), stream.TypeError)
	if terminal.Error.Code != stream.CodeBackendUnavailable {
		t.Errorf("code = %q, want %q", terminal.Error.Code, stream.CodeBackendUnavailable)
	}

	// The aborted turn still leaves the tool exchange on the conversation,
	// with the failure noted.
	convs, err := f.convs.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("stored %d conversations, want 1", len(convs))
	}
	conv, err := f.convs.Get(context.Background(), "u1", convs[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	assistant := conv.Messages[1]
	if assistant.Error == "" {
		t.Error("assistant message should note the failure")
	}
	if len(assistant.Parts) != 1 || assistant.Parts[0].Type != conversation.PartTool {
		t.Errorf("assistant parts = %+v, want the flushed tool part", assistant.Parts)
	}
	if conv.Title != "list all bugs in DS" {
		t.Errorf("title = %q, failed first turns still get titled", conv.Title)
	}
}

func TestRunCancelDuringTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &scriptedModel{responses: []*ai.ModelResponse{
		toolResponse("structured_search", "r1", map[string]any{"query": "project = DS", "limit": 5}),
	}}
	dispatch := &stubDispatcher{
		result:     tools.Result{Status: tools.StatusSuccess, Data: search.Result{Source: search.SourceStructured}},
		onDispatch: cancel,
	}
	f := newFixture(t, model, dispatch)
	rec := stream.NewRecorder()

	_, err := f.runner.Run(ctx, Request{UserID: "u1", Input: "list all bugs in DS"}, rec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	terminal := singleTerminal(t, rec.Events(), stream.TypeError)
	if terminal.Error.Code != stream.CodeCanceled {
		t.Errorf("code = %q, want %q", terminal.Error.Code, stream.CodeCanceled)
	}
	if f.model.callCount() != 1 {
		t.Errorf("model called %d times, want 1", f.model.callCount())
	}
	if f.dispatch.callCount() != 1 {
		t.Errorf("dispatch called %d times, want 1", f.dispatch.callCount())
	}

	// The in-flight tool exchange was flushed before the terminal, and
	// persisted despite the dead request context.
	types := rec.Types()
	want := []stream.EventType{stream.TypeToolCallStart, stream.TypeToolCallResult, stream.TypeError}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}

	convs, err := f.convs.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("stored %d conversations, want 1", len(convs))
	}
	conv, err := f.convs.Get(context.Background(), "u1", convs[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(conv.Messages[1].Error, "context canceled") {
		t.Errorf("assistant error = %q, want cancellation noted", conv.Messages[1].Error)
	}
}

// failingConvStore makes every Save fail while delegating the rest.
type failingConvStore struct {
	conversation.Store
	saveErr error
}

func (s *failingConvStore) Save(context.Context, *conversation.Conversation) error {
	return s.saveErr
}

func TestRunSaveFailure(t *testing.T) {
	model := &scriptedModel{responses: []*ai.ModelResponse{textResponse("fine")}}
	f := newFixture(t, model, &stubDispatcher{})

	broken, err := NewRunner(Config{
		Agent:         f.runner.agent,
		Modes:         f.modes,
		Conversations: &failingConvStore{Store: f.convs, saveErr: errors.New("disk full")},
		Preferences:   f.prefs,
		Logger:        log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	rec := stream.NewRecorder()
	_, err = broken.Run(context.Background(), Request{UserID: "u1", Input: "hello"}, rec)
	if err == nil || !strings.Contains(err.Error(), "saving conversation") {
		t.Fatalf("Run error = %v, want save failure", err)
	}

	terminal := singleTerminal(t, rec.Events(), stream.TypeError)
	if terminal.Error.Code != stream.CodeInternal {
		t.Errorf("code = %q, want %q", terminal.Error.Code, stream.CodeInternal)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	if _, err := NewRunner(Config{}); err == nil {
		t.Fatal("NewRunner accepted an empty config")
	}
}
