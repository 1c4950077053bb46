package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/docketbot/docket/internal/config"
	"github.com/docketbot/docket/internal/log"
)

type fakeStructured struct {
	issues []Issue
	err    error

	calls    int
	gotQuery string
	gotLimit int
}

func (f *fakeStructured) Search(_ context.Context, query string, limit int) ([]Issue, error) {
	f.calls++
	f.gotQuery = query
	f.gotLimit = limit
	return f.issues, f.err
}

type fakeSemantic struct {
	issues []Issue
	err    error

	calls    int
	gotQuery SemanticQuery
}

func (f *fakeSemantic) Search(_ context.Context, q SemanticQuery) ([]Issue, error) {
	f.calls++
	f.gotQuery = q
	return f.issues, f.err
}

func newTestGateway(structured *fakeStructured, semantic *fakeSemantic) *Gateway {
	return NewGateway(structured, semantic, config.SearchConfig{DefaultLimit: 10, MaxLimit: 50}, log.NewNop())
}

func TestGatewayStructured_Success(t *testing.T) {
	structured := &fakeStructured{issues: []Issue{
		{Key: "DS-1", Summary: "Crash on export"},
		{Key: "DS-2", Summary: "Crash on import"},
	}}
	semantic := &fakeSemantic{}
	g := newTestGateway(structured, semantic)

	res := g.Structured(context.Background(), `project = DS`, 25)

	if res.Error != "" || res.Note != "" {
		t.Errorf("unexpected error/note: %+v", res)
	}
	if res.Source != SourceStructured || res.Count != 2 {
		t.Errorf("source/count = %q/%d", res.Source, res.Count)
	}
	if diff := cmp.Diff(structured.issues, res.Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
	if structured.gotLimit != 25 {
		t.Errorf("limit = %d, want 25", structured.gotLimit)
	}
	if semantic.calls != 0 {
		t.Error("semantic backend must not run when structured search succeeds")
	}
}

func TestGatewayStructured_FallsBackToSemantic(t *testing.T) {
	structured := &fakeStructured{err: errors.New("tracker responded 400: invalid JQL")}
	semantic := &fakeSemantic{issues: []Issue{{Key: "DS-7", Summary: "Export crash", Assignee: "Jane Doe"}}}
	g := newTestGateway(structured, semantic)

	res := g.Structured(context.Background(), `project = DS AND assignee == "Jane Doe" AND status = Open`, 5)

	if res.Error != "" {
		t.Fatalf("fallback should succeed, got error %q", res.Error)
	}
	if res.Source != SourceSemantic {
		t.Errorf("source = %q, want %q", res.Source, SourceSemantic)
	}
	if res.Note != "Results from vector search (JQL unavailable)" {
		t.Errorf("note = %q", res.Note)
	}
	if res.Count != 1 || len(res.Issues) != 1 {
		t.Errorf("count = %d, issues = %d", res.Count, len(res.Issues))
	}

	// The retry is narrowed to the original query's assignee.
	if semantic.gotQuery.Assignee != "Jane Doe" {
		t.Errorf("semantic assignee = %q, want %q", semantic.gotQuery.Assignee, "Jane Doe")
	}
	if semantic.gotQuery.Text != "project DS status Open" {
		t.Errorf("semantic text = %q", semantic.gotQuery.Text)
	}
	if semantic.gotQuery.Limit != 5 {
		t.Errorf("semantic limit = %d, want 5", semantic.gotQuery.Limit)
	}
	if structured.calls != 1 || semantic.calls != 1 {
		t.Errorf("calls = %d structured, %d semantic; want 1 each", structured.calls, semantic.calls)
	}
}

func TestGatewayStructured_BothBackendsFail(t *testing.T) {
	structured := &fakeStructured{err: errors.New("tracker unavailable")}
	semantic := &fakeSemantic{err: errors.New("vector index not configured")}
	g := newTestGateway(structured, semantic)

	res := g.Structured(context.Background(), `project = DS`, 0)

	if res.Error == "" {
		t.Fatal("expected an error result")
	}
	if !strings.Contains(res.Error, "tracker unavailable") || !strings.Contains(res.Error, "vector index not configured") {
		t.Errorf("error should mention both failures: %q", res.Error)
	}
	if res.Issues == nil || len(res.Issues) != 0 {
		t.Errorf("issues should be an empty slice, got %#v", res.Issues)
	}
	if semantic.calls != 1 {
		t.Errorf("semantic retried %d times, want exactly 1", semantic.calls)
	}
}

func TestGatewayStructured_NoFallbackWhenCanceled(t *testing.T) {
	structured := &fakeStructured{err: context.Canceled}
	semantic := &fakeSemantic{}
	g := newTestGateway(structured, semantic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := g.Structured(ctx, `project = DS`, 10)

	if res.Error == "" {
		t.Error("canceled search should report an error")
	}
	if semantic.calls != 0 {
		t.Error("canceled search must not retry semantically")
	}
}

func TestGatewayStructured_EmptyQuery(t *testing.T) {
	structured := &fakeStructured{}
	semantic := &fakeSemantic{}
	g := newTestGateway(structured, semantic)

	res := g.Structured(context.Background(), "   ", 10)

	if res.Error == "" {
		t.Error("empty query should report an error")
	}
	if structured.calls != 0 || semantic.calls != 0 {
		t.Error("empty query must not reach the backends")
	}
}

func TestGatewayLimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: 10},
		{name: "negative uses default", limit: -3, want: 10},
		{name: "in range passes through", limit: 17, want: 17},
		{name: "oversized clamps to max", limit: 999, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			structured := &fakeStructured{}
			g := newTestGateway(structured, &fakeSemantic{})

			g.Structured(context.Background(), `project = DS`, tt.limit)
			if structured.gotLimit != tt.want {
				t.Errorf("limit = %d, want %d", structured.gotLimit, tt.want)
			}
		})
	}
}

func TestGatewaySemantic_Direct(t *testing.T) {
	semantic := &fakeSemantic{issues: []Issue{{Key: "DS-3", Summary: "Login broken"}}}
	g := newTestGateway(&fakeStructured{}, semantic)

	res := g.Semantic(context.Background(), SemanticQuery{Text: "login problems"})

	if res.Error != "" || res.Note != "" {
		t.Errorf("unexpected error/note: %+v", res)
	}
	if res.Source != SourceSemantic || res.Count != 1 {
		t.Errorf("source/count = %q/%d", res.Source, res.Count)
	}
	if semantic.gotQuery.Limit != 10 {
		t.Errorf("limit = %d, want default 10", semantic.gotQuery.Limit)
	}
}

func TestGatewaySemantic_Error(t *testing.T) {
	semantic := &fakeSemantic{err: errors.New("embedding failed")}
	g := newTestGateway(&fakeStructured{}, semantic)

	res := g.Semantic(context.Background(), SemanticQuery{Text: "login problems"})

	if res.Error == "" {
		t.Error("backend failure should surface in the result")
	}
	if res.Issues == nil {
		t.Error("issues should be an empty slice, not nil")
	}
}

func TestGatewaySemantic_EmptyQuery(t *testing.T) {
	semantic := &fakeSemantic{}
	g := newTestGateway(&fakeStructured{}, semantic)

	res := g.Semantic(context.Background(), SemanticQuery{Text: "  "})

	if res.Error == "" {
		t.Error("empty query should report an error")
	}
	if semantic.calls != 0 {
		t.Error("empty query must not reach the backend")
	}
}
