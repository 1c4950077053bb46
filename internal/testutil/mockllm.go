package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Registered names of the test doubles. Point config at these to run the
// full stack without a provider.
const (
	MockModelName    = "mock/model"
	MockEmbedderName = "mock/embedder"
)

// MockLLM is a deterministic genkit model. It matches the latest user message
// against registered substring rules, first match wins; unmatched messages get
// the fallback text. Safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []rule
	fallback string
	calls    []MockCall
}

type rule struct {
	pattern  string // lowercased substring of the user message
	text     string
	requests []*ai.ToolRequest
}

// MockCall records one model invocation.
type MockCall struct {
	UserMessage string
	Response    string
}

// NewMockLLM returns a mock that answers fallback when no rule matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// Answer registers a substring rule returning plain text.
func (m *MockLLM) Answer(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{pattern: strings.ToLower(pattern), text: text})
}

// AnswerWithTools registers a substring rule returning tool requests alongside
// the text.
func (m *MockLLM) AnswerWithTools(pattern string, requests []*ai.ToolRequest, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{pattern: strings.ToLower(pattern), text: text, requests: requests})
}

// Calls returns a copy of the recorded invocations.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Register defines the mock on g and returns the model reference.
func (m *MockLLM) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Deterministic test model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}

	m.mu.Lock()
	var matched *rule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}
	text := m.fallback
	if matched != nil {
		text = matched.text
	}
	m.calls = append(m.calls, MockCall{UserMessage: userText, Response: text})
	m.mu.Unlock()

	var parts []*ai.Part
	if matched != nil {
		for _, tr := range matched.requests {
			parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
		}
	}
	if text != "" {
		if cb != nil {
			if err := cb(ctx, &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(text)}}); err != nil {
				return nil, err
			}
		}
		parts = append(parts, ai.NewTextPart(text))
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{Role: ai.RoleModel, Content: parts},
	}, nil
}

// MockEmbedder is a deterministic genkit embedder. Unmapped content embeds to
// a unit vector derived from its SHA-256 hash, so equal text always lands on
// the same point; SetVector pins exact vectors when a test needs controlled
// similarity. Safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder returns a mock producing dim-dimensional vectors.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float32), dim: dim}
}

// SetVector pins the vector returned for content.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// Register defines the mock on g and returns the embedder reference.
func (e *MockEmbedder) Register(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, MockEmbedderName, &ai.EmbedderOptions{
		Label:      "Deterministic test embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.VectorFor(documentText(doc))}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// VectorFor returns the vector the embedder produces for content. Tests
// seeding index rows use it so stored vectors line up with query vectors.
func (e *MockEmbedder) VectorFor(content string) []float32 {
	e.mu.Lock()
	v, ok := e.vectors[content]
	e.mu.Unlock()
	if ok {
		return v
	}
	return hashVector(content, e.dim)
}

func documentText(doc *ai.Document) string {
	var b strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// hashVector maps content onto the unit sphere via its SHA-256 digest.
func hashVector(content string, dim int) []float32 {
	digest := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(digest)
		bits := binary.LittleEndian.Uint32([]byte{
			digest[idx%32],
			digest[(idx+1)%32],
			digest[(idx+2)%32],
			digest[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
