package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/store"
	"github.com/lecture-chat/cli/internal/vectorindex"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}

func (f *fixedEmbedder) Model() string { return "fixed" }

type fakeGenerator struct {
	fn     func(ctx context.Context) (string, error)
	prompt string
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	return g.fn(ctx)
}

func reply(s string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return s, nil }
}

type fixture struct {
	answerer  *Answerer
	videos    *store.Memory
	index     *vectorindex.Index
	generator *fakeGenerator
}

func newFixture(t *testing.T, topK int, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		videos:    store.NewMemory(),
		index:     vectorindex.New(vectorindex.NewMemory()),
		generator: &fakeGenerator{fn: reply("Entropy was defined at [1:05].")},
	}
	retriever := NewRetriever(&fixedEmbedder{vec: []float32{1, 0}}, f.index, topK)
	f.answerer = NewAnswerer(f.videos, retriever, NewContextBuilder(0, 5), f.generator, timeout, nil)
	return f
}

func (f *fixture) addVideo(t *testing.T, id string, status model.Status, duration float64, chunks ...model.Chunk) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.videos.CreateVideo(ctx, &model.VideoRecord{ID: id, Filename: id + ".mp4", Status: status, Duration: duration}))
	if len(chunks) > 0 {
		require.NoError(t, f.index.Upsert(ctx, id, chunks))
	}
}

func lectureChunk(videoID string, index int, start, end float64, text string, vec ...float32) model.Chunk {
	return model.Chunk{
		ID:        videoID + "-" + text,
		VideoID:   videoID,
		Index:     index,
		Text:      text,
		Start:     start,
		End:       end,
		Embedding: vec,
	}
}

func TestAskReturnsRetrievedSources(t *testing.T) {
	f := newFixture(t, 3, 0)
	f.addVideo(t, "v", model.StatusCompleted, 600,
		lectureChunk("v", 0, 0, 30, "intro to thermodynamics", 0, 1),
		lectureChunk("v", 1, 60, 95, "entropy is a measure of disorder", 1, 0),
	)

	res, err := f.answerer.Ask(context.Background(), "v", "What is entropy?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Entropy was defined at [1:05].", res.Answer)
	assert.False(t, res.Degraded)
	// k=3 against two chunks returns both
	require.Len(t, res.Sources, 2)
	assert.Equal(t, 1, res.Sources[0].Index)
	assert.Equal(t, "1:00 - 1:35", res.Sources[0].FormattedTimestamp)
	assert.InDelta(t, 1.0, res.Sources[0].RelevanceScore, 1e-9)
	assert.Equal(t, 0.0, res.Sources[1].RelevanceScore)
	assert.InDelta(t, 0.5, res.ConfidenceScore, 1e-9)
	assert.GreaterOrEqual(t, res.ProcessingTime, 0.0)

	assert.Contains(t, f.generator.prompt, "[1:00 - 1:35] entropy is a measure of disorder")
	assert.Contains(t, f.generator.prompt, "Student Question: What is entropy?")
}

func TestAskNotReady(t *testing.T) {
	f := newFixture(t, 3, 0)
	f.addVideo(t, "v", model.StatusTranscribing, 600)

	_, err := f.answerer.Ask(context.Background(), "v", "What is entropy?", nil)
	var nr *model.NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, model.StatusTranscribing, nr.Status)
	assert.Equal(t, 0, f.generator.calls)

	_, err = f.answerer.Ask(context.Background(), "missing", "What is entropy?", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.answerer.Ask(context.Background(), "v", "   ", nil)
	assert.True(t, model.IsValidation(err))
}

func TestAskGenerationTimeoutDegrades(t *testing.T) {
	f := newFixture(t, 3, 20*time.Millisecond)
	f.addVideo(t, "v", model.StatusCompleted, 600, lectureChunk("v", 0, 0, 30, "intro", 1, 0))
	f.generator.fn = func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	res, err := f.answerer.Ask(context.Background(), "v", "What is entropy?", nil)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, FallbackAnswer, res.Answer)
	assert.NotEmpty(t, res.Sources)
	assert.Equal(t, 0.0, res.ConfidenceScore)
}

func TestAskDegradedOnErrorOrEmpty(t *testing.T) {
	for name, fn := range map[string]func(context.Context) (string, error){
		"error": func(context.Context) (string, error) { return "", errors.New("model crashed") },
		"empty": reply("  \n"),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 3, 0)
			f.addVideo(t, "v", model.StatusCompleted, 600, lectureChunk("v", 0, 0, 30, "intro", 1, 0))
			f.generator.fn = fn

			res, err := f.answerer.Ask(context.Background(), "v", "q?", nil)
			require.NoError(t, err)
			assert.True(t, res.Degraded)
			assert.Equal(t, FallbackAnswer, res.Answer)
			assert.Len(t, res.Sources, 1)
		})
	}
}

func TestAskWithoutChunksSkipsGeneration(t *testing.T) {
	f := newFixture(t, 3, 0)
	f.addVideo(t, "v", model.StatusCompleted, 600)

	res, err := f.answerer.Ask(context.Background(), "v", "anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Equal(t, 0, f.generator.calls)
}

func TestBuildPromptHistory(t *testing.T) {
	cb := NewContextBuilder(0, 2)
	history := []model.ConversationTurn{
		{Role: model.RoleUser, Content: "first question"},
		{Role: model.RoleAssistant, Content: "first answer"},
		{Role: model.RoleUser, Content: "second question"},
	}
	hits := []vectorindex.Hit{{Chunk: lectureChunk("v", 0, 3725, 3790, "late material")}}

	prompt := cb.BuildPrompt(hits, history, "third question")
	assert.NotContains(t, prompt, "first question")
	assert.Contains(t, prompt, "Previous Conversation:\nAssistant: first answer\nHuman: second question")
	assert.Contains(t, prompt, "[1:02:05 - 1:03:10] late material")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
	assert.Contains(t, prompt, "6. Keep responses focused and concise but thorough")

	assert.NotContains(t, cb.BuildPrompt(hits, nil, "q"), "Previous Conversation")
}

func TestBuildContextTruncates(t *testing.T) {
	cb := NewContextBuilder(5, 0)
	hits := []vectorindex.Hit{{Chunk: lectureChunk("v", 0, 0, 1, strings.Repeat("é", 40))}}
	got := cb.BuildContext(hits)
	assert.True(t, strings.HasSuffix(got, "[Context truncated...]"))
	assert.True(t, len(got) < 60)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, 3, 0)
	var chunks []model.Chunk
	for i := 0; i < 12; i++ {
		chunks = append(chunks, lectureChunk("v", i, float64(i*10), float64(i*10+10), strings.Repeat("x", i+1), 1, float32(i)))
	}
	f.addVideo(t, "v", model.StatusCompleted, 600, chunks...)

	got, err := f.answerer.Search(context.Background(), "v", "x", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultSearchLimit)
	assert.Equal(t, 0, got[0].Index)

	got, err = f.answerer.Search(context.Background(), "v", "x", 500)
	require.NoError(t, err)
	assert.Len(t, got, 12)

	_, err = f.answerer.Search(context.Background(), "v", "", 5)
	assert.True(t, model.IsValidation(err))
	assert.Equal(t, 0, f.generator.calls)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t, 3, 0)
	f.addVideo(t, "short", model.StatusUploaded, 1800)
	f.addVideo(t, "long", model.StatusCompleted, 5400)

	got, err := f.answerer.Suggestions(context.Background(), "short")
	require.NoError(t, err)
	assert.Len(t, got, 6)

	got, err = f.answerer.Suggestions(context.Background(), "long")
	require.NoError(t, err)
	assert.Len(t, got, 9)
	assert.Equal(t, "What was discussed in the first hour?", got[6])

	_, err = f.answerer.Suggestions(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestConfidenceCap(t *testing.T) {
	assert.Equal(t, 0.95, Confidence([]model.Source{{RelevanceScore: 1}, {RelevanceScore: 0.99}}))
	assert.Equal(t, 0.0, Confidence(nil))
}

// reclaimingEmbedder starts a new attempt on the video while the question is embedded
type reclaimingEmbedder struct {
	fixedEmbedder
	videos *store.Memory
	index  *vectorindex.Index
	id     string
}

func (e *reclaimingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if _, err := e.videos.ClaimAttempt(ctx, e.id); err != nil {
		return nil, err
	}
	if err := e.index.Delete(ctx, e.id); err != nil {
		return nil, err
	}
	return e.fixedEmbedder.Embed(ctx, text)
}

func TestAskAndSearchNotReadyWhenRetriedMidway(t *testing.T) {
	for _, op := range []string{"ask", "search"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t, 3, 0)
			f.addVideo(t, "v", model.StatusCompleted, 600,
				lectureChunk("v", 0, 0, 30, "entropy is a measure of disorder", 1, 0))

			emb := &reclaimingEmbedder{fixedEmbedder: fixedEmbedder{vec: []float32{1, 0}}, videos: f.videos, index: f.index, id: "v"}
			a := NewAnswerer(f.videos, NewRetriever(emb, f.index, 3), NewContextBuilder(0, 5), f.generator, 0, nil)

			var err error
			if op == "ask" {
				_, err = a.Ask(context.Background(), "v", "What is entropy?", nil)
			} else {
				_, err = a.Search(context.Background(), "v", "entropy", 5)
			}
			var nr *model.NotReadyError
			require.ErrorAs(t, err, &nr)
			assert.Equal(t, model.StatusProcessing, nr.Status)
			assert.Equal(t, 0, f.generator.calls)
		})
	}
}
