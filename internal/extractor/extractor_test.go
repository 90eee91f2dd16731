package extractor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/tramite-watcher/internal/models"
	"github.com/maltedev/tramite-watcher/internal/parser"
)

type MockStrategy struct {
	mock.Mock
	name models.StrategyName
}

func newMockStrategy(name models.StrategyName) *MockStrategy {
	return &MockStrategy{name: name}
}

func (m *MockStrategy) Name() models.StrategyName {
	return m.name
}

func (m *MockStrategy) Attempt(ctx context.Context, id models.TrackingID) (*models.Observation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Observation), args.Error(1)
}

// stageFallbackStrategy runs the real stage resolution over a fixed snapshot.
type stageFallbackStrategy struct {
	snap parser.Snapshot
}

func (s *stageFallbackStrategy) Name() models.StrategyName {
	return models.StrategyStages
}

func (s *stageFallbackStrategy) Attempt(context.Context, models.TrackingID) (*models.Observation, error) {
	p := parser.NewStatusParser(DefaultSelectors().ParserOptions())
	return observe(s.Name(), p.StageStatus, s.snap)
}

const trackingID = models.TrackingID("00123456789")

func TestExtractFirstSuccessWins(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyEndpoint)
	b := newMockStrategy(models.StrategyForm)

	a.On("Attempt", ctx, trackingID).Return(models.NewObservation("Inicio (id=1)", models.StrategyEndpoint, "{}"), nil)

	obs, err := New(slog.Default(), a, b).Extract(ctx, trackingID)

	require.NoError(t, err)
	assert.Equal(t, "Inicio (id=1)", obs.StatusText)
	assert.Equal(t, models.StrategyEndpoint, obs.StrategyUsed)
	a.AssertExpectations(t)
	b.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

func TestExtractFallsThroughToForm(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyEndpoint)
	b := newMockStrategy(models.StrategyForm)
	c := newMockStrategy(models.StrategyStages)

	a.On("Attempt", ctx, trackingID).Return(nil, failure(models.StrategyEndpoint, "response", errors.New("api code 1: captcha")))
	b.On("Attempt", ctx, trackingID).Return(&models.Observation{StatusText: "En producción", Evidence: "<html>"}, nil)

	obs, err := New(slog.Default(), a, b, c).Extract(ctx, trackingID)

	require.NoError(t, err)
	assert.Equal(t, "En producción", obs.StatusText)
	assert.Equal(t, models.StrategyForm, obs.StrategyUsed)
	c.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

func TestExtractStageTextScanFallback(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyEndpoint)
	b := newMockStrategy(models.StrategyForm)
	body := strings.Repeat("Consulte nuevamente más tarde. ", 40)
	c := &stageFallbackStrategy{snap: parser.Snapshot{HTML: "<html><body><p>" + body + "</p></body></html>"}}

	a.On("Attempt", ctx, trackingID).Return(nil, failure(models.StrategyEndpoint, "token", models.ErrChallenge))
	b.On("Attempt", ctx, trackingID).Return(nil, failure(models.StrategyForm, "input", errNoInput))

	obs, err := New(slog.Default(), a, b, c).Extract(ctx, trackingID)

	require.NoError(t, err)
	assert.Equal(t, models.StrategyStages, obs.StrategyUsed)
	assert.LessOrEqual(t, utf8.RuneCountInString(obs.StatusText), 500)
	assert.NotEmpty(t, obs.StatusText)
	assert.True(t, strings.HasPrefix(body, obs.StatusText))
}

func TestExtractBlankPageFails(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyEndpoint)
	b := newMockStrategy(models.StrategyForm)
	c := &stageFallbackStrategy{snap: parser.Snapshot{HTML: "<html><body>   </body></html>"}}

	a.On("Attempt", ctx, trackingID).Return(nil, errors.New("network down"))
	b.On("Attempt", ctx, trackingID).Return(nil, failure(models.StrategyForm, "extract", parser.ErrNoStatusText))

	_, err := New(slog.Default(), a, b, c).Extract(ctx, trackingID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExtraction))
	assert.True(t, errors.Is(err, parser.ErrNoStatusText))

	var se *StrategyError
	require.True(t, errors.As(err, &se))
}

func TestExtractEmptyObservationIsFailure(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyForm)
	a.On("Attempt", ctx, trackingID).Return(&models.Observation{StatusText: " \n "}, nil)

	_, err := New(slog.Default(), a).Extract(ctx, trackingID)

	assert.True(t, errors.Is(err, models.ErrExtraction))
	assert.True(t, errors.Is(err, errEmptyStatus))
}

func TestExtractStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newMockStrategy(models.StrategyEndpoint)

	_, err := New(slog.Default(), a).Extract(ctx, trackingID)

	assert.True(t, errors.Is(err, models.ErrExtraction))
	assert.True(t, errors.Is(err, context.Canceled))
	a.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

func TestExtractRejectsInvalidInput(t *testing.T) {
	_, err := New(slog.Default()).Extract(context.Background(), trackingID)
	assert.True(t, errors.Is(err, models.ErrExtraction))

	_, err = New(slog.Default(), newMockStrategy(models.StrategyForm)).Extract(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrExtraction))
}

func TestSelect(t *testing.T) {
	a := newMockStrategy(models.StrategyEndpoint)
	b := newMockStrategy(models.StrategyForm)
	available := map[models.StrategyName]Strategy{
		models.StrategyEndpoint: a,
		models.StrategyForm:     b,
	}

	selected, err := Select([]string{"form", "endpoint"}, available)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, models.StrategyForm, selected[0].Name())
	assert.Equal(t, models.StrategyEndpoint, selected[1].Name())

	_, err = Select([]string{"stages"}, available)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestStrategyErrorMessage(t *testing.T) {
	err := failure(models.StrategyForm, "input", errNoInput)
	assert.Equal(t, "form strategy failed at input: no tracking input control found", err.Error())
	assert.True(t, errors.Is(err, errNoInput))
}

type countingPacer struct {
	calls int
	err   error
}

func (p *countingPacer) Wait(context.Context) error {
	p.calls++
	return p.err
}

func TestExtractWaitsOnPacerBeforeEachAttempt(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyEndpoint)
	b := newMockStrategy(models.StrategyForm)
	a.On("Attempt", ctx, trackingID).Return(nil, failure(models.StrategyEndpoint, "token", errors.New("timeout")))
	b.On("Attempt", ctx, trackingID).Return(models.NewObservation("Inicio", models.StrategyForm, ""), nil)

	pacer := &countingPacer{}
	ext := New(slog.Default(), a, b)
	ext.SetPacer(pacer)

	_, err := ext.Extract(ctx, trackingID)
	require.NoError(t, err)
	assert.Equal(t, 2, pacer.calls)
}

func TestExtractStopsWhenPacerFails(t *testing.T) {
	ctx := context.Background()
	a := newMockStrategy(models.StrategyEndpoint)

	ext := New(slog.Default(), a)
	ext.SetPacer(&countingPacer{err: context.DeadlineExceeded})

	_, err := ext.Extract(ctx, trackingID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExtraction))
	a.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}
