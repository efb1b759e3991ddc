package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/db"
	"github.com/diewo77/quote-optimizer/internal/engine"
	"github.com/diewo77/quote-optimizer/internal/features"
	"github.com/diewo77/quote-optimizer/internal/lock"
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/scorer"
	"github.com/diewo77/quote-optimizer/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var sentAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func f64(v float64) *float64 { return &v }

// seed creates two requests with two answered RFQs each.
func seed(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	var sups []models.Supplier
	for i, perf := range []float64{0.9, 0.4} {
		s := models.Supplier{Name: fmt.Sprintf("supplier-%d", i), Email: fmt.Sprintf("s%d@test", i), PerformanceScore: f64(perf), SupportedProducts: "mug"}
		require.NoError(t, gdb.Create(&s).Error)
		sups = append(sups, s)
	}
	for i := 0; i < 2; i++ {
		req := models.ClientRequest{CustomerID: fmt.Sprintf("R%d", i+1), ProductType: "mug", Quantity: 40}
		require.NoError(t, gdb.Create(&req).Error)
		for _, s := range sups {
			rfq := models.RFQSent{ClientRequestID: req.ID, SupplierID: s.ID, SentAt: sentAt, Status: models.RFQStatusQuoted}
			require.NoError(t, gdb.Create(&rfq).Error)
			received := sentAt.Add(3 * time.Hour)
			require.NoError(t, gdb.Create(&models.QuotationResponse{RFQID: rfq.ID, UnitPrice: 5, DeliveryDays: 3, ReceivedAt: &received}).Error)
		}
	}
}

// performanceScorer returns the supplier performance feature as the win probability.
var performanceScorer = scorer.Func(func(vectors []features.Vector) ([]float64, error) {
	out := make([]float64, len(vectors))
	for i, v := range vectors {
		out[i] = v[features.PerformanceScore]
	}
	return out, nil
})

func newPipeline(t *testing.T, gdb *gorm.DB, sc scorer.Scorer, locker lock.Locker) *Pipeline {
	t.Helper()
	p, err := New(store.New(gdb), sc, locker, nil, zap.NewNop(), Options{Weights: engine.DefaultWeights(), Markup: engine.DefaultMarkup()})
	require.NoError(t, err)
	return p
}

func TestRun(t *testing.T) {
	gdb := setupTestDB(t, t.Name())
	seed(t, gdb)
	p := newPipeline(t, gdb, performanceScorer, lock.NewLocal())
	ctx := context.Background()

	run, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, "score,merge,select", run.Stages)
	assert.Equal(t, 4, run.Scored)
	assert.Equal(t, 4, run.Merged)
	assert.Equal(t, 2, run.Selected)
	assert.True(t, run.IsFinished())

	stored, err := store.New(gdb).Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, stored.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Runs.WithLabelValues("succeeded")))

	selected, err := store.New(gdb).CurrentSelectedQuotes(ctx)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	for _, s := range selected {
		assert.Equal(t, "supplier-0", s.SupplierName)
		assert.Equal(t, run.ID, s.RunID)
	}

	again, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Scored)
	assert.Equal(t, 4, again.Merged)
	assert.Equal(t, 2, again.Selected)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	gdb := setupTestDB(t, t.Name())
	locker := lock.NewLocal()
	p := newPipeline(t, gdb, performanceScorer, locker)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Run(ctx)
	assert.True(t, errors.Is(err, apperrors.ErrRunInProgress))

	runs, err := store.New(gdb).RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, release(ctx))
	_, err = p.Run(ctx)
	assert.NoError(t, err)
}

func TestRunStopsAtFailedStage(t *testing.T) {
	gdb := setupTestDB(t, t.Name())
	seed(t, gdb)
	broken := scorer.Func(func([]features.Vector) ([]float64, error) {
		return nil, errors.New("model unavailable")
	})
	p := newPipeline(t, gdb, broken, lock.NewLocal())
	ctx := context.Background()

	run, err := p.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage score")
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "model unavailable")

	_, err = store.New(gdb).Head(ctx, models.MergedQuotesSnapshot)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Runs.WithLabelValues("failed")))
}

func TestRunStageWithoutScorer(t *testing.T) {
	gdb := setupTestDB(t, t.Name())
	seed(t, gdb)
	p := newPipeline(t, gdb, nil, lock.NewLocal())
	ctx := context.Background()

	run, err := p.RunStage(ctx, StageMerge)
	require.NoError(t, err)
	assert.Equal(t, "merge", run.Stages)
	assert.Zero(t, run.Merged)

	_, err = p.RunStage(ctx, StageScore)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"score", StageScore, false},
		{" Merge ", StageMerge, false},
		{"select", StageSelect, false},
		{"train", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
