package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/models"
	"github.com/diewo77/quote-optimizer/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fixturePath = "../../testdata/fixture.yaml"
	modelPath   = "../../testdata/model.yaml"
)

type cli func(args ...string) (string, error)

// setupCLI points the commands at a sqlite file in a temp dir, with no config
// or dotenv file, and returns a runner for them.
func setupCLI(t *testing.T) cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "quoteopt.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOCK_BACKEND", "local")
	t.Setenv("SCORING_MODEL_PATH", "")
	t.Setenv("METRICS_PUSH_GATEWAY_URL", "")

	return func(args ...string) (string, error) {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append([]string{
			"--config", filepath.Join(dir, "absent.yaml"),
			"--env-file", filepath.Join(dir, "absent.env"),
		}, args...))
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

func TestRootCmdSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"migrate", "seed", "dispatch", "score", "merge", "select", "run", "runs", "report"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestEndToEnd(t *testing.T) {
	run := setupCLI(t)

	_, err := run("migrate")
	require.NoError(t, err)

	out, err := run("seed", "--file", fixturePath)
	require.NoError(t, err)
	seeded := decode[map[string]int](t, out)
	assert.Equal(t, 3, seeded["suppliers"])
	assert.Equal(t, 3, seeded["requests"])
	assert.Equal(t, 6, seeded["rfqs"])
	assert.Equal(t, 5, seeded["quotations"])

	out, err = run("run", "--model", modelPath)
	require.NoError(t, err)
	pr := decode[models.PipelineRun](t, out)
	assert.Equal(t, models.RunStatusSucceeded, pr.Status)
	assert.Equal(t, 5, pr.Scored)
	assert.Equal(t, 5, pr.Merged)
	assert.Equal(t, 3, pr.Selected)

	out, err = run("report", "selected")
	require.NoError(t, err)
	selected := decode[[]models.SelectedQuote](t, out)
	require.Len(t, selected, 3)
	suppliers := map[uint]bool{}
	for _, s := range selected {
		assert.NotEmpty(t, s.CustomerID)
		assert.Greater(t, s.SellingPrice, s.UnitPrice)
		suppliers[s.SupplierID] = true
	}

	out, err = run("report", "suppliers")
	require.NoError(t, err)
	perf := decode[[]services.SupplierPerformance](t, out)
	total := 0
	for _, p := range perf {
		total += p.QuotesSelected
	}
	assert.Equal(t, 3, total)
	assert.Len(t, perf, len(suppliers))

	out, err = run("seed", "--file", fixturePath)
	require.NoError(t, err)
	again := decode[map[string]int](t, out)
	assert.Zero(t, again["suppliers"])
	assert.Zero(t, again["rfqs"])
	assert.Equal(t, 5, again["duplicate_quotations"])

	out, err = run("score", "--model", modelPath)
	require.NoError(t, err)
	assert.Zero(t, decode[models.PipelineRun](t, out).Scored)

	out, err = run("runs", "--limit", "5")
	require.NoError(t, err)
	assert.Len(t, decode[[]models.PipelineRun](t, out), 2)
}

func TestScoreWithoutModel(t *testing.T) {
	run := setupCLI(t)
	_, err := run("migrate")
	require.NoError(t, err)

	out, err := run("score")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.Equal(t, 2, exitCode(err))
	assert.Equal(t, models.RunStatusFailed, decode[models.PipelineRun](t, out).Status)
}

func TestInvalidConfiguration(t *testing.T) {
	run := setupCLI(t)
	t.Setenv("SELECTION_WIN_WEIGHT", "0.9")

	_, err := run("migrate")
	var cfgErr *apperrors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Violations, "selection.weights")
}

func TestDispatchSinglePair(t *testing.T) {
	run := setupCLI(t)
	_, err := run("migrate")
	require.NoError(t, err)
	_, err = run("seed", "--file", fixturePath, "--skip-rfqs")
	require.NoError(t, err)

	// request 1 is a mug, supplier 1 makes mugs, supplier 3 only posters
	out, err := run("dispatch", "--request", "1", "--supplier", "1")
	require.NoError(t, err)
	rfq := decode[models.RFQSent](t, out)
	assert.Equal(t, uint(1), rfq.ClientRequestID)
	assert.Equal(t, uint(1), rfq.SupplierID)
	assert.Equal(t, models.RFQStatusSent, rfq.Status)

	_, err = run("dispatch", "--request", "1", "--supplier", "3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedProduct))
	assert.Equal(t, 4, exitCode(err))

	_, err = run("dispatch", "--request", "1")
	var cfgErr *apperrors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Violations, "supplier")
}

func TestRunsRejectsNonPositiveLimit(t *testing.T) {
	run := setupCLI(t)
	for _, limit := range []string{"0", "-3"} {
		_, err := run("runs", "--limit="+limit)
		var cfgErr *apperrors.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "limit %s", limit)
		assert.Equal(t, "must_be_positive", cfgErr.Violations["limit"])
		assert.Equal(t, 2, exitCode(err))
	}

	_, err := run("migrate")
	require.NoError(t, err)
	out, err := run("runs", "-n", "1")
	require.NoError(t, err)
	assert.Empty(t, decode[[]models.PipelineRun](t, out))
}

func TestMetricsArePushed(t *testing.T) {
	run := setupCLI(t)
	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	t.Setenv("METRICS_PUSH_GATEWAY_URL", srv.URL)

	_, err := run("migrate")
	require.NoError(t, err)
	_, err = run("merge")
	require.NoError(t, err)
	assert.Equal(t, int32(2), pushes.Load())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&apperrors.ConfigurationError{Violations: map[string]string{"x": "required"}}, 2},
		{fmt.Errorf("stage select: %w", apperrors.ErrRunInProgress), 3},
		{&apperrors.SelectionInvariantError{Check: apperrors.CheckMissingRequest, ClientRequestID: 1}, 4},
		{fmt.Errorf("dispatch: %w", apperrors.ErrUnsupportedProduct), 4},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
