package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockpulse/internal/model"
)

// ProcessForecaster delegates the analysis to an external command invoked as
//
//	<command...> TICKER START END LOOKBACK
//
// which must print one AnalysisResult JSON document on stdout and exit 0.
type ProcessForecaster struct {
	argv    []string
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewProcessForecaster splits command on whitespace. A zero timeout means
// the caller's context alone bounds the run.
func NewProcessForecaster(command string, timeout time.Duration, log zerolog.Logger) (*ProcessForecaster, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errors.New("forecast command is empty")
	}
	return &ProcessForecaster{
		argv:    argv,
		timeout: timeout,
		log:     log.With().Str("component", "process_forecaster").Logger(),
		now:     time.Now,
	}, nil
}

func (f *ProcessForecaster) Name() string { return "process" }

func (f *ProcessForecaster) Forecast(ctx context.Context, req Request) (*model.AnalysisResult, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := append(f.argv[1:len(f.argv):len(f.argv)],
		req.Ticker, req.StartDate(), req.EndDate(), strconv.Itoa(req.Lookback))
	cmd := exec.CommandContext(ctx, f.argv[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if stderr.Len() > 0 {
		f.log.Debug().Str("ticker", req.Ticker).Str("stderr", truncate(stderr.String(), 2048)).Msg("forecast process stderr")
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: forecast process: %v: %w", req.Ticker, ctx.Err(), model.ErrAnalysisFailed)
		}
		return nil, fmt.Errorf("%s: forecast process: %v: %w", req.Ticker, err, model.ErrAnalysisFailed)
	}
	f.log.Debug().Str("ticker", req.Ticker).Dur("elapsed", time.Since(start)).Int("bytes", stdout.Len()).Msg("forecast process finished")

	res, err := decodeResult(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", req.Ticker, err, model.ErrAnalysisFailed)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%s: forecast process reported: %s: %w", req.Ticker, res.Error, model.ErrAnalysisFailed)
	}
	if err := checkShape(res); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", req.Ticker, err, model.ErrAnalysisFailed)
	}
	if res.Ticker == "" {
		res.Ticker = req.Ticker
	}
	res.Forecaster = f.Name()
	if res.GeneratedAt.IsZero() {
		res.GeneratedAt = f.now().UTC()
	}
	return res, nil
}

// decodeResult parses the whole of out, falling back to its last non-empty
// line for scripts that print progress before the document.
func decodeResult(out []byte) (*model.AnalysisResult, error) {
	var res model.AnalysisResult
	err := json.Unmarshal(bytes.TrimSpace(out), &res)
	if err == nil {
		return &res, nil
	}
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(lines) > 1 && len(last) > 0 {
		res = model.AnalysisResult{}
		if err2 := json.Unmarshal(last, &res); err2 == nil {
			return &res, nil
		}
	}
	return nil, fmt.Errorf("unparsable forecast output: %v", err)
}

func checkShape(res *model.AnalysisResult) error {
	n := len(res.Dates)
	if n == 0 {
		return errors.New("forecast output has no dates")
	}
	for name, l := range map[string]int{
		"prices":   len(res.Prices),
		"ema_fast": len(res.EMAFast),
		"ema_slow": len(res.EMASlow),
		"rsi":      len(res.RSI),
		"signals":  len(res.Signals),
	} {
		if l != n {
			return fmt.Errorf("forecast output %s has %d entries, dates has %d", name, l, n)
		}
	}
	if res.NextDay.Date == "" {
		return errors.New("forecast output has no next_day_prediction")
	}
	for i, sig := range res.Signals {
		if !sig.Valid() {
			return fmt.Errorf("forecast output signals[%d] is %q", i, sig)
		}
	}
	res.NextDay.Signal = res.NextDay.Signal.OrNeutral()
	if !res.NextDay.Signal.Valid() {
		return fmt.Errorf("forecast output next_day_prediction.signal is %q", res.NextDay.Signal)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
