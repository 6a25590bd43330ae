package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "browser_acceptor"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	browserStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "browser_starts_total",
		Help:      "Count of browser start attempts",
	})

	browserCrashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "browser_crashes_total",
		Help:      "Count of browser crashes detected during tests",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "attempts_total",
		Help:      "Count of test attempts by outcome",
	}, []string{
		"outcome",
	})

	flakyAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "flaky_attempts_total",
		Help:      "Count of attempts whose outcome differed from the previous attempt",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of resolved tests by verdict",
	}, []string{
		"run_id",
		"verdict",
	})

	runResult = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_result",
		Help:      "Result of the most recent runs, 1 for the reported result",
	}, []string{
		"run_id",
		"result",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of test runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordBrowserStart() {
	browserStartsTotal.Inc()
}

func RecordBrowserCrash() {
	browserCrashesTotal.Inc()
}

// RecordAttempt counts one test execution. flaky marks an outcome that
// differed from the previous attempt of the same test.
func RecordAttempt(outcome types.Outcome, flaky bool) {
	if outcome == 0 {
		log.Error("RecordAttempt - invalid outcome", "outcome", outcome)
		return
	}
	attemptsTotal.WithLabelValues(outcome.String()).Inc()
	if flaky {
		flakyAttemptsTotal.Inc()
	}
}

func RecordTest(runID string, verdict types.Verdict) {
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"run_id", runID,
			"verdict", verdict)
	}
	testsTotal.WithLabelValues(runID, string(verdict)).Inc()
}

func RecordRun(runID string, result string, duration time.Duration) {
	runResult.WithLabelValues(runID, result).Set(1)
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}
