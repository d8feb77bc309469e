package prometheus

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// LogrusCollector is a logrus hook counting log statements per level
// and service prefix.
type LogrusCollector struct {
	counterVec *prometheus.CounterVec
}

var (
	supportedLevels = []logrus.Level{logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel}
	logCounterVec   = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_log_entries_total",
		Help: "Total number of log messages.",
	}, []string{"level", "prefix"})
)

const prefixKey = "prefix"
const defaultPrefix = "global"

// NewLogrusCollector returns a hook ready to be registered with
// logrus.AddHook.
func NewLogrusCollector() *LogrusCollector {
	return &LogrusCollector{
		counterVec: logCounterVec,
	}
}

// Fire is called on every log call.
func (hook *LogrusCollector) Fire(entry *logrus.Entry) error {
	prefix := defaultPrefix
	if prefixValue, ok := entry.Data[prefixKey]; ok {
		prefix, ok = prefixValue.(string)
		if !ok {
			return errors.New("prefix is not a string")
		}
	}
	hook.counterVec.WithLabelValues(entry.Level.String(), prefix).Inc()
	return nil
}

// Levels returns the levels this hook observes.
func (_ *LogrusCollector) Levels() []logrus.Level {
	return supportedLevels
}
