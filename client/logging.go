package client

import (
	"time"

	"github.com/tendermint/tendermint/libs/log"
)

// logDuration writes information about the time and result to the logger.
// Failures are logged as errors, successes as info unless lowPrio is set.
func logDuration(logger log.Logger, start time.Time, msg string, err error, lowPrio bool, keyvals ...interface{}) {
	delta := time.Now().Sub(start)
	logger = logger.With("duration", delta/time.Microsecond)
	if len(keyvals) != 0 {
		logger = logger.With(keyvals...)
	}

	if err != nil {
		logger.Error(msg, "err", err)
		return
	}
	if lowPrio {
		logger.Debug(msg)
	} else {
		logger.Info(msg)
	}
}
