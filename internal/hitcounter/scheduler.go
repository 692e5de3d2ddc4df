package hitcounter

import "time"

// flushScheduler is the timer source that the aggregator loop selects on
// alongside the message channel.
type flushScheduler interface {
	C() <-chan time.Time
	Stop()
}

type tickerScheduler struct {
	ticker *time.Ticker
}

func newTickerScheduler(interval time.Duration) flushScheduler {
	return &tickerScheduler{ticker: time.NewTicker(interval)}
}

func (s *tickerScheduler) C() <-chan time.Time { return s.ticker.C }

func (s *tickerScheduler) Stop() { s.ticker.Stop() }
