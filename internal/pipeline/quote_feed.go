package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/unipredhq/unipred/internal/adapter/kalshi"
	"github.com/unipredhq/unipred/internal/domain"
)

const (
	streamReconnectDelay = 2 * time.Second
	streamResubInterval  = 5 * time.Minute
	streamMaxTickers     = 100
	streamLockTTL        = 5 * time.Second
)

// QuoteFeed consumes the Kalshi ticker stream and appends live quote
// snapshots to the time series, keeping the quote cache warm between polls.
// It reconnects on disconnect and refreshes its subscriptions as the set of
// open markets changes.
type QuoteFeed struct {
	wsURL     string
	markets   domain.MarketStore
	snapshots domain.SnapshotStore
	quotes    domain.QuoteCache
	locks     domain.LockManager
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewQuoteFeed creates a feed over the given WebSocket endpoint.
func NewQuoteFeed(
	wsURL string,
	markets domain.MarketStore,
	snapshots domain.SnapshotStore,
	quotes domain.QuoteCache,
	locks domain.LockManager,
	logger *slog.Logger,
) *QuoteFeed {
	return &QuoteFeed{
		wsURL:     wsURL,
		markets:   markets,
		snapshots: snapshots,
		quotes:    quotes,
		locks:     locks,
		logger:    logger.With(slog.String("component", "quote_feed")),
		done:      make(chan struct{}),
	}
}

// Run connects and subscribes to ticker updates for open Kalshi markets,
// running until ctx is cancelled. Reconnects with a fixed delay on disconnect.
func (f *QuoteFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			f.logger.Warn("stream disconnected, reconnecting", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(streamReconnectDelay):
		}
	}
}

// Close stops the feed.
func (f *QuoteFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *QuoteFeed) runConnection(ctx context.Context) error {
	stream := kalshi.NewStream(f.wsURL)
	defer stream.Close()

	stream.OnQuote(func(snap domain.QuoteSnapshot) {
		f.handleQuote(ctx, snap)
	})

	if err := stream.Connect(ctx); err != nil {
		return err
	}

	tickers, err := f.watchTickers(ctx)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		f.logger.Info("no open markets to stream yet")
	} else {
		if err := stream.Subscribe(ctx, tickers); err != nil {
			return err
		}
		f.logger.Info("stream subscribed", slog.Int("tickers", len(tickers)))
	}

	// Refresh subscriptions as new markets open. Subscribe is additive, so
	// resending the full set is safe.
	resub := time.NewTicker(streamResubInterval)
	defer resub.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-resub.C:
			tickers, err := f.watchTickers(ctx)
			if err != nil {
				f.logger.Warn("refreshing stream tickers failed", slog.String("error", err.Error()))
				continue
			}
			if len(tickers) == 0 {
				continue
			}
			if err := stream.Subscribe(ctx, tickers); err != nil {
				return err
			}
		}
	}
}

func (f *QuoteFeed) handleQuote(ctx context.Context, snap domain.QuoteSnapshot) {
	// The append is check-then-insert, so it must hold the market's write
	// lock. A held lock means the poll sweep is landing this market right
	// now; dropping the tick is fine, the next one comes within seconds.
	unlock, err := f.locks.Acquire(ctx, "market:"+snap.Key.String(), streamLockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		return
	}
	if err != nil {
		f.logger.Warn("acquiring market lock failed",
			slog.String("market", snap.Key.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	if err := f.snapshots.Append(ctx, snap); err != nil {
		if errors.Is(err, domain.ErrStaleSnapshot) {
			return
		}
		f.logger.Warn("appending streamed snapshot failed",
			slog.String("market", snap.Key.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if f.quotes != nil {
		if err := f.quotes.Set(ctx, snap); err != nil {
			f.logger.Warn("caching streamed quote failed",
				slog.String("market", snap.Key.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (f *QuoteFeed) watchTickers(ctx context.Context) ([]string, error) {
	markets, err := f.markets.ListOpen(ctx, domain.ExchangeKalshi, domain.ListOpts{Limit: streamMaxTickers})
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(markets))
	for _, m := range markets {
		tickers = append(tickers, m.Key.NativeID)
	}
	return tickers, nil
}
