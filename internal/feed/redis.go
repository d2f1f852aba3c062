package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisFeed carries events over Redis pub/sub so every server node sees
// every write.
type RedisFeed struct {
	rc     *redis.Client
	prefix string
	log    logrus.FieldLogger
}

func NewRedisFeed(rc *redis.Client, prefix string, logger logrus.FieldLogger) *RedisFeed {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisFeed{rc: rc, prefix: prefix, log: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, scope Scope, ev Event) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return f.rc.Publish(ctx, scope.Channel(f.prefix), data).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, scope Scope, handler Handler) (*Subscription, error) {
	ps := f.rc.Subscribe(ctx, scope.Channel(f.prefix))
	// wait for the subscribe confirmation so no event published after we
	// return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, &SubscriptionError{Scope: scope, Err: err}
	}

	sub := newSubscription(scope)
	sub.stop = func() { _ = ps.Close() }
	go f.run(ctx, sub, ps.Channel(), handler)
	return sub, nil
}

func (f *RedisFeed) run(ctx context.Context, sub *Subscription, ch <-chan *redis.Message, handler Handler) {
	defer sub.finished()
	log := f.log.WithField("scope", sub.Scope().String())
	for {
		select {
		case <-ctx.Done():
			sub.Release()
			return
		case <-sub.quit:
			return
		case msg, ok := <-ch:
			if !ok {
				if sub.stopped() {
					return
				}
				log.Warn("feed channel closed")
				sub.fail(&SubscriptionError{Scope: sub.Scope(), Err: ErrTransportClosed})
				return
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				log.WithError(err).Error("unable to parse feed event")
				continue
			}
			sub.deliver(handler, ev)
		}
	}
}
