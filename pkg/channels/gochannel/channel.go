// Package gochannel is the in-process transport for lifecycle events, used by
// single-instance deployments and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const defaultBuffer = 256

type Option func(*gochannel.Config)

// WithBuffer sets how many events a subscriber may lag behind.
func WithBuffer(n int64) Option {
	return func(c *gochannel.Config) {
		c.OutputChannelBuffer = n
	}
}

// WithAcknowledgedDelivery keeps events published before anyone subscribed and
// makes Publish wait for the handlers. Tests use it to observe events in order.
func WithAcknowledgedDelivery() Option {
	return func(c *gochannel.Config) {
		c.Persistent = true
		c.BlockPublishUntilSubscriberAck = true
	}
}

// CreateChannel returns one GoChannel serving as both publisher and subscriber.
// By default events published while nobody listens are dropped.
func CreateChannel(logger watermill.LoggerAdapter, opts ...Option) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	config := gochannel.Config{OutputChannelBuffer: defaultBuffer}

	for _, opt := range opts {
		opt(&config)
	}

	pubSub := gochannel.NewGoChannel(config, logger)

	return pubSub, pubSub, nil
}
