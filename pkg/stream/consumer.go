// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/abcxyz/pkg/logging"
)

// Disposition tells the consume loop what to do with a handled message.
type Disposition int

const (
	// Ack marks the message processed; it is never redelivered.
	Ack Disposition = iota
	// Nak requests redelivery after a transient failure.
	Nak
	// Term drops the message permanently without processing.
	Term
	// Leave keeps the message unacknowledged, for shutdown mid-message.
	Leave
)

// Handler processes one message and decides its fate.
type Handler func(ctx context.Context, subject string, data []byte) Disposition

// ConsumerOptions configures OpenConsumer.
type ConsumerOptions struct {
	// Stream is the stream to attach to. Defaults to StreamName.
	Stream string
	// Name is the durable consumer name.
	Name string
	// Recreate deletes any existing durable before creating a fresh one,
	// replaying the stream from the beginning.
	Recreate bool
	// BatchSize is the number of messages fetched per pull.
	BatchSize int
	// FetchTimeout bounds how long a pull waits for messages.
	FetchTimeout time.Duration
}

// Consumer is a durable pull consumer on the event stream.
type Consumer struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	opts     ConsumerOptions
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.Stream == "" {
		o.Stream = StreamName
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	return o
}

// OpenConsumer dials NATS and binds (or creates) the durable pull consumer.
func OpenConsumer(ctx context.Context, url string, opts ConsumerOptions) (*Consumer, error) {
	opts = opts.withDefaults()

	nc, err := nats.Connect(url, nats.Name("ghactivity-handler"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	str, err := js.Stream(ctx, opts.Stream)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to look up stream %s (is the monitor running?): %w", opts.Stream, err)
	}

	if opts.Recreate {
		if err := str.DeleteConsumer(ctx, opts.Name); err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
			nc.Close()
			return nil, fmt.Errorf("failed to delete consumer %s: %w", opts.Name, err)
		}
	}

	consumer, err := str.Consumer(ctx, opts.Name)
	if errors.Is(err, jetstream.ErrConsumerNotFound) {
		consumer, err = str.CreateConsumer(ctx, jetstream.ConsumerConfig{
			Durable:       opts.Name,
			FilterSubject: ConsumerFilterSubject,
			DeliverPolicy: jetstream.DeliverAllPolicy,
			AckPolicy:     jetstream.AckExplicitPolicy,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open consumer %s: %w", opts.Name, err)
	}

	return &Consumer{nc: nc, consumer: consumer, opts: opts}, nil
}

// Run pulls batches and hands each message to the handler sequentially until
// the context is canceled. Fetch timeouts are normal when the stream is idle.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	logger := logging.FromContext(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		batch, err := c.consumer.Fetch(c.opts.BatchSize, jetstream.FetchMaxWait(c.opts.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WarnContext(ctx, "fetch failed, backing off", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for msg := range batch.Messages() {
			c.dispose(ctx, msg, handle(ctx, msg.Subject(), msg.Data()))
			if ctx.Err() != nil {
				return nil
			}
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			logger.WarnContext(ctx, "batch ended with error", "error", err)
		}
	}
}

func (c *Consumer) dispose(ctx context.Context, msg jetstream.Msg, d Disposition) {
	logger := logging.FromContext(ctx)

	var err error
	switch d {
	case Ack:
		err = msg.Ack()
	case Nak:
		err = msg.Nak()
	case Term:
		err = msg.Term()
	case Leave:
		return
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to acknowledge message",
			"subject", msg.Subject(),
			"disposition", d,
			"error", err)
	}
}

// Close closes the underlying connection. The durable consumer survives for
// the next run.
func (c *Consumer) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
