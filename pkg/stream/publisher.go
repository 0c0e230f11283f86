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

// Package stream connects the services to the NATS JetStream event stream.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding github activity events.
	StreamName = "GITHUB_EVENTS"

	// StreamSubjects is the subject space bound to the stream.
	StreamSubjects = "github.>"

	// ConsumerFilterSubject narrows consumers to the event subjects.
	ConsumerFilterSubject = "github.*"

	streamMaxAge   = 7 * 24 * time.Hour
	streamMaxMsgs  = 10_000
	streamMaxBytes = 100 * 1024 * 1024
)

// Publisher writes JSON events onto the stream, creating the stream on first
// use if it does not exist.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials the NATS server and ensures the event stream exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("ghactivity"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Publisher{nc: nc, js: js}, nil
}

// ensureStream creates the event stream when absent. An existing stream is
// left untouched regardless of its configuration.
func ensureStream(ctx context.Context, js jetstream.JetStream) error {
	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", StreamName, err)
	}

	if _, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{StreamSubjects},
		Retention: jetstream.LimitsPolicy,
		Discard:   jetstream.DiscardOld,
		MaxAge:    streamMaxAge,
		MaxMsgs:   streamMaxMsgs,
		MaxBytes:  streamMaxBytes,
	}); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}
	return nil
}

// Publish marshals the event to JSON and publishes it on the subject,
// waiting for the stream's acknowledgement.
func (p *Publisher) Publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection, flushing pending publishes.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
