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

// Package handler consumes github activity events from the stream and acts
// on them, invoking the LLM CLI with a per-event prompt template.
package handler

import (
	"context"
	"errors"

	"github.com/abcxyz/pkg/logging"

	"github.com/ghactivity/ghactivity/pkg/events"
	"github.com/ghactivity/ghactivity/pkg/state"
	"github.com/ghactivity/ghactivity/pkg/stream"
	"github.com/ghactivity/ghactivity/pkg/template"
)

// Invoker runs the LLM CLI for one event.
type Invoker interface {
	Run(ctx context.Context, repository, number, baseDir, templateContent string) error
}

// Decision is the outcome of an interactive confirmation.
type Decision int

const (
	// DecisionProcess handles the event.
	DecisionProcess Decision = iota
	// DecisionSkip acknowledges the event without handling it.
	DecisionSkip
	// DecisionAbort stops the handler, leaving the event unacknowledged.
	DecisionAbort
)

// Confirmer asks the operator what to do with an event.
type Confirmer interface {
	Confirm(summary string) (Decision, error)
}

// Handler dispatches stream messages.
type Handler struct {
	cfg     *Config
	store   *state.Store
	invoker Invoker

	// confirm gates each event when set; nil means auto-confirm.
	confirm Confirmer

	// llmAvailable records the startup probe; when false, events are
	// acknowledged without invocation.
	llmAvailable bool

	// abort stops the consume loop after a DecisionAbort.
	abort context.CancelFunc
}

// New builds a Handler. confirm may be nil to process without prompting;
// abort is invoked when the operator requests a stop.
func New(cfg *Config, store *state.Store, invoker Invoker, confirm Confirmer, llmAvailable bool, abort context.CancelFunc) *Handler {
	if abort == nil {
		abort = func() {}
	}
	return &Handler{
		cfg:          cfg,
		store:        store,
		invoker:      invoker,
		confirm:      confirm,
		llmAvailable: llmAvailable,
		abort:        abort,
	}
}

// Handle processes one message and returns its disposition.
func (h *Handler) Handle(ctx context.Context, subject string, data []byte) stream.Disposition {
	logger := logging.FromContext(ctx)

	kind, action, err := events.ParseSubject(subject)
	if err != nil {
		logger.WarnContext(ctx, "ignoring message on unknown subject", "subject", subject, "error", err)
		return stream.Ack
	}
	// Legacy subjects are handled under their canonical name from here on.
	subject = events.Subject(kind, action)

	env, err := events.DecodeEnvelope(data)
	if err != nil {
		logger.ErrorContext(ctx, "failed to decode event", "subject", subject, "error", err)
		return stream.Nak
	}
	if env.Repository == "" || env.Number == "" {
		logger.ErrorContext(ctx, "dropping event missing repository or number", "subject", subject)
		return stream.Term
	}

	logger.InfoContext(ctx, "event received",
		"subject", subject,
		"repository", env.Repository,
		"number", env.Number,
		"author", env.Author,
		"title", env.Title,
		"url", env.URL)

	if re := h.cfg.RepositoriesRegexp(); re != nil && !re.MatchString(env.Repository) {
		logger.DebugContext(ctx, "repository filtered out", "repository", env.Repository)
		return stream.Ack
	}
	if re := h.cfg.SkipUsersRegexp(); re != nil && env.Author != "" && re.MatchString(env.Author) {
		logger.InfoContext(ctx, "skipping event from filtered author", "author", env.Author)
		return stream.Ack
	}

	if h.confirm != nil {
		decision, err := h.confirm.Confirm(env.Repository + "#" + env.Number + " (" + subject + ")")
		if err != nil {
			logger.ErrorContext(ctx, "confirmation failed", "error", err)
			return stream.Nak
		}
		switch decision {
		case DecisionSkip:
			logger.InfoContext(ctx, "event skipped by operator")
			return stream.Ack
		case DecisionAbort:
			logger.InfoContext(ctx, "stop requested, leaving event for redelivery")
			h.abort()
			return stream.Leave
		}
	}

	switch action {
	case events.ActionNew:
		if _, err := h.store.EnsureItemDir(env.Repository, env.Number); err != nil {
			logger.ErrorContext(ctx, "failed to create item directory", "error", err)
			return stream.Nak
		}
		logger.InfoContext(ctx, "created item directory", "dir", h.store.ItemDir(env.Repository, env.Number))

	case events.ActionClosed:
		removed, err := h.store.RemoveActive(env.Repository, env.Number)
		if err != nil {
			logger.ErrorContext(ctx, "failed to remove active flag", "error", err)
			return stream.Nak
		}
		if !removed {
			logger.WarnContext(ctx, "no active flag to remove", "repository", env.Repository, "number", env.Number)
		}
	}

	tmpl, err := template.Resolve(h.cfg.TemplatesDir, env.Repository, subject)
	if err != nil {
		switch {
		case errors.Is(err, template.ErrNotFound):
			logger.InfoContext(ctx, "no template for event, skipping", "subject", subject)
			return stream.Ack
		case errors.Is(err, template.ErrSkip):
			logger.InfoContext(ctx, "event disabled by empty template", "subject", subject)
			return stream.Ack
		default:
			logger.ErrorContext(ctx, "template lookup failed", "error", err)
			return stream.Nak
		}
	}

	if !h.llmAvailable {
		logger.WarnContext(ctx, "LLM CLI not available, acknowledging without invocation")
		return stream.Ack
	}

	logger.InfoContext(ctx, "invoking LLM",
		"repository", env.Repository,
		"number", env.Number,
		"template", tmpl.Path)
	if err := h.invoker.Run(ctx, env.Repository, env.Number, h.store.Base(), tmpl.Content); err != nil {
		logger.ErrorContext(ctx, "LLM invocation failed", "error", err)
		return stream.Nak
	}

	logger.InfoContext(ctx, "event processed", "repository", env.Repository, "number", env.Number)
	return stream.Ack
}
