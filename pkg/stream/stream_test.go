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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConsumerOptionsDefaults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   ConsumerOptions
		want ConsumerOptions
	}{
		{
			name: "all_defaults",
			in:   ConsumerOptions{Name: "github-event-handler"},
			want: ConsumerOptions{
				Stream:       StreamName,
				Name:         "github-event-handler",
				BatchSize:    10,
				FetchTimeout: 5 * time.Second,
			},
		},
		{
			name: "explicit_values_kept",
			in: ConsumerOptions{
				Stream:       "OTHER",
				Name:         "worker",
				Recreate:     true,
				BatchSize:    25,
				FetchTimeout: time.Second,
			},
			want: ConsumerOptions{
				Stream:       "OTHER",
				Name:         "worker",
				Recreate:     true,
				BatchSize:    25,
				FetchTimeout: time.Second,
			},
		},
		{
			name: "negative_batch_resets",
			in:   ConsumerOptions{Name: "worker", BatchSize: -1},
			want: ConsumerOptions{
				Stream:       StreamName,
				Name:         "worker",
				BatchSize:    10,
				FetchTimeout: 5 * time.Second,
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tc.want, tc.in.withDefaults()); diff != "" {
				t.Errorf("withDefaults diff (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	p := &Publisher{}
	if err := p.Publish(context.Background(), "github.issue.new", func() {}); err == nil {
		t.Error("expected marshal error for func value")
	}
}
