package watcher

import (
	"testing"

	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerDropsEventsAfterStop(t *testing.T) {
	w, err := New(Options{Logger: quietLogger()})
	require.NoError(t, err)
	l := newListener(w, "/srv", quietLogger())

	l.OnPathEvent("/srv/a.bsz", filter.ActionAdd)
	l.Stop()
	l.OnPathEvent("/srv/b.bsz", filter.ActionAdd)

	assert.True(t, l.Stopped())
	assert.Equal(t, []string{"/srv/a.bsz"}, w.PendingRender())
}

func TestListenerStopDuringClassification(t *testing.T) {
	tests := []struct {
		name   string
		action filter.Action
	}{
		{"render", filter.ActionAdd},
		{"stop render", filter.ActionDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(Options{Logger: quietLogger()})
			require.NoError(t, err)
			l := newListener(w, "/srv", quietLogger())

			classify := l.classify
			l.classify = func(path string, action filter.Action) filter.Decision {
				d := classify(path, action)
				// The session is stopped after the decision is made.
				l.Stop()
				return d
			}

			l.OnPathEvent("/srv/model.bsz", tt.action)

			assert.False(t, w.HasFilesToRender())
			assert.False(t, w.HasFilesToDelete())
		})
	}
}
