package router

import (
	"testing"

	"github.com/clustermon/core/internal/backend"
	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	added, removed []string
	hangups        []string
}

func (s *recordingSink) OnServerAdded(_ string, srv backend.ServerRef)   { s.added = append(s.added, srv.Name) }
func (s *recordingSink) OnServerRemoved(_ string, srv backend.ServerRef) { s.removed = append(s.removed, srv.Name) }
func (s *recordingSink) OnHangupAll(srv backend.ServerRef)               { s.hangups = append(s.hangups, srv.Name) }

func TestInProcessFansOutToAllSinks(t *testing.T) {
	r := New()
	s1, s2 := &recordingSink{}, &recordingSink{}
	r.Register(s1)
	r.Register(s2)

	r.ServerAdded("m1", backend.ServerRef{Name: "a"})
	r.HangupAll(backend.ServerRef{Name: "a"})

	assert.Equal(t, []string{"a"}, s1.added)
	assert.Equal(t, []string{"a"}, s2.added)
	assert.Equal(t, []string{"a"}, s1.hangups)
}
