package bytelang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSinkBeginFailedScope(t *testing.T) {
	s := NewErrorSink("root")

	mark := s.Begin()
	assert.False(t, s.Failed(mark))

	s.Report("something went wrong")
	assert.True(t, s.Failed(mark))

	mark2 := s.Begin()
	assert.False(t, s.Failed(mark2))
}

func TestErrorSinkChildSharesBuffer(t *testing.T) {
	root := NewErrorSink("root")
	child := root.Child("sub")

	mark := root.Begin()
	child.ReportAt(12, "  add x y  ", "bad thing")
	assert.True(t, root.Failed(mark))
	assert.Equal(t, 1, root.Count())

	log := root.Log()
	assert.Contains(t, log, "root.sub")
	assert.Contains(t, log, "line 12")
	assert.Contains(t, log, "add x y")
}

func TestErrorSinkSuccessWhenEmpty(t *testing.T) {
	s := NewErrorSink("root")
	assert.True(t, s.Success())
	assert.Equal(t, "", s.Log())
}
