package common

import (
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/writers"
)

type closeCountingWriter struct {
	closed int
}

func (w *closeCountingWriter) WithLevel(level log.Level) writers.IWriter { return w }
func (w *closeCountingWriter) Write(p []byte) (int, error)               { return len(p), nil }
func (w *closeCountingWriter) GetFilePath() string                       { return "" }
func (w *closeCountingWriter) Close() error {
	w.closed++
	return nil
}

func TestStop_ClosesRegisteredWriters(t *testing.T) {
	writer := &closeCountingWriter{}
	arbor.RegisterWriter("vigil_test", writer)

	Stop()
	assert.Equal(t, 1, writer.closed)
	assert.Nil(t, arbor.GetRegisteredWriter("vigil_test"))

	Stop()
	assert.Equal(t, 1, writer.closed, "writers are closed once")
}
