package bufpool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ReturnsEmptyBuffer(t *testing.T) {
	buf := Get()
	require.NotNil(t, buf)
	defer Put(buf)
	assert.Zero(t, buf.Len())
}

func TestPut_ResetsBuffer(t *testing.T) {
	buf := Get()
	buf.WriteString("<w:p>stale</w:p>")
	Put(buf)

	buf2 := Get()
	defer Put(buf2)
	assert.Zero(t, buf2.Len())
}

func TestPut_NilAndOversized(t *testing.T) {
	assert.NotPanics(t, func() { Put(nil) })

	big := bytes.NewBuffer(make([]byte, 0, maxBufferSize+1))
	assert.NotPanics(t, func() { Put(big) })
}

func TestGetSized(t *testing.T) {
	buf := GetSized(4096)
	defer Put(buf)
	assert.GreaterOrEqual(t, buf.Cap(), 4096)
	assert.Zero(t, buf.Len())
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := Get()
				buf.WriteString("finding")
				if buf.String() != "finding" {
					t.Error("buffer shared between goroutines")
				}
				Put(buf)
			}
		}()
	}
	wg.Wait()
}
