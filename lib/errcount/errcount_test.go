package errcount

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrCount(t *testing.T) {
	ec := New()
	assert.Equal(t, nil, ec.Err("none"))
	assert.Equal(t, 0, ec.Count())
	assert.Nil(t, ec.Last())

	ec.Add(nil)
	assert.Equal(t, 0, ec.Count())

	e1 := errors.New("write stamp invalid")
	ec.Add(e1)

	err := ec.Err("lba 0x400")
	assert.True(t, errors.Is(err, e1), err)
	assert.Equal(t, "lba 0x400: write stamp invalid", err.Error())

	e2 := errors.New("lba stamp invalid")
	ec.Add(e2)

	err = ec.Err("lba 0x400")
	assert.True(t, errors.Is(err, e2), err)
	assert.Equal(t, "lba 0x400: 2 errors: last error: lba stamp invalid", err.Error())
	assert.Equal(t, 2, ec.Count())
	assert.Equal(t, e2, ec.Last())
}

func TestErrCountConcurrent(t *testing.T) {
	ec := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ec.Add(errors.New("finding"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, ec.Count())
}
