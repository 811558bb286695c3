package sink

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryWriteRetriesOnEINTR(t *testing.T) {
	attempts := 0
	err := retryWrite(func() error {
		attempts++
		if attempts < 3 {
			return syscall.EINTR
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWriteRetriesOnEAGAIN(t *testing.T) {
	attempts := 0
	err := retryWrite(func() error {
		attempts++
		if attempts < 2 {
			return syscall.EAGAIN
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryWriteFailsFastOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := retryWrite(func() error {
		attempts++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, attempts)
}

type recordingMouse struct {
	calls []string
}

func (m *recordingMouse) MoveLeft(pixel int32) error {
	m.calls = append(m.calls, fmtCall("left", pixel))
	return nil
}
func (m *recordingMouse) MoveRight(pixel int32) error {
	m.calls = append(m.calls, fmtCall("right", pixel))
	return nil
}
func (m *recordingMouse) MoveUp(pixel int32) error {
	m.calls = append(m.calls, fmtCall("up", pixel))
	return nil
}
func (m *recordingMouse) MoveDown(pixel int32) error {
	m.calls = append(m.calls, fmtCall("down", pixel))
	return nil
}

func fmtCall(dir string, pixel int32) string {
	return fmt.Sprintf("%s:%d", dir, pixel)
}

func TestMoveAxisDirections(t *testing.T) {
	m := &recordingMouse{}
	assert.NoError(t, moveX(m, 5))
	assert.NoError(t, moveX(m, -5))
	assert.NoError(t, moveY(m, 5))
	assert.NoError(t, moveY(m, -5))
	assert.Equal(t, []string{"right:5", "left:5", "down:5", "up:5"}, m.calls)
}
