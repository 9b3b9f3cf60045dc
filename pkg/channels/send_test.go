package channels_test

import (
	"testing"
	"time"

	"github.com/alkime/onboard/pkg/channels"
	"github.com/stretchr/testify/assert"
)

func TestSendNonBlock(t *testing.T) {
	tests := []struct {
		name    string
		ch      func() chan int
		wantErr error
	}{
		{"room in buffer", func() chan int { return make(chan int, 1) }, nil},
		{"buffer full", func() chan int {
			ch := make(chan int, 1)
			ch <- 1
			return ch
		}, channels.ErrChannelFull},
		{"unbuffered without receiver", func() chan int { return make(chan int) }, channels.ErrChannelFull},
		{"closed", func() chan int {
			ch := make(chan int)
			close(ch)
			return ch
		}, channels.ErrChannelClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := channels.SendNonBlock(tt.ch(), 42)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSendWithTimeout(t *testing.T) {
	t.Run("receiver arrives in time", func(t *testing.T) {
		ch := make(chan int)
		go func() { <-ch }()

		assert.NoError(t, channels.SendWithTimeout(ch, 42, 100*time.Millisecond))
	})

	t.Run("nobody receives", func(t *testing.T) {
		ch := make(chan int)
		assert.ErrorIs(t, channels.SendWithTimeout(ch, 42, time.Millisecond), channels.ErrChannelTimeout)
	})

	t.Run("closed keeps buffered data", func(t *testing.T) {
		ch := make(chan int, 2)
		ch <- 1
		close(ch)

		assert.ErrorIs(t, channels.SendWithTimeout(ch, 42, 10*time.Millisecond), channels.ErrChannelClosed)
		assert.Equal(t, 1, <-ch)
	})
}

func TestReceiveAll(t *testing.T) {
	t.Run("until closed", func(t *testing.T) {
		ch := make(chan string, 3)
		ch <- "a"
		ch <- "b"
		close(ch)

		assert.Equal(t, []string{"a", "b"}, channels.ReceiveAll(ch, time.Second, 0))
	})

	t.Run("limit", func(t *testing.T) {
		ch := make(chan int, 3)
		ch <- 1
		ch <- 2
		ch <- 3

		assert.Equal(t, []int{1, 2}, channels.ReceiveAll(ch, time.Second, 2))
	})

	t.Run("quiet channel", func(t *testing.T) {
		ch := make(chan int)
		assert.Empty(t, channels.ReceiveAll(ch, 5*time.Millisecond, 0))
	})
}
