package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() Message {
	recipient := int64(2)
	return Message{
		ConversationID: "conv-1",
		SenderID:       1,
		RecipientID:    &recipient,
		Ciphertext:     []byte("opaque"),
		IV:             []byte("nonce"),
		AuthTag:        []byte("tag"),
		KeyID:          "key-1",
	}
}

func TestNewMessageDefaults(t *testing.T) {
	m, err := NewMessage(validMessage())
	require.NoError(t, err)

	assert.Equal(t, MessageStatusSending, m.Status)
	assert.Equal(t, int64(0), m.Version)
	assert.Equal(t, AlgorithmAESGCM, m.Algorithm)
	assert.Equal(t, "text", m.ContentType)
	assert.False(t, m.CreatedAt.IsZero())
	assert.Nil(t, m.DestructAt)
}

func TestNewMessageTargetValidation(t *testing.T) {
	room := int64(7)

	t.Run("both set", func(t *testing.T) {
		in := validMessage()
		in.RoomID = &room
		_, err := NewMessage(in)
		assert.ErrorIs(t, err, ErrAmbiguousTarget)
	})

	t.Run("neither set", func(t *testing.T) {
		in := validMessage()
		in.RecipientID = nil
		_, err := NewMessage(in)
		assert.ErrorIs(t, err, ErrAmbiguousTarget)
	})

	t.Run("room only", func(t *testing.T) {
		in := validMessage()
		in.RecipientID = nil
		in.RoomID = &room
		m, err := NewMessage(in)
		require.NoError(t, err)
		assert.True(t, m.IsGroup())
	})
}

func TestNewMessageRequiredFields(t *testing.T) {
	in := validMessage()
	in.Ciphertext = nil
	_, err := NewMessage(in)
	assert.Error(t, err)

	in = validMessage()
	in.KeyID = ""
	_, err = NewMessage(in)
	assert.Error(t, err)
}

func TestCalculateDestructAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unread uses timer from creation", func(t *testing.T) {
		m := Message{CreatedAt: created, DestructTimer: time.Hour}
		assert.Equal(t, created.Add(time.Hour), m.CalculateDestructAt())
	})

	t.Run("read with short timer keeps minimum window", func(t *testing.T) {
		readAt := created.Add(time.Minute)
		m := Message{CreatedAt: created, ReadAt: &readAt, DestructTimer: 10 * time.Second}
		// readAt + 5min beats createdAt + 10s
		assert.Equal(t, readAt.Add(5*time.Minute), m.CalculateDestructAt())
	})

	t.Run("read pulls a long timer forward", func(t *testing.T) {
		readAt := created.Add(time.Minute)
		m := Message{CreatedAt: created, ReadAt: &readAt, DestructTimer: 2 * time.Hour}
		assert.Equal(t, readAt.Add(5*time.Minute), m.CalculateDestructAt())
	})

	t.Run("capped at max lifetime", func(t *testing.T) {
		m := Message{CreatedAt: created, DestructTimer: 30 * 24 * time.Hour}
		assert.Equal(t, created.Add(3*24*time.Hour), m.CalculateDestructAt())
	})
}

func TestMarkRead(t *testing.T) {
	now := time.Now().UTC()

	t.Run("first read arms destruct deadline", func(t *testing.T) {
		m, err := NewMessage(validMessage())
		require.NoError(t, err)
		m.DestructTimer = time.Hour

		changed, err := m.MarkRead(now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, MessageStatusRead, m.Status)
		require.NotNil(t, m.ReadAt)
		require.NotNil(t, m.DestructAt)
	})

	t.Run("second read is a no-op", func(t *testing.T) {
		m, err := NewMessage(validMessage())
		require.NoError(t, err)
		_, err = m.MarkRead(now)
		require.NoError(t, err)

		changed, err := m.MarkRead(now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("terminal message rejects read", func(t *testing.T) {
		m, err := NewMessage(validMessage())
		require.NoError(t, err)
		require.NoError(t, m.Recall(1, now))

		_, err = m.MarkRead(now)
		assert.ErrorIs(t, err, ErrTerminalState)
	})
}

func TestRecall(t *testing.T) {
	now := time.Now().UTC()
	m, err := NewMessage(validMessage())
	require.NoError(t, err)

	require.NoError(t, m.Recall(1, now))
	assert.Equal(t, MessageStatusRecalled, m.Status)
	require.NotNil(t, m.RecalledBy)
	assert.Equal(t, int64(1), *m.RecalledBy)

	// Recalling again hits the terminal guard.
	assert.ErrorIs(t, m.Recall(1, now), ErrTerminalState)
}

func TestDestructWipesPayload(t *testing.T) {
	now := time.Now().UTC()
	m, err := NewMessage(validMessage())
	require.NoError(t, err)

	require.NoError(t, m.Destruct(now))
	assert.Equal(t, MessageStatusDestroyed, m.Status)
	assert.Nil(t, m.Ciphertext)
	assert.Nil(t, m.IV)
	assert.Nil(t, m.AuthTag)

	assert.ErrorIs(t, m.Destruct(now), ErrTerminalState)
}

func TestDestructAfterRecallRejected(t *testing.T) {
	// Recall and destruct are mutually exclusive terminal states: the
	// second mutation observes the terminal status and must not move it.
	now := time.Now().UTC()
	m, err := NewMessage(validMessage())
	require.NoError(t, err)
	require.NoError(t, m.Recall(1, now))

	assert.ErrorIs(t, m.Destruct(now), ErrTerminalState)
	assert.Equal(t, MessageStatusRecalled, m.Status)

	m2, err := NewMessage(validMessage())
	require.NoError(t, err)
	require.NoError(t, m2.Destruct(now))
	assert.ErrorIs(t, m2.Recall(1, now), ErrTerminalState)
	assert.Equal(t, MessageStatusDestroyed, m2.Status)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, MessageStatusSending.Terminal())
	assert.False(t, MessageStatusSent.Terminal())
	assert.False(t, MessageStatusRead.Terminal())
	assert.True(t, MessageStatusRecalled.Terminal())
	assert.True(t, MessageStatusDestroyed.Terminal())
	assert.True(t, MessageStatusDeleted.Terminal())
}

func TestDueForDestruction(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	m := Message{DestructAt: &past}
	assert.True(t, m.DueForDestruction(now))

	future := now.Add(time.Minute)
	m.DestructAt = &future
	assert.False(t, m.DueForDestruction(now))

	m.DestructAt = nil
	assert.False(t, m.DueForDestruction(now))
}
