package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "winefeed/pkg/platform/audit"
)

type recordingProducer struct {
	keys   []string
	values [][]byte
	err    error
}

func (p *recordingProducer) Produce(_ context.Context, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return nil
}

func TestStore_AppendEncodesEventKeyedBySKU(t *testing.T) {
	producer := &recordingProducer{}
	store := New(producer)

	event := audit.DecisionEvent{
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SupplierID: "sup-1",
		SKU:        "CHM-2019-750",
		Stage:      "fuzzy",
		Decision:   "REVIEW_QUEUE",
		Confidence: 60,
		Reasons:    []string{"PRODUCER_EXACT", "VOLUME_MATCH"},
	}
	require.NoError(t, store.Append(context.Background(), event))

	require.Len(t, producer.keys, 1)
	assert.Equal(t, "sup-1/CHM-2019-750", producer.keys[0])

	var decoded audit.DecisionEvent
	require.NoError(t, json.Unmarshal(producer.values[0], &decoded))
	assert.Equal(t, event, decoded)
}

func TestStore_AppendWrapsProducerError(t *testing.T) {
	cause := errors.New("broker down")
	store := New(&recordingProducer{err: cause})

	err := store.Append(context.Background(), audit.DecisionEvent{SupplierID: "s", SKU: "k"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}
