package stats

import (
	"bytes"
	"errors"
	"testing"

	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Nil(t *testing.T) {
	var st *Stats

	st.Log("message")
	st.LogDebug("message")
	st.LogError("message", errors.New("test"))
	st.Add(CounterDocuments, 1)
	st.StoreGraphStats(graph.Stats{Triples: 1})
	st.SetCT(1, 2)

	assert.Equal(t, Counts{}, st.Counts())
	assert.Equal(t, graph.Stats{}, st.GraphStats())
	assert.True(t, st.Done())
	assert.Nil(t, st.With("key", "value"))

	called := false
	require.NoError(t, st.DoStage(StageFlatten, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestStats_Log(t *testing.T) {
	var buffer bytes.Buffer
	st := NewStats(&buffer, false)

	st.Log("harvesting", "source", "http://example.com/dump.rdf")
	st.LogDebug("hidden")
	st.LogError("fetch", errors.New("boom"), "source", "x")

	output := buffer.String()
	assert.Contains(t, output, "msg=harvesting")
	assert.Contains(t, output, "source=http://example.com/dump.rdf")
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, `msg="FAILED fetch"`)
	assert.Contains(t, output, "err=boom")
}

func TestStats_With(t *testing.T) {
	var buffer bytes.Buffer
	st := NewStats(&buffer, true)

	pass := st.With("pass", "1234")
	pass.Log("start")
	pass.Add(CounterDocuments, 2)
	st.Add(CounterDocuments, 1)
	pass.StoreGraphStats(graph.Stats{Triples: 10})

	assert.Contains(t, buffer.String(), "pass=1234")
	assert.Equal(t, uint64(3), st.Counts().Documents)
	assert.Equal(t, uint64(3), pass.Counts().Documents)
	assert.Equal(t, uint64(10), st.GraphStats().Triples)
}

func TestStats_DoStage(t *testing.T) {
	st := NewStats(nil, false)

	require.NoError(t, st.DoStage(StageAcquireDump, func() error {
		assert.Equal(t, StageAcquireDump, st.Current().Stage)
		st.SetCT(5, 10)
		return nil
	}))

	err := st.DoStage(StageSubmit, func() error {
		return errors.New("sink down")
	})
	require.Error(t, err)

	all := st.All()
	require.Len(t, all, 2)
	assert.Equal(t, StageAcquireDump, all[0].Stage)
	assert.Equal(t, 5, all[0].Current)
	assert.Equal(t, StageSubmit, all[1].Stage)
	assert.Equal(t, StageInitial, st.Current().Stage)
}

func TestStats_Close(t *testing.T) {
	st := NewStats(nil, false)
	st.Add(CounterSubmitted, 1)
	st.Close()
	st.Add(CounterSubmitted, 1)

	assert.True(t, st.Done())
	assert.Equal(t, uint64(1), st.Counts().Submitted)
	assert.Equal(t, Progress{Done: true}, st.Progress())
}

func TestStageStats_Progress(t *testing.T) {
	assert.Equal(t, "", StageStats{Stage: StageFlatten}.Progress())
	assert.Equal(t, "flatten: 3", StageStats{Stage: StageFlatten, Current: 3}.Progress())
	assert.Equal(t, "flatten: 3/4", StageStats{Stage: StageFlatten, Current: 3, Total: 4}.Progress())
	assert.Equal(t, "flatten: 4", StageStats{Stage: StageFlatten, Current: 4, Total: 4}.Progress())
}
