package editor_test

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/editor"
	"schedule-designgen/internal/editor/editortest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const ns = "mindbody:2026-10-19:weekly"

func createTestAdapter(t *testing.T, launcher editor.Launcher, idle time.Duration) *editor.Adapter {
	a := editor.NewAdapter(launcher, editor.Config{
		IdleTimeout:   idle,
		ProbeInterval: 10 * time.Millisecond,
	}, logger.NewTestLogger(t))
	t.Cleanup(a.Close)
	return a
}

func createRequest() editor.Request {
	return editor.Request{
		Namespace: ns,
		Template:  []byte("8BPS"),
		Script:    "/* plan */",
		Formats:   []string{"png", "psd"},
	}
}

func runAsync(a *editor.Adapter, ctx context.Context, req editor.Request) <-chan editor.Outcome {
	out := make(chan editor.Outcome, 1)
	go func() { out <- a.Run(ctx, req) }()
	return out
}

func waitOutcome(t *testing.T, ch <-chan editor.Outcome) editor.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("no outcome")
		return editor.Outcome{}
	}
}

func waitLaunched(t *testing.T, l *editortest.Launcher, n int) *editortest.Instance {
	t.Helper()
	require.Eventually(t, func() bool { return len(l.Launched()) >= n }, time.Second, 5*time.Millisecond)
	return l.Launched()[n-1]
}

// ==========================
// Protocol Flow Tests
// ==========================

func TestAdapter_ExportFlow(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, time.Second)

	out := runAsync(a, context.Background(), createRequest())
	waitLaunched(t, launcher, 1)

	require.Eventually(t, func() bool { return len(inst.Binaries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte("8BPS"), inst.Binaries()[0])
	assert.Eventually(t, func() bool { return inst.HasSent(editor.ProbeScript(ns)) }, time.Second, 5*time.Millisecond)
	assert.False(t, inst.HasSent("/* plan */"), "script waits for the first layer count")

	inst.Emit("layer_count:" + ns + ":12")
	require.Eventually(t, func() bool { return inst.HasSent("/* plan */") }, time.Second, 5*time.Millisecond)

	inst.Emit("export_file:" + ns + ":png")
	inst.EmitPayload([]byte("png-bytes"))
	inst.Emit("export_file:" + ns + ":psd")
	inst.EmitPayload([]byte("psd-bytes"))

	o := waitOutcome(t, out)
	assert.Equal(t, editor.OutcomeExported, o.Kind)
	assert.NoError(t, o.Err)
	assert.Equal(t, map[string][]byte{"png": []byte("png-bytes"), "psd": []byte("psd-bytes")}, o.Exports)

	assert.Empty(t, a.Sessions())
	assert.Eventually(t, inst.Closed, time.Second, 5*time.Millisecond)
}

func TestAdapter_ScriptSentOnce(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, time.Second)

	require.NoError(t, a.Start(context.Background(), createRequest(), editor.Callbacks{}))
	inst.Emit("layer_count:" + ns + ":12")
	inst.Emit("layer_count:" + ns + ":14")
	inst.Emit("layer_count:" + ns + ":14")

	require.Eventually(t, func() bool {
		s := a.Sessions()
		return len(s) == 1 && s[0].LastCount == 14
	}, time.Second, 5*time.Millisecond)

	scripts := 0
	for _, text := range inst.Texts() {
		if text == "/* plan */" {
			scripts++
		}
	}
	assert.Equal(t, 1, scripts)
	assert.Equal(t, editor.StateLoaded, a.Sessions()[0].State)
}

func TestAdapter_PayloadBeforeDescriptor(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, time.Second)

	req := createRequest()
	req.Formats = []string{"PNG"}
	out := runAsync(a, context.Background(), req)
	waitLaunched(t, launcher, 1)

	inst.Emit("layer_count:" + ns + ":3")
	inst.EmitPayload([]byte("first"))
	inst.EmitPayload([]byte("second"))
	inst.Emit("export_file:" + ns + ":jpg")
	inst.Emit("export_file:" + ns + ":png")

	o := waitOutcome(t, out)
	require.Equal(t, editor.OutcomeExported, o.Kind)
	assert.Equal(t, []byte("first"), o.Exports["jpg"])
	assert.Equal(t, []byte("second"), o.Exports["png"])
}

func TestAdapter_IgnoresOtherNamespaces(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, time.Second)

	require.NoError(t, a.Start(context.Background(), createRequest(), editor.Callbacks{}))
	inst.Emit("layer_count:someone-else:4")
	inst.Emit("garbage")

	time.Sleep(50 * time.Millisecond)
	assert.False(t, inst.HasSent("/* plan */"))
	sessions := a.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, editor.StateInit, sessions[0].State)
}

// ==========================
// Idle And Timeout Tests
// ==========================

func TestAdapter_IdleWithoutLayerCounts(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, 80*time.Millisecond)

	var idle, other atomic.Int32
	require.NoError(t, a.Start(context.Background(), createRequest(), editor.Callbacks{
		OnIdle:    func() { idle.Add(1) },
		OnExport:  func(map[string][]byte) { other.Add(1) },
		OnTimeout: func() { other.Add(1) },
		OnError:   func(error) { other.Add(1) },
	}))

	require.Eventually(t, func() bool { return idle.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(1), idle.Load())
	assert.Zero(t, other.Load())
	assert.Empty(t, a.Sessions())
	assert.True(t, inst.Closed())
	assert.False(t, inst.HasSent("/* plan */"))
}

func TestAdapter_IdleResetsOnlyOnChange(t *testing.T) {
	t.Run("changing counts keep the run alive", func(t *testing.T) {
		inst := editortest.NewInstance()
		launcher := editortest.NewLauncher(inst)
		a := createTestAdapter(t, launcher, 150*time.Millisecond)

		out := runAsync(a, context.Background(), createRequest())
		waitLaunched(t, launcher, 1)

		for i := 0; i < 10; i++ {
			inst.Emit("layer_count:" + ns + ":" + strconv.Itoa(10+i))
			time.Sleep(40 * time.Millisecond)
			select {
			case o := <-out:
				t.Fatalf("run ended early with %s", o.Kind)
			default:
			}
		}

		o := waitOutcome(t, out)
		assert.Equal(t, editor.OutcomeIdle, o.Kind)
		assert.True(t, apperrors.HasCode(o.Err, apperrors.ErrCodeProtocolIdleTimeout))
	})

	t.Run("repeated counts do not", func(t *testing.T) {
		inst := editortest.NewInstance()
		launcher := editortest.NewLauncher(inst)
		a := createTestAdapter(t, launcher, 150*time.Millisecond)

		out := runAsync(a, context.Background(), createRequest())
		waitLaunched(t, launcher, 1)

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					select {
					case <-stop:
						return
					default:
					}
					if inst.Closed() {
						return
					}
					inst.Emit("layer_count:" + ns + ":7")
				}
			}
		}()

		start := time.Now()
		o := waitOutcome(t, out)
		assert.Equal(t, editor.OutcomeIdle, o.Kind)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestAdapter_CallerTimeout(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, 5*time.Second)

	req := createRequest()
	req.Timeout = 60 * time.Millisecond
	out := runAsync(a, context.Background(), req)
	waitLaunched(t, launcher, 1)
	inst.Emit("layer_count:" + ns + ":3")

	o := waitOutcome(t, out)
	assert.Equal(t, editor.OutcomeTimedOut, o.Kind)
	assert.True(t, apperrors.HasCode(o.Err, apperrors.ErrCodeJobTimeout))
	assert.Empty(t, a.Sessions())
	assert.Eventually(t, inst.Closed, time.Second, 5*time.Millisecond)
}

// ==========================
// Lifecycle Tests
// ==========================

func TestAdapter_ReinitClearsPriorState(t *testing.T) {
	first, second := editortest.NewInstance(), editortest.NewInstance()
	launcher := editortest.NewLauncher(first, second)
	a := createTestAdapter(t, launcher, time.Second)

	var firstFired atomic.Int32
	require.NoError(t, a.Start(context.Background(), createRequest(), editor.Callbacks{
		OnIdle:   func() { firstFired.Add(1) },
		OnExport: func(map[string][]byte) { firstFired.Add(1) },
	}))
	first.Emit("layer_count:" + ns + ":5")
	first.EmitPayload([]byte("stale"))

	exported := make(chan map[string][]byte, 1)
	require.NoError(t, a.Start(context.Background(), createRequest(), editor.Callbacks{
		OnExport: func(e map[string][]byte) { exported <- e },
	}))

	assert.Eventually(t, first.Closed, time.Second, 5*time.Millisecond)
	require.Len(t, a.Sessions(), 1)
	assert.Equal(t, editor.StateInit, a.Sessions()[0].State, "fresh namespace starts over")

	second.Emit("layer_count:" + ns + ":5")
	second.Emit("export_file:" + ns + ":png")
	second.EmitPayload([]byte("png"))
	second.Emit("export_file:" + ns + ":psd")
	second.EmitPayload([]byte("psd"))

	select {
	case e := <-exported:
		assert.Equal(t, []byte("png"), e["png"])
	case <-time.After(2 * time.Second):
		t.Fatal("second run did not export")
	}
	assert.Zero(t, firstFired.Load())
}

func TestAdapter_ClearIsIdempotent(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, 50*time.Millisecond)

	var fired atomic.Int32
	require.NoError(t, a.Start(context.Background(), createRequest(), editor.Callbacks{
		OnIdle: func() { fired.Add(1) },
	}))

	a.Clear(ns)
	a.Clear(ns)
	a.Clear("never-started")

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, a.Sessions())
	assert.Zero(t, fired.Load())
	assert.True(t, inst.Closed())
}

func TestAdapter_ContextCancel(t *testing.T) {
	inst := editortest.NewInstance()
	launcher := editortest.NewLauncher(inst)
	a := createTestAdapter(t, launcher, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	out := runAsync(a, ctx, createRequest())
	waitLaunched(t, launcher, 1)
	require.Eventually(t, func() bool { return len(a.Sessions()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	o := waitOutcome(t, out)
	assert.Equal(t, editor.OutcomeCancelled, o.Kind)
	assert.True(t, apperrors.HasCode(o.Err, apperrors.ErrCodeJobCancelled))
	assert.Empty(t, a.Sessions())
}

func TestAdapter_Failures(t *testing.T) {
	t.Run("launch failure", func(t *testing.T) {
		launcher := editortest.NewLauncher()
		launcher.Err = errors.New("connection refused")
		a := createTestAdapter(t, launcher, time.Second)

		o := a.Run(context.Background(), createRequest())

		assert.Equal(t, editor.OutcomeFailed, o.Kind)
		assert.True(t, apperrors.HasCode(o.Err, apperrors.ErrCodeEditorLaunchFailed))
	})

	t.Run("send failure", func(t *testing.T) {
		inst := editortest.NewInstance()
		inst.FailSends(errors.New("broken pipe"))
		a := createTestAdapter(t, editortest.NewLauncher(inst), 5*time.Second)

		o := a.Run(context.Background(), createRequest())

		assert.Equal(t, editor.OutcomeFailed, o.Kind)
		assert.EqualError(t, o.Err, "broken pipe")
	})

	t.Run("invalid request", func(t *testing.T) {
		a := createTestAdapter(t, editortest.NewLauncher(), time.Second)

		req := createRequest()
		req.Formats = nil
		assert.ErrorIs(t, a.Start(context.Background(), req, editor.Callbacks{}), editor.ErrMissingFormats)

		req = createRequest()
		req.Namespace = ""
		assert.ErrorIs(t, a.Start(context.Background(), req, editor.Callbacks{}), editor.ErrMissingNamespace)
	})

	t.Run("closed adapter", func(t *testing.T) {
		inst := editortest.NewInstance()
		a := createTestAdapter(t, editortest.NewLauncher(inst), time.Second)
		a.Close()

		err := a.Start(context.Background(), createRequest(), editor.Callbacks{})

		assert.ErrorIs(t, err, editor.ErrAdapterClosed)
		assert.True(t, inst.Closed())
	})
}
