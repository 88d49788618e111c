package editor

import (
	"strings"
	"testing"

	"schedule-designgen/internal/compiler"

	"github.com/stretchr/testify/assert"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		expected Event
	}{
		{
			name:     "layer count",
			msg:      "layer_count:studio-1:2026-10-19:weekly:42",
			expected: Event{Kind: EventLayerCount, Namespace: "studio-1:2026-10-19:weekly", Count: 42},
		},
		{
			name:     "export descriptor",
			msg:      "export_file:studio-1:weekly:PNG",
			expected: Event{Kind: EventExportFile, Namespace: "studio-1:weekly", Format: "png"},
		},
		{
			name:     "negative count",
			msg:      "layer_count:ns:-1",
			expected: Event{Kind: EventUnknown},
		},
		{
			name:     "count is not a number",
			msg:      "layer_count:ns:many",
			expected: Event{Kind: EventUnknown},
		},
		{
			name:     "missing namespace",
			msg:      "export_file::png",
			expected: Event{Kind: EventUnknown},
		},
		{
			name:     "missing value",
			msg:      "export_file:ns:",
			expected: Event{Kind: EventUnknown},
		},
		{
			name:     "unrelated message",
			msg:      "done",
			expected: Event{Kind: EventUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeText(tt.msg)
			tt.expected.Raw = got.Raw
			assert.Equal(t, tt.expected, got)
			if got.Kind == EventUnknown {
				assert.Equal(t, tt.msg, got.Raw)
			}
		})
	}
}

func TestDecodeBinary(t *testing.T) {
	ev := DecodeBinary([]byte{0x89, 'P', 'N', 'G'})
	assert.Equal(t, EventPayload, ev.Kind)
	assert.Empty(t, ev.Namespace)
	assert.Equal(t, "payload", ev.Kind.String())
}

func TestBuildScript(t *testing.T) {
	plan := &compiler.Plan{
		EditTexts:    []compiler.EditText{{LayerID: "7", LayerName: "name", Value: `Yoga "Flow"`}},
		DeleteLayers: []compiler.DeleteLayer{{LayerID: "9", LayerName: "day#1.event#2"}},
		LoadAssets:   []compiler.LoadAsset{{Name: "anna_0", ContentType: "image/jpeg; charset=binary", Data: []byte("img")}},
		CropImages:   []compiler.CropImage{{Name: "anna_0", Bounds: compiler.Bounds{X: 10, Y: 20.5, Width: 300, Height: 200}}},
		ReplaceLayers: []compiler.ReplaceLayer{
			{Source: "anna_0", Target: "photo", TargetID: "11", Tag: "@anna"},
		},
	}

	script := BuildScript("studio:weekly", plan, []string{"png", "psd"})

	assert.Contains(t, script, `place("data:image/jpeg;base64,aW1n", "anna_0");`)
	assert.Contains(t, script, `fit("anna_0", 10, 20.5, 300, 200);`)
	assert.Contains(t, script, `swap("anna_0", "11");`)
	assert.Contains(t, script, `setText("7", "Yoga \"Flow\"");`)
	assert.Contains(t, script, `drop("9");`)

	pngAt := strings.Index(script, `app.echoToOE("export_file:studio:weekly:png");`)
	psdAt := strings.Index(script, `app.echoToOE("export_file:studio:weekly:psd");`)
	assert.Greater(t, pngAt, strings.Index(script, `drop("9");`))
	assert.Greater(t, psdAt, pngAt)
	assert.Less(t, strings.Index(script, `place(`), strings.Index(script, `swap(`))

	assert.Equal(t, script, BuildScript("studio:weekly", plan, []string{"png", "psd"}))
}

func TestProbeScript(t *testing.T) {
	script := ProbeScript("a:b")
	assert.Contains(t, script, `app.echoToOE("layer_count:" + "a:b" + ":" + count(app.activeDocument.layers));`)
	assert.Contains(t, script, "if (!app.documents.length) return;")
}
