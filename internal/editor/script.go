// internal/editor/script.go
package editor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"schedule-designgen/internal/compiler"
)

const scriptPrelude = `var doc = app.activeDocument;
function byId(id, layers) {
  layers = layers || doc.layers;
  for (var i = 0; i < layers.length; i++) {
    var l = layers[i];
    if (String(l.id) === id) return l;
    if (l.layers) { var f = byId(id, l.layers); if (f) return f; }
  }
  return null;
}
function byName(name, layers) {
  layers = layers || doc.layers;
  for (var i = 0; i < layers.length; i++) {
    var l = layers[i];
    if (l.name === name) return l;
    if (l.layers) { var f = byName(name, l.layers); if (f) return f; }
  }
  return null;
}
function setText(id, value) { var l = byId(id); if (l && l.textItem) l.textItem.contents = value; }
function drop(id) { var l = byId(id); if (l) l.remove(); }
function place(url, name) { app.open(url, null, true); doc.activeLayer.name = name; }
function fit(name, x, y, w, h) {
  var l = byName(name); if (!l) return;
  var b = l.bounds, sw = b[2] - b[0], sh = b[3] - b[1];
  if (sw <= 0 || sh <= 0) return;
  var s = Math.max(w / sw, h / sh) * 100;
  l.resize(s, s);
  b = l.bounds;
  l.translate(x - b[0] + (w - (b[2] - b[0])) / 2, y - b[1] + (h - (b[3] - b[1])) / 2);
}
function swap(source, targetId) {
  var s = byName(source), t = byId(targetId);
  if (!s || !t) return;
  s.move(t, ElementPlacement.PLACEBEFORE);
  t.remove();
}
`

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ProbeScript asks the editor to report its layer count for ns once a document is open.
func ProbeScript(ns string) string {
	return fmt.Sprintf(`(function () {
if (!app.documents.length) return;
function count(layers) { var n = 0; for (var i = 0; i < layers.length; i++) { n++; if (layers[i].layers) n += count(layers[i].layers); } return n; }
app.echoToOE("layer_count:" + %s + ":" + count(app.activeDocument.layers));
})();`, jsString(ns))
}

// BuildScript renders the whole plan as one batch, ending with one export per format.
// Each export announces itself with an export_file descriptor right before its bytes.
func BuildScript(ns string, plan *compiler.Plan, formats []string) string {
	var b strings.Builder
	b.WriteString("(function () {\n")
	b.WriteString(scriptPrelude)

	for _, op := range plan.LoadAssets {
		url := "data:" + contentTypeOr(op.ContentType) + ";base64," + base64.StdEncoding.EncodeToString(op.Data)
		fmt.Fprintf(&b, "place(%s, %s);\n", jsString(url), jsString(op.Name))
	}
	for _, op := range plan.CropImages {
		fmt.Fprintf(&b, "fit(%s, %s, %s, %s, %s);\n", jsString(op.Name),
			jsNumber(op.Bounds.X), jsNumber(op.Bounds.Y), jsNumber(op.Bounds.Width), jsNumber(op.Bounds.Height))
	}
	for _, op := range plan.ReplaceLayers {
		fmt.Fprintf(&b, "swap(%s, %s);\n", jsString(op.Source), jsString(op.TargetID))
	}
	for _, op := range plan.EditTexts {
		fmt.Fprintf(&b, "setText(%s, %s);\n", jsString(op.LayerID), jsString(op.Value))
	}
	for _, op := range plan.DeleteLayers {
		fmt.Fprintf(&b, "drop(%s);\n", jsString(op.LayerID))
	}
	for _, format := range formats {
		fmt.Fprintf(&b, "app.echoToOE(%s);\n", jsString(prefixExportFile+ns+":"+format))
		fmt.Fprintf(&b, "doc.saveToOE(%s);\n", jsString(format))
	}

	b.WriteString("})();\n")
	return b.String()
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		return strings.TrimSpace(ct[:i])
	}
	return ct
}
