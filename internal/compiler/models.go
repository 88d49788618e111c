// internal/compiler/models.go
package compiler

// LayerKind is the role a template layer plays in the design.
type LayerKind string

const (
	KindText  LayerKind = "text"
	KindImage LayerKind = "image"
	KindGroup LayerKind = "group"
)

// Bounds is a layer rectangle in document pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layer is one node of a template layer tree. Name carries the binding path.
type Layer struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     LayerKind `json:"kind"`
	Bounds   Bounds    `json:"bounds"`
	Children []Layer   `json:"children,omitempty"`
}

type EditText struct {
	LayerID   string `json:"layerId"`
	LayerName string `json:"layerName"`
	Value     string `json:"value"`
}

type DeleteLayer struct {
	LayerID   string `json:"layerId"`
	LayerName string `json:"layerName"`
}

// ReplaceLayer swaps the placeholder Target for the loaded asset layer Source.
type ReplaceLayer struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	TargetID     string `json:"targetId"`
	TargetBounds Bounds `json:"targetBounds"`
	Tag          string `json:"tag,omitempty"`
}

// LoadAsset places fetched image bytes into the document as a new layer named Name.
type LoadAsset struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// CropImage fits the loaded layer Name into Bounds.
type CropImage struct {
	Name   string `json:"name"`
	Bounds Bounds `json:"bounds"`
}

// AssetRequest is an image fetch the compiler could not perform itself.
// Index is unique within one plan and orders the resolved operations.
type AssetRequest struct {
	Index     int    `json:"index"`
	LayerID   string `json:"layerId"`
	LayerName string `json:"layerName"`
	Bounds    Bounds `json:"bounds"`
	URL       string `json:"url"`
	SourceID  string `json:"sourceId,omitempty"`
	EntityID  string `json:"entityId,omitempty"`
	Tag       string `json:"tag,omitempty"`
}

// Plan is the ordered operation list for one job. Order within a list is traversal order.
type Plan struct {
	EditTexts     []EditText     `json:"editTexts"`
	DeleteLayers  []DeleteLayer  `json:"deleteLayers"`
	ReplaceLayers []ReplaceLayer `json:"replaceLayers"`
	LoadAssets    []LoadAsset    `json:"loadAssets"`
	CropImages    []CropImage    `json:"cropImages"`
	AssetRequests []AssetRequest `json:"assetRequests"`
}

// OpCount is the number of editor operations, excluding unresolved asset requests.
func (p *Plan) OpCount() int {
	return len(p.EditTexts) + len(p.DeleteLayers) + len(p.ReplaceLayers) + len(p.LoadAssets) + len(p.CropImages)
}
