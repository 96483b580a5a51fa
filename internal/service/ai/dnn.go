package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/service/detection"
)

// MinDNNConfidence drops raw network outputs before they are mapped.
const MinDNNConfidence = 0.3

// DNNModel runs an SSD MobileNet COCO network once per frame and serves the
// results to one detector view per category.
type DNNModel struct {
	mu     sync.Mutex
	net    gocv.Net
	pass   sharedPass
	logger *logger.Logger
}

// NewDNNModel loads the network from modelPath and configPath.
func NewDNNModel(modelPath, configPath string, logger *logger.Logger) (*DNNModel, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	logger.Info("Detection network initialized successfully")
	return &DNNModel{net: net, logger: logger}, nil
}

// Detector returns the view of the model for one category.
func (m *DNNModel) Detector(category model.Category) detection.Detector {
	return &dnnView{model: m, category: category}
}

func (m *DNNModel) detectAll(img *image.RGBA) ([]model.DetectedRegion, error) {
	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	m.mu.Lock()
	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	m.mu.Unlock()
	defer output.Close()

	origin := img.Bounds().Min
	cols, rows := float32(mat.Cols()), float32(mat.Rows())

	// rows of [batch_id, class_id, confidence, x1, y1, x2, y2]
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	var hits []model.DetectedRegion
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := reshaped.GetFloatAt(i, 2)
		if confidence < MinDNNConfidence {
			continue
		}
		classID := int(reshaped.GetFloatAt(i, 1))
		rect := image.Rect(
			int(reshaped.GetFloatAt(i, 3)*cols),
			int(reshaped.GetFloatAt(i, 4)*rows),
			int(reshaped.GetFloatAt(i, 5)*cols),
			int(reshaped.GetFloatAt(i, 6)*rows),
		).Add(origin)
		if region, ok := detection.FromCOCO(classID, rect, float64(confidence)); ok {
			hits = append(hits, region)
		}
	}
	return hits, nil
}

func (m *DNNModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

type dnnView struct {
	model    *DNNModel
	category model.Category
}

func (v *dnnView) Name() string { return "dnn-" + v.category.String() }

func (v *dnnView) Category() model.Category { return v.category }

func (v *dnnView) Detect(ctx context.Context, img *image.RGBA) ([]model.DetectedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := v.model.pass.get(img, func() ([]model.DetectedRegion, error) {
		return v.model.detectAll(img)
	})
	if err != nil {
		return nil, err
	}
	return filter(hits, v.category), nil
}
