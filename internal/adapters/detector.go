package adapters

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/resilience"
)

// DefaultDetectorInputSize is the square input side the detector model was trained at
const DefaultDetectorInputSize = 640

type detectResponse struct {
	Detections []analysis.Detection `json:"detections"`
}

// DetectorClient finds target faces (class 0) and arrows (class 1) in an image
type DetectorClient struct {
	*client
	inputSize int
}

// NewDetectorClient creates a client for the object detection service.
// inputSize is sent with every request; 0 selects DefaultDetectorInputSize.
func NewDetectorClient(config ClientConfig, inputSize int, deps Deps) (*DetectorClient, error) {
	c, err := newClient(resilience.ServiceObjectDetector, config, deps)
	if err != nil {
		return nil, err
	}
	if inputSize <= 0 {
		inputSize = DefaultDetectorInputSize
	}
	return &DetectorClient{client: c, inputSize: inputSize}, nil
}

// InputSize is the longest side frames should be prepared to before Detect
func (d *DetectorClient) InputSize() int {
	return d.inputSize
}

// Detect returns every detection in frame with boxes in source-image pixels
func (d *DetectorClient) Detect(ctx context.Context, frame Frame) ([]analysis.Detection, error) {
	var resp detectResponse
	path := fmt.Sprintf("/v1/detect?img_size=%d", d.inputSize)
	if err := d.postImage(ctx, path, frame, &resp); err != nil {
		return nil, err
	}
	if resp.Detections == nil {
		return []analysis.Detection{}, nil
	}
	return frame.ToSource(resp.Detections), nil
}

// Ping checks the service health endpoint
func (d *DetectorClient) Ping(ctx context.Context) error {
	return d.ping(ctx)
}

// GetPoolStats returns connection pool statistics
func (d *DetectorClient) GetPoolStats() map[string]interface{} {
	return d.stats()
}

// Close closes the connection pool
func (d *DetectorClient) Close() error {
	return d.close()
}
