package adapters

import (
	"context"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/resilience"
)

// poseResponse is the pose estimator's answer; landmark coordinates are normalized to [0,1]
// of the frame, so they need no rescaling, and the list is empty when nobody is in the frame
type poseResponse struct {
	Landmarks []analysis.Landmark `json:"landmarks"`
}

// PoseEstimatorClient turns an image into a 33-point landmark set
type PoseEstimatorClient struct {
	*client
}

// NewPoseEstimatorClient creates a client for the pose estimation service
func NewPoseEstimatorClient(config ClientConfig, deps Deps) (*PoseEstimatorClient, error) {
	c, err := newClient(resilience.ServicePoseEstimator, config, deps)
	if err != nil {
		return nil, err
	}
	return &PoseEstimatorClient{client: c}, nil
}

// Estimate returns the landmarks found in frame. An empty set means no person was detected.
func (p *PoseEstimatorClient) Estimate(ctx context.Context, frame Frame) (analysis.LandmarkSet, error) {
	var resp poseResponse
	if err := p.postImage(ctx, "/v1/pose", frame, &resp); err != nil {
		return nil, err
	}
	return analysis.LandmarkSet(resp.Landmarks), nil
}

// Ping checks the service health endpoint
func (p *PoseEstimatorClient) Ping(ctx context.Context) error {
	return p.ping(ctx)
}

// GetPoolStats returns connection pool statistics
func (p *PoseEstimatorClient) GetPoolStats() map[string]interface{} {
	return p.stats()
}

// Close closes the connection pool
func (p *PoseEstimatorClient) Close() error {
	return p.close()
}
