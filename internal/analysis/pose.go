package analysis

import (
	"fmt"
	"math"
	"sort"
)

// Landmark is one anatomical point in normalized image space. Z and Visibility are carried through but unused by the angle math.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Point drops the depth axis.
func (l Landmark) Point() Point {
	return Point{X: l.X, Y: l.Y}
}

// LandmarkSet is one detection in the 33-point MediaPipe order. An empty set means no body was found.
type LandmarkSet []Landmark

// Landmark indices used by the joint sets.
const (
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	LeftWrist     = 15
	LeftIndex     = 19
	LeftHip       = 23
	LeftKnee      = 25
	LeftAnkle     = 27

	LandmarkCount = 33
)

// Joint names.
const (
	JointShoulder = "shoulder"
	JointElbow    = "elbow"
	JointWrist    = "wrist"
	JointSpine    = "spine"
	JointKnee     = "knee"
)

// Joint set names.
const (
	JointSetUpper = "upper"
	JointSetFull  = "full"
)

// JointSpec names a joint and the landmark triple (A, vertex B, C) that measures it.
type JointSpec struct {
	Name string `json:"name"`
	A    int    `json:"a"`
	B    int    `json:"b"`
	C    int    `json:"c"`
}

func (j JointSpec) maxIndex() int {
	m := j.A
	if j.B > m {
		m = j.B
	}
	if j.C > m {
		m = j.C
	}
	return m
}

var upperJoints = []JointSpec{
	{Name: JointShoulder, A: LeftElbow, B: LeftShoulder, C: RightShoulder},
	{Name: JointElbow, A: LeftShoulder, B: LeftElbow, C: LeftWrist},
	{Name: JointWrist, A: LeftElbow, B: LeftWrist, C: LeftIndex},
}

var lowerJoints = []JointSpec{
	{Name: JointSpine, A: LeftShoulder, B: LeftHip, C: LeftKnee},
	{Name: JointKnee, A: LeftHip, B: LeftKnee, C: LeftAnkle},
}

// JointSet returns a fresh copy of the named joint configuration.
func JointSet(name string) ([]JointSpec, error) {
	switch name {
	case "", JointSetUpper:
		return append([]JointSpec(nil), upperJoints...), nil
	case JointSetFull:
		joints := make([]JointSpec, 0, len(upperJoints)+len(lowerJoints))
		joints = append(joints, upperJoints...)
		return append(joints, lowerJoints...), nil
	default:
		return nil, fmt.Errorf("unknown joint set %q", name)
	}
}

var idealAngles = map[string]float64{
	JointShoulder: 90,
	JointElbow:    90,
	JointWrist:    180,
	JointSpine:    180,
	JointKnee:     175,
}

// IdealAngle looks up the reference angle for a joint.
func IdealAngle(joint string) (float64, bool) {
	v, ok := idealAngles[joint]
	return v, ok
}

// IdealAngles returns a copy of the reference table.
func IdealAngles() map[string]float64 {
	out := make(map[string]float64, len(idealAngles))
	for k, v := range idealAngles {
		out[k] = v
	}
	return out
}

// JointScore is 100 at the ideal angle, losing 2 points per degree of deviation, never below 0.
func JointScore(angle, ideal float64) float64 {
	return math.Max(0, 100-2*math.Abs(angle-ideal))
}

// MeasureAngles computes the angle of every joint in joints.
func MeasureAngles(set LandmarkSet, joints []JointSpec) (map[string]float64, error) {
	if len(set) == 0 {
		return nil, ErrNoDetection
	}

	angles := make(map[string]float64, len(joints))
	for _, j := range joints {
		if j.maxIndex() >= len(set) || j.A < 0 || j.B < 0 || j.C < 0 {
			return nil, newScoringError(ReasonInvalidLandmarks,
				"joint %s needs landmark %d, set has %d", j.Name, j.maxIndex(), len(set))
		}
		angles[j.Name] = Angle(set[j.A].Point(), set[j.B].Point(), set[j.C].Point())
	}
	return angles, nil
}

// ScorePose scores one landmark set. Joints without a reference angle are measured but not scored.
func ScorePose(set LandmarkSet, joints []JointSpec) (PoseFrameResult, map[string]float64, error) {
	angles, err := MeasureAngles(set, joints)
	if err != nil {
		return PoseFrameResult{}, nil, err
	}

	scores := make(map[string]float64, len(angles))
	values := make([]float64, 0, len(angles))
	// iterate in joint order so the mean is summed the same way every run
	for _, j := range joints {
		ideal, ok := IdealAngle(j.Name)
		if !ok {
			continue
		}
		s := JointScore(angles[j.Name], ideal)
		scores[j.Name] = s
		values = append(values, s)
	}

	return PoseFrameResult{
		JointScores: scores,
		Stability:   mean(values),
	}, angles, nil
}

// FrameSuggestions flags every joint scoring below threshold, sorted by joint name.
func FrameSuggestions(result PoseFrameResult, threshold float64) []Suggestion {
	suggestions := []Suggestion{}
	for _, joint := range sortedKeys(result.JointScores) {
		score := result.JointScores[joint]
		if score >= threshold {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Type:        RecommendationWarning,
			Joint:       joint,
			Score:       score,
			Description: fmt.Sprintf("%s angle needs adjustment; it deviates noticeably from the ideal angle.", joint),
		})
	}
	return suggestions
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
