package protocol

import (
	"fmt"
	"math"
)

type DetectedObject struct {
	ClassName  string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Label formats the confidence as a percentage with one decimal, e.g. "87.6%".
func (o DetectedObject) Label() string {
	return fmt.Sprintf("%.1f%%", o.Confidence*100)
}

type DetectionSummary struct {
	ObjectCount int              `json:"object_count"`
	Objects     []DetectedObject `json:"objects"`
}

// ParseDetectionSummary normalizes a detection_info value of any shape.
// object_count wins when it is a non-negative number that fits an int32,
// otherwise the number of parsed objects is used.
func ParseDetectionSummary(v any) DetectionSummary {
	summary := DetectionSummary{Objects: []DetectedObject{}}

	if list, ok := fieldList(v, "objects"); ok {
		for _, item := range list {
			summary.Objects = append(summary.Objects, parseDetectedObject(item))
		}
	}

	summary.ObjectCount = len(summary.Objects)
	if raw, ok := Field(v, "object_count"); ok {
		if n, ok := Number(raw); ok && n >= 0 && n <= math.MaxInt32 {
			summary.ObjectCount = int(n)
		}
	}

	return summary
}

func parseDetectedObject(v any) DetectedObject {
	class, _ := Field(v, "class")
	obj := DetectedObject{ClassName: Text(class, PlaceholderUnknown)}

	if raw, ok := Field(v, "confidence"); ok {
		if f, ok := Number(raw); ok {
			obj.Confidence = clamp01(f)
		}
	}
	return obj
}

func fieldList(v any, key string) ([]any, bool) {
	raw, ok := Field(v, key)
	if !ok {
		return nil, false
	}
	list, ok := raw.([]any)
	return list, ok
}

func clamp01(f float64) float64 {
	switch {
	case f != f:
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
