package rubric

import (
	"errors"
	"fmt"
)

// Validate checks a rubric [File] against the given effective thresholds.
//
// Rules:
//   - thresholds must be ordered: 0 <= high_priority < medium_priority
//     <= improvement <= strength <= 100.
//   - every dimension needs a non-empty, unique name.
//   - every dimension needs at least one strength and one advice message,
//     none of them empty.
func Validate(file *File, thresholds Thresholds) error {
	var errs []error

	if thresholds.HighPriority < 0 {
		errs = append(errs, fmt.Errorf("high_priority %v must not be negative", thresholds.HighPriority))
	}
	if thresholds.HighPriority >= thresholds.MediumPriority {
		errs = append(errs, fmt.Errorf("high_priority %v must be below medium_priority %v",
			thresholds.HighPriority, thresholds.MediumPriority))
	}
	if thresholds.MediumPriority > thresholds.Improvement {
		errs = append(errs, fmt.Errorf("medium_priority %v must not exceed improvement %v",
			thresholds.MediumPriority, thresholds.Improvement))
	}
	if thresholds.Improvement > thresholds.Strength {
		errs = append(errs, fmt.Errorf("improvement %v must not exceed strength %v",
			thresholds.Improvement, thresholds.Strength))
	}
	if thresholds.Strength > 100 {
		errs = append(errs, fmt.Errorf("strength %v must not exceed 100", thresholds.Strength))
	}

	if len(file.Dimensions) == 0 {
		errs = append(errs, errors.New("at least one dimension is required"))
	}

	seen := make(map[string]bool, len(file.Dimensions))
	for i, d := range file.Dimensions {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("dimension[%d]: name must not be empty", i))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("dimension[%d]: duplicate name %q", i, d.Name))
		}
		seen[d.Name] = true

		if len(d.Strengths) == 0 {
			errs = append(errs, fmt.Errorf("dimension %q: at least one strength message is required", d.Name))
		}
		if len(d.Advice) == 0 {
			errs = append(errs, fmt.Errorf("dimension %q: at least one advice message is required", d.Name))
		}
		for j, msg := range d.Strengths {
			if msg == "" {
				errs = append(errs, fmt.Errorf("dimension %q: strengths[%d] must not be empty", d.Name, j))
			}
		}
		for j, msg := range d.Advice {
			if msg == "" {
				errs = append(errs, fmt.Errorf("dimension %q: advice[%d] must not be empty", d.Name, j))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
