// Package progress computes completion percentages from TrainingProgress trees.
//
// Two policies exist and neither is a default: Lenient credits partial video
// completion ("progress so far"), Strict counts only fully completed modules
// ("true completion rate"). Functions here are pure and never perform I/O.
package progress

import (
	"BranchLMS/internal/domain"
)

// Policy selects how module completion is credited at training level.
type Policy string

const (
	Lenient Policy = "lenient"
	Strict  Policy = "strict"
)

// ParsePolicy maps a query value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case Lenient, Strict:
		return Policy(s), nil
	}
	return "", domain.NewValidationError("unknown completion policy",
		domain.FieldError{Field: "policy", Error: "must be strict or lenient"})
}

// ModuleProgress summarises one module's videos.
type ModuleProgress struct {
	TotalVideos     int     `json:"totalVideos"`
	CompletedVideos int     `json:"completedVideos"`
	CompletionPct   float64 `json:"completionPct"`
	WatchedPct      float64 `json:"watchedPct"`
}

// TrainingProgressResult is the outcome of ComputeTrainingProgress.
type TrainingProgressResult struct {
	Policy           Policy                             `json:"policy"`
	TotalModules     int                                `json:"totalModules"`
	CompletedModules int                                `json:"completedModules"` // strict definition, whatever the policy
	OverallPct       float64                            `json:"overallPct"`
	Modules          []ModuleProgress                   `json:"modules"`
	Warnings         []*domain.DataInconsistencyWarning `json:"-"`
}

// ComputeModuleProgress counts passed videos. A module without videos is 0%.
func ComputeModuleProgress(m domain.ModuleProgress) ModuleProgress {
	res := ModuleProgress{TotalVideos: len(m.Videos)}
	var watched, total float64
	for _, v := range m.Videos {
		if v.Pass {
			res.CompletedVideos++
		}
		if v.TotalDuration > 0 {
			total += v.TotalDuration
			watched += min(v.WatchedDuration, v.TotalDuration)
		}
	}
	res.CompletionPct = percent(res.CompletedVideos, res.TotalVideos)
	if total > 0 {
		res.WatchedPct = watched / total * 100
	} else {
		res.WatchedPct = res.CompletionPct
	}
	return res
}

// ModuleComplete is the strict module rule: the module pass flag is set and every video passed.
func ModuleComplete(m domain.ModuleProgress) bool {
	if !m.Pass {
		return false
	}
	for _, v := range m.Videos {
		if !v.Pass {
			return false
		}
	}
	return true
}

// lenientModulePct credits partial completion; a video-less module falls back to its pass flag.
func lenientModulePct(m domain.ModuleProgress, mp ModuleProgress) float64 {
	if mp.TotalVideos == 0 {
		if m.Pass {
			return 100
		}
		return 0
	}
	return mp.CompletionPct
}

// ComputeTrainingProgress computes the overall percentage of a record under policy.
// A record with no modules is 0%. A stored pass flag that disagrees with the strict
// result is reported in Warnings and left untouched.
func ComputeTrainingProgress(rec *domain.TrainingProgress, policy Policy) (TrainingProgressResult, error) {
	if rec == nil {
		return TrainingProgressResult{}, domain.NewValidationError("progress record is nil")
	}
	if policy != Lenient && policy != Strict {
		return TrainingProgressResult{}, domain.NewValidationError("unknown completion policy",
			domain.FieldError{Field: "policy", Error: string(policy)})
	}

	res := TrainingProgressResult{
		Policy:       policy,
		TotalModules: len(rec.Modules),
		Modules:      make([]ModuleProgress, 0, len(rec.Modules)),
	}
	var lenientSum float64
	for _, m := range rec.Modules {
		mp := ComputeModuleProgress(m)
		res.Modules = append(res.Modules, mp)
		lenientSum += lenientModulePct(m, mp)
		if ModuleComplete(m) {
			res.CompletedModules++
		}
	}

	strictPct := percent(res.CompletedModules, res.TotalModules)
	switch policy {
	case Strict:
		res.OverallPct = strictPct
	case Lenient:
		if res.TotalModules > 0 {
			res.OverallPct = lenientSum / float64(res.TotalModules)
		}
	}

	if w := checkConsistency(rec, strictPct); w != nil {
		res.Warnings = append(res.Warnings, w)
	}
	return res, nil
}

// CheckConsistency returns a warning when rec.Pass disagrees with its strict completion.
func CheckConsistency(rec *domain.TrainingProgress) *domain.DataInconsistencyWarning {
	if rec == nil {
		return nil
	}
	completed := 0
	for _, m := range rec.Modules {
		if ModuleComplete(m) {
			completed++
		}
	}
	return checkConsistency(rec, percent(completed, len(rec.Modules)))
}

func checkConsistency(rec *domain.TrainingProgress, strictPct float64) *domain.DataInconsistencyWarning {
	switch {
	case rec.Pass && strictPct != 100:
	case !rec.Pass && len(rec.Modules) > 0 && strictPct == 100:
	default:
		return nil
	}
	return &domain.DataInconsistencyWarning{ProgressID: rec.ID, StoredPass: rec.Pass, StrictPct: strictPct}
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
