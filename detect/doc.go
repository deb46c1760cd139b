// Package detect decides whether conversational text is worth remembering
// and assigns it a category, importance and keyword set.
//
// The Detector tries the configured text-analysis provider first (any
// langchaingo model through LLMAnalyzer) with a bounded timeout, then falls
// back to a local rule-based heuristic. If both decline, the content simply
// isn't remembered — detection never blocks and never errors the caller.
//
//	detector := detect.NewDetector(detect.NewLLMAnalyzer(model), detect.DefaultConfig())
//	decision := detector.Detect(ctx, "I prefer morning workouts", recent)
//
// Writing the memory is the caller's responsibility; detection has no side
// effects.
package detect
