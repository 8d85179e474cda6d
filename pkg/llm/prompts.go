package llm

import (
	"fmt"
	"strings"
)

const videoAnalysisPrompt = `You are an expert workplace safety inspector (OSHA) reviewing a recorded video.

The site follows these safety policies:
---
{POLICIES}
---

Watch the whole video and identify every policy violation that is clearly visible.
Report each violation TYPE only once: when the same violation repeats, keep only the single most
significant occurrence. For each violation provide:
- timestamp: the moment of clearest visibility in MM:SS format, 1-2 seconds after the violation begins
- policy_name: the violated policy title, copied exactly from the list above
- severity: exactly as shown in brackets for that policy ("Severity 1", "Severity 2" or "Severity 3")
- description: what is happening in the video
- reasoning: why it breaks that specific policy
- fix: the concrete corrective action that would make the scene compliant

Rules:
- Only report violations you can clearly see
- If there are no violations return an empty array: []
- Return ONLY a JSON array, no other text

Example:
[
  {
    "timestamp": "00:14",
    "policy_name": "Personal Protective Equipment",
    "severity": "Severity 3",
    "description": "Worker operating a grinder without eye protection",
    "reasoning": "Grinding produces flying particles and the policy requires safety glasses",
    "fix": "The worker wears ANSI-rated safety glasses while grinding"
  }
]`

const frameAnalysisPrompt = `You are an expert workplace safety inspector analyzing a single frame from a live camera.

The site follows these safety policies:
---
{POLICIES}
---

Identify every policy violation visible in this frame. For each violation provide:
- policy_name: the violated policy title, copied exactly from the list above
- severity: exactly as shown in brackets for that policy ("Severity 1", "Severity 2" or "Severity 3")
- description: what you observe in the frame
- reasoning: why it breaks that specific policy

Rules:
- Only report violations you can clearly see
- If there are no violations return an empty array: []
- Return ONLY a JSON array, no other text

Example:
[
  {
    "policy_name": "Poor Housekeeping and Walking-Working Surfaces",
    "severity": "Severity 1",
    "description": "Tools and materials scattered across the walkway",
    "reasoning": "Debris on a walkway creates slip, trip and fall hazards"
  }
]`

const fixImagePrompt = `Edit this photo from a workplace so it shows the same scene AFTER the following safety violation has been corrected.

Policy violated: {POLICY_NAME}
What was observed: {DESCRIPTION}
Why it is a violation: {REASONING}
How to fix: {FIX}

Keep the camera angle, framing, lighting, people and surroundings identical. Change only what is
needed to make the scene compliant.`

const amendPolicyPrompt = `You maintain a catalog of workplace safety policies used by an automated video monitoring system.
An alert raised under the policy below was reported by a human reviewer as a FALSE POSITIVE.

Policy title: {POLICY_TITLE}
Severity level: {POLICY_LEVEL}
Current description:
{POLICY_DESCRIPTION}

Reviewer feedback:
{USER_FEEDBACK}

Rewrite the policy description so that the situation described by the reviewer is no longer flagged.
- Keep the original intent and safety requirement of the policy
- Add clarifications, conditions or exceptions that make it more precise
- Never weaken the underlying safety standard

Return ONLY the improved description text, with no preamble, headings or quotes.`

// VideoPrompt renders the full-video instruction for catalog.
func VideoPrompt(catalog string) string {
	return strings.ReplaceAll(videoAnalysisPrompt, "{POLICIES}", catalog)
}

// FramePrompt renders the single-frame instruction for catalog.
func FramePrompt(catalog string) string {
	return strings.ReplaceAll(frameAnalysisPrompt, "{POLICIES}", catalog)
}

// FixPrompt renders the image-edit instruction.
func FixPrompt(req FixRequest) string {
	return strings.NewReplacer(
		"{POLICY_NAME}", req.PolicyName,
		"{DESCRIPTION}", req.Description,
		"{REASONING}", req.Reasoning,
		"{FIX}", req.Fix,
	).Replace(fixImagePrompt)
}

// AmendPrompt renders the description rewrite instruction.
func AmendPrompt(title string, level int, description, feedback string) string {
	return strings.NewReplacer(
		"{POLICY_TITLE}", title,
		"{POLICY_LEVEL}", fmt.Sprint(level),
		"{POLICY_DESCRIPTION}", description,
		"{USER_FEEDBACK}", feedback,
	).Replace(amendPolicyPrompt)
}
